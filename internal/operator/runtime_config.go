package operator

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/playmatatu/poolphys/internal/config"
	"github.com/playmatatu/poolphys/internal/models"
)

// GetAllRuntimeConfig returns all runtime config entries
func GetAllRuntimeConfig(db *sqlx.DB) ([]models.RuntimeConfig, error) {
	var configs []models.RuntimeConfig
	err := db.Select(&configs, `
		SELECT key, value, value_type, description, updated_by, updated_at
		FROM runtime_config
		ORDER BY key
	`)
	return configs, err
}

// UpdateRuntimeConfigValue validates and stores a single runtime config value
func UpdateRuntimeConfigValue(db *sqlx.DB, key, value, operatorName string) error {
	if err := config.ValidateOverride(key, value); err != nil {
		return err
	}

	res, err := db.Exec(`
		UPDATE runtime_config SET value=$1, updated_by=$2, updated_at=NOW() WHERE key=$3
	`, value, operatorName, key)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("config key not found: %s", key)
	}
	return nil
}

// ApplyRuntimeConfig loads runtime config from the database and applies the
// overrides to cfg. Invalid rows are logged and skipped.
func ApplyRuntimeConfig(db *sqlx.DB, cfg *config.Config) error {
	configs, err := GetAllRuntimeConfig(db)
	if err != nil {
		return err
	}

	applied := 0
	for _, c := range configs {
		if err := cfg.ApplyOverride(c.Key, c.Value); err != nil {
			log.Printf("[CONFIG] Skipping runtime override %s=%q: %v", c.Key, c.Value, err)
			continue
		}
		applied++
	}

	log.Printf("[CONFIG] Applied %d runtime config overrides from database", applied)
	return nil
}
