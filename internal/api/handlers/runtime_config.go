package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playmatatu/poolphys/internal/config"
	"github.com/playmatatu/poolphys/internal/middleware"
	"github.com/playmatatu/poolphys/internal/operator"
)

// GetRuntimeConfig returns all runtime config entries
func GetRuntimeConfig(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "runtime config unavailable"})
			return
		}
		configs, err := operator.GetAllRuntimeConfig(db)
		if err != nil {
			log.Printf("[CONFIG] Failed to fetch runtime config: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch config"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"configs": configs})
	}
}

// UpdateRuntimeConfig updates a single runtime config value and applies it
// to tables racked from now on
func UpdateRuntimeConfig(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.GetString(middleware.OperatorKey)
		key := c.Param("key")

		var req struct {
			Value string `json:"value" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Value is required"})
			return
		}
		if err := config.ValidateOverride(key, req.Value); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "runtime config unavailable"})
			return
		}

		details := map[string]interface{}{"key": key, "value": req.Value}
		if err := operator.UpdateRuntimeConfigValue(db, key, req.Value, name); err != nil {
			log.Printf("[CONFIG] Failed to update config %s: %v", key, err)
			audit(c, db, "update_config", details, false)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := cfg.ApplyOverride(key, req.Value); err != nil {
			log.Printf("[CONFIG] Warning: failed to apply runtime config: %v", err)
		}

		audit(c, db, "update_config", details, true)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
