package operator

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/playmatatu/poolphys/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound      = errors.New("operator not found")
	ErrInvalidToken  = errors.New("invalid token")
	ErrIPNotAllowed  = errors.New("ip not allowed")
	ErrMissingSecret = errors.New("operator token must not be empty")
)

// Get retrieves an operator account by name
func Get(db *sqlx.DB, name string) (*models.Operator, error) {
	var op models.Operator
	err := db.Get(&op, `SELECT id, name, display_name, token_hash, roles, allowed_ips, created_at, updated_at FROM operators WHERE name=$1`, name)
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// HashToken hashes a plain operator token for storage
func HashToken(plainToken string) (string, error) {
	if plainToken == "" {
		return "", ErrMissingSecret
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plainToken), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}
	return string(hashed), nil
}

// VerifyToken checks if the provided token matches the stored hash
func VerifyToken(hashedToken, plainToken string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedToken), []byte(plainToken))
	return err == nil
}

// IPAllowed reports whether ip may use the account. An empty list allows any.
func IPAllowed(op *models.Operator, ip string) bool {
	if len(op.AllowedIPs) == 0 {
		return true
	}
	for _, allowed := range op.AllowedIPs {
		if allowed == ip {
			return true
		}
	}
	return false
}

// Upsert creates or replaces an operator account (used for seeding)
func Upsert(db *sqlx.DB, name, displayName, plainToken string, roles, allowedIPs []string) error {
	hashedToken, err := HashToken(plainToken)
	if err != nil {
		return err
	}
	// pq encodes nil slices as NULL
	if roles == nil {
		roles = []string{}
	}
	if allowedIPs == nil {
		allowedIPs = []string{}
	}

	_, err = db.Exec(`
		INSERT INTO operators (name, display_name, token_hash, roles, allowed_ips, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (name) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			token_hash = EXCLUDED.token_hash,
			roles = EXCLUDED.roles,
			allowed_ips = EXCLUDED.allowed_ips,
			updated_at = NOW()
	`, name, displayName, hashedToken, pq.Array(roles), pq.Array(allowedIPs))

	return err
}

// Authenticate validates a name + token pair coming from ip
func Authenticate(db *sqlx.DB, name, token, ip string) (*models.Operator, error) {
	op, err := Get(db, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Printf("[OPERATOR] No account found for: %s", name)
			return nil, ErrNotFound
		}
		log.Printf("[OPERATOR] Database error: %v", err)
		return nil, fmt.Errorf("database error: %w", err)
	}

	if !VerifyToken(op.TokenHash, token) {
		log.Printf("[OPERATOR] Token verification failed for: %s", name)
		return nil, ErrInvalidToken
	}
	if !IPAllowed(op, ip) {
		log.Printf("[OPERATOR] %s not allowed from %s", name, ip)
		return nil, ErrIPNotAllowed
	}

	return op, nil
}

// LogAction records an operator action in the audit log
func LogAction(db *sqlx.DB, name, ip, route, action string, details map[string]interface{}, success bool) error {
	if db == nil {
		return nil
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		log.Printf("Failed to marshal operator audit details: %v", err)
		detailsJSON = []byte("{}")
	}

	_, err = db.Exec(`
		INSERT INTO operator_audit (operator, ip, route, action, details, success, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, name, ip, route, action, detailsJSON, success)

	if err != nil {
		log.Printf("Failed to log operator action: %v", err)
	}

	return err
}

// AuditLog retrieves recent audit entries with pagination, optionally for a
// single operator, along with the total number of matching entries
func AuditLog(db *sqlx.DB, name string, limit, offset int) ([]models.OperatorAudit, int, error) {
	var rows []struct {
		models.OperatorAudit
		TotalCount int `db:"total_count"`
	}
	query := `
		SELECT id, operator, ip, route, action, details, success, created_at,
			COUNT(*) OVER() AS total_count
		FROM operator_audit
		WHERE ($1 = '' OR operator = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := db.Select(&rows, query, name, limit, offset); err != nil {
		return nil, 0, err
	}

	logs := make([]models.OperatorAudit, len(rows))
	total := 0
	for i, r := range rows {
		logs[i] = r.OperatorAudit
		total = r.TotalCount
	}
	return logs, total, nil
}
