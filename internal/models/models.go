package models

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// Operator is an account allowed to drive tables through the API
type Operator struct {
	ID          int            `db:"id" json:"id"`
	Name        string         `db:"name" json:"name"`
	DisplayName string         `db:"display_name" json:"display_name"`
	TokenHash   string         `db:"token_hash" json:"-"`
	Roles       pq.StringArray `db:"roles" json:"roles"`
	AllowedIPs  pq.StringArray `db:"allowed_ips" json:"allowed_ips"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// OperatorAudit records an authenticated action
type OperatorAudit struct {
	ID        int             `db:"id" json:"id"`
	Operator  string          `db:"operator" json:"operator"`
	IP        string          `db:"ip" json:"ip"`
	Route     string          `db:"route" json:"route"`
	Action    string          `db:"action" json:"action"`
	Details   json.RawMessage `db:"details" json:"details"`
	Success   bool            `db:"success" json:"success"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// TableSession represents one racked table
type TableSession struct {
	ID          int          `db:"id" json:"id"`
	PublicID    string       `db:"public_id" json:"public_id"`
	Token       string       `db:"token" json:"-"`
	Status      string       `db:"status" json:"status"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	StartedAt   sql.NullTime `db:"started_at" json:"started_at,omitempty"`
	CompletedAt sql.NullTime `db:"completed_at" json:"completed_at,omitempty"`
}

// Shot is one simulated shot on a table
type Shot struct {
	ID           int             `db:"id" json:"id"`
	SessionID    int             `db:"session_id" json:"session_id"`
	Rack         int             `db:"rack" json:"rack"`
	ShotNumber   int             `db:"shot_number" json:"shot_number"`
	Params       json.RawMessage `db:"params" json:"params"`
	Events       json.RawMessage `db:"events" json:"events"`
	Pocketed     pq.Int64Array   `db:"pocketed" json:"pocketed"`
	FirstContact int             `db:"first_contact" json:"first_contact"`
	Scratch      bool            `db:"scratch" json:"scratch"`
	Frames       int             `db:"frames" json:"frames"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// RuntimeConfig is an operator-editable setting applied over the env config
type RuntimeConfig struct {
	Key         string    `db:"key" json:"key"`
	Value       string    `db:"value" json:"value"`
	ValueType   string    `db:"value_type" json:"value_type"`
	Description string    `db:"description" json:"description"`
	UpdatedBy   string    `db:"updated_by" json:"updated_by"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
