package domain

import (
	"encoding/json"
	"time"
)

// Audit actions.
const (
	AuditUserRegistered      = "auth.user_registered"
	AuditUserLoggedIn        = "auth.user_logged_in"
	AuditRefreshReuse        = "auth.refresh_reuse_detected"
	AuditPasswordChanged     = "auth.password_changed"
	AuditLoggedOutEverywhere = "auth.logout_all"
)

// AuditLog is a tenant-scoped record of a security-relevant action.
type AuditLog struct {
	ID         string          `json:"id"`
	CompanyID  string          `json:"company_id"`
	UserID     string          `json:"user_id,omitempty"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	IPAddress  string          `json:"ip_address,omitempty"`
	UserAgent  string          `json:"user_agent,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
