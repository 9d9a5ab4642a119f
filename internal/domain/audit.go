package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditRecord is the canonical, immutable audit event. It is owned by the
// relational store; the search index holds a derived copy that can always be
// rebuilt from it.
type AuditRecord struct {
	ID           uuid.UUID              `json:"id"`
	TenantID     string                 `json:"tenant_id"`
	UserID       *string                `json:"user_id,omitempty"`
	Email        *string                `json:"email,omitempty"`
	Action       string                 `json:"action"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   string                 `json:"resource_id"`
	IPAddress    *string                `json:"ip_address,omitempty"`
	UserAgent    *string                `json:"user_agent,omitempty"`
	Country      *string                `json:"country,omitempty"`
	City         *string                `json:"city,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	BeforeState  map[string]interface{} `json:"before_state,omitempty"`
	AfterState   map[string]interface{} `json:"after_state,omitempty"`
	Severity     string                 `json:"severity"`
	CreatedAt    time.Time              `json:"created_at"`
}

// Severity levels
const (
	SeverityInfo     = "INFO"
	SeverityWarning  = "WARNING"
	SeverityError    = "ERROR"
	SeverityCritical = "CRITICAL"
)
