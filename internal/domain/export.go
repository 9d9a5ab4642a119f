package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExportJob tracks one tenant export through its state machine. The API
// creates it as PENDING; only the export consumer moves it after that.
// DONE and FAILED are terminal.
type ExportJob struct {
	ID        uuid.UUID `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Status    string    `json:"status"`
	FileURL   *string   `json:"file_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Export job statuses
const (
	ExportStatusPending    = "PENDING"
	ExportStatusInProgress = "IN_PROGRESS"
	ExportStatusDone       = "DONE"
	ExportStatusFailed     = "FAILED"
)
