package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"auditlog-service/internal/domain"
)

var csvHeader = []string{
	"id", "tenant_id", "user_id", "action", "resource_type", "resource_id",
	"ip_address", "user_agent", "metadata", "severity", "created_at",
}

// writeCSV renders records into a delimited file in dir and returns its path.
// Row order follows the input slice; callers pass records newest first.
func writeCSV(records []*domain.AuditRecord, tenantID, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	stamp := time.Now().UTC().Format("20060102150405")
	path := filepath.Join(dir, fmt.Sprintf("%s_logs_%s.csv", tenantID, stamp))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}

	for _, rec := range records {
		metadata := ""
		if rec.Metadata != nil {
			raw, _ := json.Marshal(rec.Metadata)
			metadata = string(raw)
		}

		row := []string{
			rec.ID.String(),
			rec.TenantID,
			strValue(rec.UserID),
			rec.Action,
			rec.ResourceType,
			rec.ResourceID,
			strValue(rec.IPAddress),
			strValue(rec.UserAgent),
			metadata,
			rec.Severity,
			rec.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return path, nil
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
