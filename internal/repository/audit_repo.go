package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"auditlog-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a tenant-scoped lookup matches nothing.
var ErrNotFound = errors.New("not found")

type AuditRepository struct {
	db *pgxpool.Pool
}

func NewAuditRepository(db *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: db}
}

const auditColumns = `
	id, tenant_id, user_id, email, action, resource_type, resource_id,
	ip_address, user_agent, country, city,
	metadata, before_state, after_state, severity, created_at`

// Insert persists a canonical audit record. The record is immutable once
// written; the caller is expected to have masked it already.
func (r *AuditRepository) Insert(ctx context.Context, rec *domain.AuditRecord) error {
	query := `
		INSERT INTO audit_records (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	metadataJSON, _ := json.Marshal(rec.Metadata)
	beforeJSON, _ := json.Marshal(rec.BeforeState)
	afterJSON, _ := json.Marshal(rec.AfterState)

	_, err := r.db.Exec(ctx, query,
		rec.ID,
		rec.TenantID,
		rec.UserID,
		rec.Email,
		rec.Action,
		rec.ResourceType,
		rec.ResourceID,
		rec.IPAddress,
		rec.UserAgent,
		rec.Country,
		rec.City,
		metadataJSON,
		beforeJSON,
		afterJSON,
		rec.Severity,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// Find resolves one record by id within a tenant. Returns ErrNotFound when
// the record does not exist for that tenant.
func (r *AuditRepository) Find(ctx context.Context, tenantID, recordID string) (*domain.AuditRecord, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_records
		WHERE id = $1 AND tenant_id = $2
	`

	row := r.db.QueryRow(ctx, query, recordID, tenantID)
	rec, err := scanAuditRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find audit record: %w", err)
	}
	return rec, nil
}

// ListForExport returns every record for the tenant, newest first.
func (r *AuditRepository) ListForExport(ctx context.Context, tenantID string) ([]*domain.AuditRecord, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_records
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	var records []*domain.AuditRecord
	for rows.Next() {
		rec, err := scanAuditRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	return records, nil
}

// DeleteOlderThan removes the tenant's records created before cutoff and
// reports how many went away.
func (r *AuditRepository) DeleteOlderThan(ctx context.Context, tenantID string, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM audit_records
		WHERE tenant_id = $1 AND created_at < $2
	`

	ct, err := r.db.Exec(ctx, query, tenantID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old audit records: %w", err)
	}
	return ct.RowsAffected(), nil
}

func scanAuditRecord(row pgx.Row) (*domain.AuditRecord, error) {
	var rec domain.AuditRecord
	var metadataJSON, beforeJSON, afterJSON []byte

	err := row.Scan(
		&rec.ID,
		&rec.TenantID,
		&rec.UserID,
		&rec.Email,
		&rec.Action,
		&rec.ResourceType,
		&rec.ResourceID,
		&rec.IPAddress,
		&rec.UserAgent,
		&rec.Country,
		&rec.City,
		&metadataJSON,
		&beforeJSON,
		&afterJSON,
		&rec.Severity,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metadataJSON) > 0 {
		_ = json.Unmarshal(metadataJSON, &rec.Metadata)
	}
	if len(beforeJSON) > 0 {
		_ = json.Unmarshal(beforeJSON, &rec.BeforeState)
	}
	if len(afterJSON) > 0 {
		_ = json.Unmarshal(afterJSON, &rec.AfterState)
	}
	return &rec, nil
}
