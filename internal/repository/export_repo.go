package repository

import (
	"context"
	"errors"
	"fmt"

	"auditlog-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ExportRepository struct {
	db *pgxpool.Pool
}

func NewExportRepository(db *pgxpool.Pool) *ExportRepository {
	return &ExportRepository{db: db}
}

// Insert creates a new export job, normally in PENDING state.
func (r *ExportRepository) Insert(ctx context.Context, job *domain.ExportJob) error {
	query := `
		INSERT INTO export_jobs (id, tenant_id, status, file_url, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Exec(ctx, query, job.ID, job.TenantID, job.Status, job.FileURL, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert export job: %w", err)
	}
	return nil
}

// Find resolves one export job by id within a tenant.
func (r *ExportRepository) Find(ctx context.Context, tenantID, jobID string) (*domain.ExportJob, error) {
	query := `
		SELECT id, tenant_id, status, file_url, created_at
		FROM export_jobs
		WHERE id = $1 AND tenant_id = $2
	`

	var job domain.ExportJob
	err := r.db.QueryRow(ctx, query, jobID, tenantID).Scan(
		&job.ID,
		&job.TenantID,
		&job.Status,
		&job.FileURL,
		&job.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find export job: %w", err)
	}
	return &job, nil
}

// SetStatus moves the job to a new state without touching the result URL.
func (r *ExportRepository) SetStatus(ctx context.Context, tenantID, jobID, status string) error {
	query := `
		UPDATE export_jobs
		SET status = $1
		WHERE id = $2 AND tenant_id = $3
	`

	ct, err := r.db.Exec(ctx, query, status, jobID, tenantID)
	if err != nil {
		return fmt.Errorf("update export job status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetResult finalizes the job: DONE carries the artifact URL, FAILED a nil one.
func (r *ExportRepository) SetResult(ctx context.Context, tenantID, jobID, status string, fileURL *string) error {
	query := `
		UPDATE export_jobs
		SET status = $1, file_url = $2
		WHERE id = $3 AND tenant_id = $4
	`

	ct, err := r.db.Exec(ctx, query, status, fileURL, jobID, tenantID)
	if err != nil {
		return fmt.Errorf("finalize export job: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
