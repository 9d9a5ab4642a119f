// Package export runs the multi-step export job behind the export queue:
// claim the job, bulk-read the tenant's records, render a CSV, upload it,
// and finalize the job state. The job record is the only report surface —
// a failed export ends FAILED and the message is still acknowledged, so the
// queue never retries a terminally failed job.
package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auditlog-service/internal/blob"
	"auditlog-service/internal/domain"
	"auditlog-service/internal/queue"
	"auditlog-service/internal/repository"

	"go.uber.org/zap"
)

const (
	batchSize = 10
	pollWait  = 10 * time.Second
)

// JobStore mutates export-job state; repository.ExportRepository satisfies it.
type JobStore interface {
	Find(ctx context.Context, tenantID, jobID string) (*domain.ExportJob, error)
	SetStatus(ctx context.Context, tenantID, jobID, status string) error
	SetResult(ctx context.Context, tenantID, jobID, status string, fileURL *string) error
}

// RecordLister bulk-reads a tenant's records newest first.
type RecordLister interface {
	ListForExport(ctx context.Context, tenantID string) ([]*domain.AuditRecord, error)
}

type Pipeline struct {
	queue     queue.Queue
	jobs      JobStore
	records   RecordLister
	uploader  blob.Uploader
	bucket    string
	exportDir string
	logger    *zap.Logger
}

func NewPipeline(q queue.Queue, jobs JobStore, records RecordLister, uploader blob.Uploader, bucket, exportDir string, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		queue:     q,
		jobs:      jobs,
		records:   records,
		uploader:  uploader,
		bucket:    bucket,
		exportDir: exportDir,
		logger:    logger,
	}
}

// Run polls the export queue until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	p.logger.Info("export consumer started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("export consumer stopped")
			return
		default:
		}

		msgs, err := p.queue.Receive(ctx, batchSize, pollWait)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("export consumer stopped")
				return
			}
			p.logger.Error("receive from export queue failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range msgs {
			p.handle(ctx, msg)
		}
	}
}

func (p *Pipeline) handle(ctx context.Context, msg queue.Message) {
	n, err := domain.DecodeExportNotification(msg.Body)
	if err != nil {
		p.logger.Warn("dropping malformed export notification",
			zap.String("message_id", msg.ID), zap.Error(err))
		p.ack(ctx, msg)
		return
	}

	job, err := p.jobs.Find(ctx, n.TenantID, n.JobID)
	if errors.Is(err, repository.ErrNotFound) {
		p.logger.Error("export job not found, dropping notification",
			zap.String("tenant_id", n.TenantID),
			zap.String("job_id", n.JobID))
		p.ack(ctx, msg)
		return
	}
	if err != nil {
		p.logger.Error("export job lookup failed, leaving message for redelivery",
			zap.String("job_id", n.JobID), zap.Error(err))
		return
	}

	// Persist the claim first so a crash mid-export is visible as a stuck
	// IN_PROGRESS job rather than a silently re-run PENDING one.
	if err := p.jobs.SetStatus(ctx, job.TenantID, job.ID.String(), domain.ExportStatusInProgress); err != nil {
		p.logger.Error("claiming export job failed, leaving message for redelivery",
			zap.String("job_id", n.JobID), zap.Error(err))
		return
	}

	p.process(ctx, job)
	p.ack(ctx, msg)
}

// process runs steps 3-5 and always finalizes the job to DONE or FAILED
// before returning.
func (p *Pipeline) process(ctx context.Context, job *domain.ExportJob) {
	var fileURL string
	var runErr error

	defer func() {
		status := domain.ExportStatusDone
		var result *string
		if runErr != nil {
			status = domain.ExportStatusFailed
			p.logger.Error("export job failed",
				zap.String("tenant_id", job.TenantID),
				zap.String("job_id", job.ID.String()),
				zap.Error(runErr))
		} else {
			result = &fileURL
			p.logger.Info("export job done",
				zap.String("tenant_id", job.TenantID),
				zap.String("job_id", job.ID.String()),
				zap.String("file_url", fileURL))
		}

		if err := p.jobs.SetResult(ctx, job.TenantID, job.ID.String(), status, result); err != nil {
			p.logger.Error("finalizing export job failed",
				zap.String("job_id", job.ID.String()), zap.Error(err))
		}
	}()

	records, err := p.records.ListForExport(ctx, job.TenantID)
	if err != nil {
		runErr = fmt.Errorf("bulk read records: %w", err)
		return
	}

	path, err := writeCSV(records, job.TenantID, p.exportDir)
	if err != nil {
		runErr = fmt.Errorf("render export file: %w", err)
		return
	}

	url, err := p.uploader.Upload(ctx, path, p.bucket)
	if err != nil {
		runErr = fmt.Errorf("upload export file: %w", err)
		return
	}
	fileURL = url
}

func (p *Pipeline) ack(ctx context.Context, msg queue.Message) {
	if err := p.queue.Ack(ctx, msg); err != nil {
		p.logger.Error("ack failed, message will be redelivered",
			zap.String("message_id", msg.ID), zap.Error(err))
	}
}
