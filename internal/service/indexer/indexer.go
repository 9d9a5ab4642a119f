// Package indexer drains the log-notification queue and mirrors canonical
// audit records into the search index. Delivery is at-least-once, so the
// whole path is idempotent: the document id is the record id and indexing is
// an upsert.
package indexer

import (
	"context"
	"errors"
	"time"

	"auditlog-service/internal/domain"
	"auditlog-service/internal/queue"
	"auditlog-service/internal/repository"
	"auditlog-service/internal/search"

	"go.uber.org/zap"
)

const (
	batchSize = 10
	pollWait  = 10 * time.Second
)

// RecordFinder resolves canonical records; repository.AuditRepository
// satisfies it.
type RecordFinder interface {
	Find(ctx context.Context, tenantID, recordID string) (*domain.AuditRecord, error)
}

// Notifier is told about every freshly indexed record.
type Notifier interface {
	RecordIndexed(rec *domain.AuditRecord)
}

type Consumer struct {
	queue    queue.Queue
	records  RecordFinder
	index    search.Index
	notifier Notifier
	logger   *zap.Logger
}

// New builds the log consumer. notifier may be nil.
func New(q queue.Queue, records RecordFinder, index search.Index, notifier Notifier, logger *zap.Logger) *Consumer {
	return &Consumer{
		queue:    q,
		records:  records,
		index:    index,
		notifier: notifier,
		logger:   logger,
	}
}

// Run polls the queue until ctx is cancelled. A failing message is left
// unacknowledged and never stops the loop.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("log consumer started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("log consumer stopped")
			return
		default:
		}

		msgs, err := c.queue.Receive(ctx, batchSize, pollWait)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("log consumer stopped")
				return
			}
			c.logger.Error("receive from log queue failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range msgs {
			c.handle(ctx, msg)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg queue.Message) {
	n, err := domain.DecodeLogNotification(msg.Body)
	if err != nil {
		c.logger.Warn("dropping malformed log notification",
			zap.String("message_id", msg.ID), zap.Error(err))
		c.ack(ctx, msg)
		return
	}

	rec, err := c.records.Find(ctx, n.TenantID, n.RecordID)
	if errors.Is(err, repository.ErrNotFound) {
		// The record will never appear; retrying would loop forever.
		c.logger.Error("audit record not found, dropping notification",
			zap.String("tenant_id", n.TenantID),
			zap.String("record_id", n.RecordID))
		c.ack(ctx, msg)
		return
	}
	if err != nil {
		c.logger.Error("audit record lookup failed, leaving message for redelivery",
			zap.String("record_id", n.RecordID), zap.Error(err))
		return
	}

	if err := c.index.Upsert(ctx, rec.TenantID, rec.ID.String(), BuildDocument(rec)); err != nil {
		c.logger.Error("index upsert failed, leaving message for redelivery",
			zap.String("record_id", n.RecordID), zap.Error(err))
		return
	}

	c.logger.Info("indexed audit record",
		zap.String("tenant_id", rec.TenantID),
		zap.String("record_id", rec.ID.String()))

	if c.notifier != nil {
		c.notifier.RecordIndexed(rec)
	}

	c.ack(ctx, msg)
}

func (c *Consumer) ack(ctx context.Context, msg queue.Message) {
	if err := c.queue.Ack(ctx, msg); err != nil {
		c.logger.Error("ack failed, message will be redelivered",
			zap.String("message_id", msg.ID), zap.Error(err))
	}
}

// BuildDocument flattens a canonical record into its index document.
func BuildDocument(rec *domain.AuditRecord) search.Document {
	return search.Document{
		"id":            rec.ID.String(),
		"tenant_id":     rec.TenantID,
		"user_id":       rec.UserID,
		"action":        rec.Action,
		"resource_type": rec.ResourceType,
		"resource_id":   rec.ResourceID,
		"ip_address":    rec.IPAddress,
		"user_agent":    rec.UserAgent,
		"country":       rec.Country,
		"city":          rec.City,
		"metadata":      rec.Metadata,
		"before_state":  rec.BeforeState,
		"after_state":   rec.AfterState,
		"severity":      rec.Severity,
		"created_at":    rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}
