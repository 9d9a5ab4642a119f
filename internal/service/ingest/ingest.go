// Package ingest is the producer half of the pipeline. Upstream services
// publish raw audit events onto Kafka; the bridge masks them, persists the
// canonical record, and pushes a log notification onto the queue for the
// indexer to pick up.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"auditlog-service/internal/domain"
	"auditlog-service/internal/masking"
	"auditlog-service/internal/queue"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrBadEvent marks an inbound event that can never be ingested. The
// consumer skips these; every other error is retried.
var ErrBadEvent = errors.New("bad audit event")

// RecordInserter persists canonical records; repository.AuditRepository
// satisfies it.
type RecordInserter interface {
	Insert(ctx context.Context, rec *domain.AuditRecord) error
}

type Bridge struct {
	records       RecordInserter
	notifications queue.Queue
	geo           Locator
	logger        *zap.Logger
}

// NewBridge builds the ingest bridge. geo may be nil to skip location
// enrichment.
func NewBridge(records RecordInserter, notifications queue.Queue, geo Locator, logger *zap.Logger) *Bridge {
	return &Bridge{
		records:       records,
		notifications: notifications,
		geo:           geo,
		logger:        logger,
	}
}

// HandleEvent ingests one raw event payload. Masking happens before the
// record is persisted, so nothing downstream ever sees raw sensitive values.
func (b *Bridge) HandleEvent(ctx context.Context, payload []byte) error {
	var data map[string]interface{}
	if err := json.Unmarshal(payload, &data); err != nil {
		return fmt.Errorf("%w: %v", ErrBadEvent, err)
	}

	rec, err := recordFromPayload(masking.Mask(data))
	if err != nil {
		return err
	}

	if b.geo != nil && rec.IPAddress != nil {
		country, city, err := b.geo.Locate(*rec.IPAddress)
		if err == nil {
			if country != "" {
				rec.Country = &country
			}
			if city != "" {
				rec.City = &city
			}
		}
	}

	if err := b.records.Insert(ctx, rec); err != nil {
		return fmt.Errorf("persist audit record: %w", err)
	}

	notif, _ := json.Marshal(domain.LogNotification{
		RecordID: rec.ID.String(),
		TenantID: rec.TenantID,
	})
	if err := b.notifications.Publish(ctx, notif); err != nil {
		// The record exists but the notification is lost; the indexer can
		// always rebuild from the canonical store, so report and move on.
		return fmt.Errorf("publish log notification: %w", err)
	}

	b.logger.Info("ingested audit event",
		zap.String("tenant_id", rec.TenantID),
		zap.String("record_id", rec.ID.String()),
		zap.String("action", rec.Action))
	return nil
}

func recordFromPayload(data map[string]interface{}) (*domain.AuditRecord, error) {
	tenantID := stringField(data, "tenant_id")
	action := stringField(data, "action")
	resourceType := stringField(data, "resource_type")
	resourceID := stringField(data, "resource_id")
	if tenantID == "" || action == "" || resourceType == "" || resourceID == "" {
		return nil, fmt.Errorf("%w: missing required fields", ErrBadEvent)
	}

	severity := stringField(data, "severity")
	if severity == "" {
		severity = domain.SeverityInfo
	}

	return &domain.AuditRecord{
		ID:           uuid.New(),
		TenantID:     tenantID,
		UserID:       optionalString(data, "user_id"),
		Email:        optionalString(data, "email"),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    optionalString(data, "ip_address"),
		UserAgent:    optionalString(data, "user_agent"),
		Metadata:     mapField(data, "metadata"),
		BeforeState:  mapField(data, "before_state"),
		AfterState:   mapField(data, "after_state"),
		Severity:     severity,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func stringField(data map[string]interface{}, key string) string {
	s, _ := data[key].(string)
	return s
}

func optionalString(data map[string]interface{}, key string) *string {
	if s, ok := data[key].(string); ok && s != "" {
		return &s
	}
	return nil
}

func mapField(data map[string]interface{}, key string) map[string]interface{} {
	m, _ := data[key].(map[string]interface{})
	return m
}
