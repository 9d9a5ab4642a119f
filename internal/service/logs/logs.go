// Package logs is the read/maintenance seam the API layer calls into:
// filtered search, cached stats, and retention cleanup.
package logs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"auditlog-service/internal/search"

	"go.uber.org/zap"
)

const (
	// DefaultRetentionDays bounds how long a tenant's records are kept.
	DefaultRetentionDays = 90

	statsNamespace = "stats"
)

// RetentionStore deletes canonical records past the cutoff;
// repository.AuditRepository satisfies it.
type RetentionStore interface {
	DeleteOlderThan(ctx context.Context, tenantID string, cutoff time.Time) (int64, error)
}

// StatsCache caches rendered stats per tenant; pkg/cache.Cache satisfies it.
type StatsCache interface {
	Get(ctx context.Context, namespace, key string) (string, error)
	Set(ctx context.Context, namespace, key string, value interface{}, ttl time.Duration) error
}

type Service struct {
	store    RetentionStore
	index    search.Index
	cache    StatsCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// New builds the logs service. cache may be nil to disable stats caching.
func New(store RetentionStore, index search.Index, cache StatsCache, cacheTTL time.Duration, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		index:    index,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Search runs a filtered, paginated query against the tenant's index.
func (s *Service) Search(ctx context.Context, tenantID string, filter search.Filter) (int64, []search.Document, error) {
	return s.index.Search(ctx, tenantID, filter)
}

// Stats returns per-action and per-severity counts, served from cache when
// fresh enough.
func (s *Service) Stats(ctx context.Context, tenantID string) (search.Stats, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, statsNamespace, tenantID); err == nil {
			var stats search.Stats
			if err := json.Unmarshal([]byte(cached), &stats); err == nil {
				return stats, nil
			}
		}
	}

	stats, err := s.index.Stats(ctx, tenantID)
	if err != nil {
		return search.Stats{}, fmt.Errorf("aggregate stats: %w", err)
	}

	if s.cache != nil {
		raw, _ := json.Marshal(stats)
		if err := s.cache.Set(ctx, statsNamespace, tenantID, raw, s.cacheTTL); err != nil {
			s.logger.Warn("caching stats failed", zap.String("tenant_id", tenantID), zap.Error(err))
		}
	}
	return stats, nil
}

// CleanupResult reports one retention pass.
type CleanupResult struct {
	StoreDeleted int64     `json:"store_deleted"`
	IndexDeleted int64     `json:"index_deleted"`
	Cutoff       time.Time `json:"cutoff"`
}

// Cleanup deletes the tenant's canonical records older than retentionDays
// and then the mirrored index documents. The two deletes are deliberately
// not transactional: the canonical store is the source of truth, and a
// leftover index document just disappears on a later pass.
func (s *Service) Cleanup(ctx context.Context, tenantID string, retentionDays int) (CleanupResult, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	result := CleanupResult{Cutoff: cutoff}

	storeDeleted, err := s.store.DeleteOlderThan(ctx, tenantID, cutoff)
	if err != nil {
		return result, fmt.Errorf("cleanup canonical records: %w", err)
	}
	result.StoreDeleted = storeDeleted

	indexDeleted, err := s.index.DeleteOlderThan(ctx, tenantID, cutoff)
	if err != nil {
		// Canonical delete already happened; report the partial pass.
		return result, fmt.Errorf("cleanup index documents: %w", err)
	}
	result.IndexDeleted = indexDeleted

	s.logger.Info("retention cleanup finished",
		zap.String("tenant_id", tenantID),
		zap.Int64("store_deleted", storeDeleted),
		zap.Int64("index_deleted", indexDeleted),
		zap.Time("cutoff", cutoff))
	return result, nil
}
