// Package search exposes the per-tenant search index the log consumer writes
// into. Every operation is scoped to one tenant's index; the index only ever
// holds copies derived from canonical records.
package search

import (
	"context"
	"time"
)

// Document is the flattened shape stored in the index.
type Document map[string]interface{}

// Filter is a conjunction of optional equality terms plus an optional
// free-text term matched against the user agent.
type Filter struct {
	Action   string
	Severity string
	UserID   string
	Search   string
	Page     int
	PageSize int
}

type BucketCount struct {
	Key   string `json:"key"`
	Count int64  `json:"doc_count"`
}

// Stats holds per-distinct-value counts for the two aggregated fields.
type Stats struct {
	ActionCounts   []BucketCount `json:"action_counts"`
	SeverityCounts []BucketCount `json:"severity_counts"`
}

type Index interface {
	// Upsert writes a document under docID; writing the same id twice
	// overwrites rather than duplicates.
	Upsert(ctx context.Context, tenantID, docID string, doc Document) error
	// Search returns the total hit count and one page of documents ordered
	// newest first.
	Search(ctx context.Context, tenantID string, filter Filter) (int64, []Document, error)
	// Stats aggregates counts by action and severity.
	Stats(ctx context.Context, tenantID string) (Stats, error)
	// DeleteOlderThan removes documents created before cutoff and returns
	// how many were deleted.
	DeleteOlderThan(ctx context.Context, tenantID string, cutoff time.Time) (int64, error)
}
