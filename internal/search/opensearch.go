package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// OpenSearchIndex talks to an OpenSearch/Elasticsearch-compatible engine over
// its JSON REST protocol. Tenant isolation comes from the index name: one
// index per tenant, logs-<tenant>.
type OpenSearchIndex struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewOpenSearchIndex(baseURL, username, password string, logger *zap.Logger) *OpenSearchIndex {
	return &OpenSearchIndex{
		baseURL:    baseURL,
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

func indexName(tenantID string) string {
	return "logs-" + tenantID
}

func (s *OpenSearchIndex) Upsert(ctx context.Context, tenantID, docID string, doc Document) error {
	path := fmt.Sprintf("/%s/_doc/%s", indexName(tenantID), docID)
	if err := s.do(ctx, http.MethodPut, path, doc, nil); err != nil {
		return fmt.Errorf("upsert document %s: %w", docID, err)
	}
	return nil
}

type searchRequest struct {
	Query map[string]interface{}   `json:"query"`
	From  *int                     `json:"from,omitempty"`
	Size  *int                     `json:"size,omitempty"`
	Sort  []map[string]interface{} `json:"sort,omitempty"`
	Aggs  map[string]interface{}   `json:"aggs,omitempty"`
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]struct {
		Buckets []BucketCount `json:"buckets"`
	} `json:"aggregations"`
}

func (s *OpenSearchIndex) Search(ctx context.Context, tenantID string, filter Filter) (int64, []Document, error) {
	must := make([]map[string]interface{}, 0, 4)
	if filter.Action != "" {
		must = append(must, map[string]interface{}{"term": map[string]interface{}{"action": filter.Action}})
	}
	if filter.Severity != "" {
		must = append(must, map[string]interface{}{"term": map[string]interface{}{"severity": filter.Severity}})
	}
	if filter.UserID != "" {
		must = append(must, map[string]interface{}{"term": map[string]interface{}{"user_id": filter.UserID}})
	}
	if filter.Search != "" {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{
				"user_agent": map[string]interface{}{"query": filter.Search, "operator": "or"},
			},
		})
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size < 1 {
		size = 10
	}
	from := (page - 1) * size

	req := searchRequest{
		Query: map[string]interface{}{"bool": map[string]interface{}{"must": must}},
		From:  &from,
		Size:  &size,
		Sort:  []map[string]interface{}{{"created_at": map[string]interface{}{"order": "desc"}}},
	}

	var resp searchResponse
	err := s.do(ctx, http.MethodPost, "/"+indexName(tenantID)+"/_search", req, &resp)
	if isIndexMissing(err) {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("search tenant %s: %w", tenantID, err)
	}

	docs := make([]Document, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		docs = append(docs, hit.Source)
	}
	return resp.Hits.Total.Value, docs, nil
}

func (s *OpenSearchIndex) Stats(ctx context.Context, tenantID string) (Stats, error) {
	size := 0
	req := searchRequest{
		Query: map[string]interface{}{"match_all": map[string]interface{}{}},
		Size:  &size,
		Aggs: map[string]interface{}{
			"by_action":   map[string]interface{}{"terms": map[string]interface{}{"field": "action"}},
			"by_severity": map[string]interface{}{"terms": map[string]interface{}{"field": "severity"}},
		},
	}

	var resp searchResponse
	err := s.do(ctx, http.MethodPost, "/"+indexName(tenantID)+"/_search", req, &resp)
	if isIndexMissing(err) {
		return Stats{}, nil
	}
	if err != nil {
		return Stats{}, fmt.Errorf("aggregate tenant %s: %w", tenantID, err)
	}

	return Stats{
		ActionCounts:   resp.Aggregations["by_action"].Buckets,
		SeverityCounts: resp.Aggregations["by_severity"].Buckets,
	}, nil
}

type deleteByQueryResponse struct {
	Deleted int64 `json:"deleted"`
}

func (s *OpenSearchIndex) DeleteOlderThan(ctx context.Context, tenantID string, cutoff time.Time) (int64, error) {
	req := map[string]interface{}{
		"query": map[string]interface{}{
			"range": map[string]interface{}{
				"created_at": map[string]interface{}{"lt": cutoff.UTC().Format(time.RFC3339)},
			},
		},
	}

	var resp deleteByQueryResponse
	err := s.do(ctx, http.MethodPost, "/"+indexName(tenantID)+"/_delete_by_query", req, &resp)
	if isIndexMissing(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("delete old documents for tenant %s: %w", tenantID, err)
	}

	s.logger.Info("deleted old index documents",
		zap.String("tenant_id", tenantID),
		zap.Int64("deleted", resp.Deleted))
	return resp.Deleted, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("search engine returned %d: %s", e.code, e.body)
}

func isIndexMissing(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.code == http.StatusNotFound
}

func (s *OpenSearchIndex) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.username != "" {
		req.SetBasicAuth(s.username, s.password)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call search engine: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode, body: string(raw)}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
