package blob

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const keyPrefix = "exports/"

// HTTPStore writes objects to an S3-compatible gateway with plain HTTP PUTs.
// Object keys are randomized so concurrent exports never collide.
type HTTPStore struct {
	endpoint   string
	publicBase string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewHTTPStore(endpoint, publicBase string, logger *zap.Logger) *HTTPStore {
	return &HTTPStore{
		endpoint:   endpoint,
		publicBase: publicBase,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

func (s *HTTPStore) Upload(ctx context.Context, localPath, bucket string) (string, error) {
	key := keyPrefix + uuid.NewString() + "_" + filepath.Base(localPath)

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open export file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat export file: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s", s.endpoint, bucket, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, f)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("x-amz-acl", "public-read")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload to bucket %s: %w", bucket, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("upload to bucket %s: unexpected status %d", bucket, resp.StatusCode)
	}

	publicURL := fmt.Sprintf("%s/%s/%s", s.publicBase, bucket, key)
	s.logger.Info("uploaded export artifact",
		zap.String("bucket", bucket),
		zap.String("key", key))
	return publicURL, nil
}
