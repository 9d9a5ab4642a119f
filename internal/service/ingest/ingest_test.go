package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"auditlog-service/internal/domain"
	"auditlog-service/internal/queue"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeInserter struct {
	mu       sync.Mutex
	inserted []*domain.AuditRecord
	err      error
}

func (f *fakeInserter) Insert(ctx context.Context, rec *domain.AuditRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, rec)
	return nil
}

type fakeQueue struct {
	mu        sync.Mutex
	published [][]byte
	err       error
}

func (q *fakeQueue) Publish(ctx context.Context, body []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.published = append(q.published, body)
	return nil
}

func (q *fakeQueue) Receive(ctx context.Context, max int, wait time.Duration) ([]queue.Message, error) {
	return nil, nil
}

func (q *fakeQueue) Ack(ctx context.Context, msg queue.Message) error { return nil }

type fakeLocator struct{}

func (fakeLocator) Locate(ip string) (string, string, error) {
	if ip == "203.0.113.7" {
		return "Kenya", "Nairobi", nil
	}
	return "", "", ErrInvalidIP
}

func (fakeLocator) Close() error { return nil }

func validEvent() map[string]interface{} {
	return map[string]interface{}{
		"tenant_id":     "acme",
		"user_id":       "u-1",
		"email":         "john.doe@example.com",
		"action":        "user.update",
		"resource_type": "user",
		"resource_id":   "u-1",
		"ip_address":    "203.0.113.7",
		"user_agent":    "Mozilla/5.0",
		"metadata":      map[string]interface{}{"request_id": "r-1"},
	}
}

func marshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestBridge_IngestsMaskedRecordAndNotifies(t *testing.T) {
	inserter := &fakeInserter{}
	q := &fakeQueue{}
	b := NewBridge(inserter, q, fakeLocator{}, zap.NewNop())

	err := b.HandleEvent(context.Background(), marshal(t, validEvent()))
	require.NoError(t, err)

	require.Len(t, inserter.inserted, 1)
	rec := inserter.inserted[0]
	assert.Equal(t, "acme", rec.TenantID)
	assert.Equal(t, "user.update", rec.Action)
	require.NotNil(t, rec.Email)
	assert.Equal(t, "joh*****************", *rec.Email)
	require.NotNil(t, rec.Country)
	assert.Equal(t, "Kenya", *rec.Country)
	assert.Equal(t, domain.SeverityInfo, rec.Severity)
	assert.False(t, rec.CreatedAt.IsZero())

	require.Len(t, q.published, 1)
	n, err := domain.DecodeLogNotification(q.published[0])
	require.NoError(t, err)
	assert.Equal(t, rec.ID.String(), n.RecordID)
	assert.Equal(t, "acme", n.TenantID)
}

func TestBridge_MalformedJSONIsBadEvent(t *testing.T) {
	b := NewBridge(&fakeInserter{}, &fakeQueue{}, nil, zap.NewNop())

	err := b.HandleEvent(context.Background(), []byte(`{not json`))
	assert.ErrorIs(t, err, ErrBadEvent)
}

func TestBridge_MissingRequiredFieldsIsBadEvent(t *testing.T) {
	ev := validEvent()
	delete(ev, "action")
	b := NewBridge(&fakeInserter{}, &fakeQueue{}, nil, zap.NewNop())

	err := b.HandleEvent(context.Background(), marshal(t, ev))
	assert.ErrorIs(t, err, ErrBadEvent)
}

func TestBridge_InsertFailureIsRetryable(t *testing.T) {
	inserter := &fakeInserter{err: errors.New("db down")}
	b := NewBridge(inserter, &fakeQueue{}, nil, zap.NewNop())

	err := b.HandleEvent(context.Background(), marshal(t, validEvent()))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrBadEvent))
}

func TestBridge_NilLocatorSkipsEnrichment(t *testing.T) {
	inserter := &fakeInserter{}
	b := NewBridge(inserter, &fakeQueue{}, nil, zap.NewNop())

	require.NoError(t, b.HandleEvent(context.Background(), marshal(t, validEvent())))
	require.Len(t, inserter.inserted, 1)
	assert.Nil(t, inserter.inserted[0].Country)
}

func TestPublisher_PublishEvent(t *testing.T) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, config)
	producer.ExpectSendMessageAndSucceed()

	p := NewPublisherWithProducer(producer, "audit.events")
	err := p.PublishEvent(context.Background(), "acme", validEvent())

	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestPublisher_PublishEventBrokerFailure(t *testing.T) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, config)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewPublisherWithProducer(producer, "audit.events")
	err := p.PublishEvent(context.Background(), "acme", validEvent())

	assert.Error(t, err)
}
