package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestQueue(t *testing.T, visibility time.Duration) (*RedisQueue, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisQueue(client, "logs", visibility, zap.NewNop()), mr, client
}

func TestRedisQueue_PublishReceiveAck(t *testing.T) {
	q, _, _ := newTestQueue(t, 30*time.Second)
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, []byte(`{"n":1}`)))
	require.NoError(t, q.Publish(ctx, []byte(`{"n":2}`)))

	messages, err := q.Receive(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, []byte(`{"n":1}`), messages[0].Body)
	assert.Equal(t, []byte(`{"n":2}`), messages[1].Body)

	for _, msg := range messages {
		require.NoError(t, q.Ack(ctx, msg))
	}

	messages, err = q.Receive(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestRedisQueue_AckRemovesAllTraces(t *testing.T) {
	q, mr, _ := newTestQueue(t, 30*time.Second)
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, []byte(`{}`)))
	messages, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	require.NoError(t, q.Ack(ctx, messages[0]))

	assert.False(t, mr.Exists("q:logs:pending"))
	assert.False(t, mr.Exists("q:logs:processing"))
	assert.False(t, mr.Exists("q:logs:deadline"))
	assert.False(t, mr.Exists("q:logs:payload"))
}

func TestRedisQueue_ExpiredMessageIsRedelivered(t *testing.T) {
	q, _, _ := newTestQueue(t, time.Millisecond)
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, []byte(`{"n":1}`)))

	first, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, first, 1)

	time.Sleep(20 * time.Millisecond)

	second, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[0].Body, second[0].Body)
}

func TestRedisQueue_UnstampedProcessingIsReclaimed(t *testing.T) {
	q, _, client := newTestQueue(t, 30*time.Second)
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, []byte(`{"n":1}`)))

	first, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// A receiver that dies between the list move and the deadline stamp
	// leaves the id in processing with no zset member.
	require.NoError(t, client.ZRem(ctx, "q:logs:deadline", first[0].ID).Err())

	second, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[0].Body, second[0].Body)
}
