package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisQueue implements Queue on top of Redis. Layout per logical queue:
//
//	q:<name>:pending    list of message ids awaiting delivery
//	q:<name>:processing list of delivered-but-unacked ids
//	q:<name>:deadline   zset id -> visibility deadline (unix ms)
//	q:<name>:payload    hash id -> body
//
// Receive moves ids pending->processing and stamps a deadline; Ack removes
// all traces. Expired processing entries are pushed back to pending on the
// next Receive, which is what produces redelivery. The reclaim pass is not
// atomic with delivery, so a message can occasionally be delivered twice;
// consumers already tolerate that.
type RedisQueue struct {
	client     *redis.Client
	name       string
	visibility time.Duration
	logger     *zap.Logger
}

func NewRedisQueue(client *redis.Client, name string, visibility time.Duration, logger *zap.Logger) *RedisQueue {
	return &RedisQueue{
		client:     client,
		name:       name,
		visibility: visibility,
		logger:     logger,
	}
}

func (q *RedisQueue) Publish(ctx context.Context, body []byte) error {
	id := uuid.NewString()

	if err := q.client.HSet(ctx, q.key("payload"), id, body).Err(); err != nil {
		return fmt.Errorf("store payload: %w", err)
	}
	if err := q.client.LPush(ctx, q.key("pending"), id).Err(); err != nil {
		return fmt.Errorf("enqueue message: %w", err)
	}

	q.logger.Debug("published queue message",
		zap.String("queue", q.name),
		zap.String("message_id", id))
	return nil
}

func (q *RedisQueue) Receive(ctx context.Context, max int, wait time.Duration) ([]Message, error) {
	if err := q.reclaimExpired(ctx); err != nil {
		q.logger.Warn("reclaim expired messages failed",
			zap.String("queue", q.name), zap.Error(err))
	}

	var messages []Message
	for len(messages) < max {
		var id string
		var err error

		if len(messages) == 0 && wait > 0 {
			id, err = q.client.BLMove(ctx, q.key("pending"), q.key("processing"), "RIGHT", "LEFT", wait).Result()
		} else {
			id, err = q.client.LMove(ctx, q.key("pending"), q.key("processing"), "RIGHT", "LEFT").Result()
		}
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return messages, fmt.Errorf("receive from queue %s: %w", q.name, err)
		}

		deadline := time.Now().Add(q.visibility).UnixMilli()
		if err := q.client.ZAdd(ctx, q.key("deadline"), redis.Z{
			Score:  float64(deadline),
			Member: id,
		}).Err(); err != nil {
			return messages, fmt.Errorf("stamp visibility deadline: %w", err)
		}

		body, err := q.client.HGet(ctx, q.key("payload"), id).Result()
		if errors.Is(err, redis.Nil) {
			// Acked by a concurrent receiver between move and fetch; drop the
			// dangling id.
			q.client.LRem(ctx, q.key("processing"), 1, id)
			q.client.ZRem(ctx, q.key("deadline"), id)
			continue
		}
		if err != nil {
			return messages, fmt.Errorf("fetch payload: %w", err)
		}

		messages = append(messages, Message{ID: id, Body: []byte(body)})
	}
	return messages, nil
}

func (q *RedisQueue) Ack(ctx context.Context, msg Message) error {
	if err := q.client.LRem(ctx, q.key("processing"), 1, msg.ID).Err(); err != nil {
		return fmt.Errorf("ack message %s: %w", msg.ID, err)
	}
	if err := q.client.ZRem(ctx, q.key("deadline"), msg.ID).Err(); err != nil {
		return fmt.Errorf("ack message %s: %w", msg.ID, err)
	}
	if err := q.client.HDel(ctx, q.key("payload"), msg.ID).Err(); err != nil {
		return fmt.Errorf("ack message %s: %w", msg.ID, err)
	}
	return nil
}

// reclaimExpired moves processing entries whose visibility deadline has
// passed back onto the pending list. It also returns processing ids with no
// deadline stamp at all (the stamp write failed, or the receiver died between
// move and stamp); without this they would never be redelivered.
func (q *RedisQueue) reclaimExpired(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	ids, err := q.client.ZRangeByScore(ctx, q.key("deadline"), &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return err
	}

	for _, id := range ids {
		removed, err := q.client.LRem(ctx, q.key("processing"), 1, id).Result()
		if err != nil {
			return err
		}
		if err := q.client.ZRem(ctx, q.key("deadline"), id).Err(); err != nil {
			return err
		}
		if removed > 0 {
			if err := q.client.LPush(ctx, q.key("pending"), id).Err(); err != nil {
				return err
			}
			q.logger.Info("redelivering expired message",
				zap.String("queue", q.name),
				zap.String("message_id", id))
		}
	}

	processing, err := q.client.LRange(ctx, q.key("processing"), 0, -1).Result()
	if err != nil {
		return err
	}
	for _, id := range processing {
		err := q.client.ZScore(ctx, q.key("deadline"), id).Err()
		if err == nil {
			continue
		}
		if !errors.Is(err, redis.Nil) {
			return err
		}
		removed, err := q.client.LRem(ctx, q.key("processing"), 1, id).Result()
		if err != nil {
			return err
		}
		if removed > 0 {
			if err := q.client.LPush(ctx, q.key("pending"), id).Err(); err != nil {
				return err
			}
			q.logger.Info("redelivering unstamped message",
				zap.String("queue", q.name),
				zap.String("message_id", id))
		}
	}
	return nil
}

func (q *RedisQueue) key(part string) string {
	return "q:" + q.name + ":" + part
}
