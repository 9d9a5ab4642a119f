package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// consumeBackoff is the pause before re-entering the group after a
// handler-induced session error.
const consumeBackoff = time.Second

// Consumer wraps a sarama consumer group feeding the ingest bridge.
type Consumer struct {
	group   sarama.ConsumerGroup
	bridge  *Bridge
	topics  []string
	backoff time.Duration
	logger  *zap.Logger
}

func NewConsumer(brokers []string, groupID, topic string, bridge *Bridge, logger *zap.Logger) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	return &Consumer{
		group:   group,
		bridge:  bridge,
		topics:  []string{topic},
		backoff: consumeBackoff,
		logger:  logger,
	}, nil
}

// Start consumes until ctx is cancelled. A session error from a transient
// handler failure does not terminate the loop: the group is re-entered after
// a short backoff and the unmarked offset is redelivered.
func (c *Consumer) Start(ctx context.Context) error {
	handler := &groupHandler{bridge: c.bridge, logger: c.logger}

	for {
		err := c.group.Consume(ctx, c.topics, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return err
		}
		if err != nil {
			c.logger.Error("kafka consume error, retrying", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff):
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type groupHandler struct {
	bridge *Bridge
	logger *zap.Logger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		err := h.bridge.HandleEvent(session.Context(), message.Value)
		if err != nil && !errors.Is(err, ErrBadEvent) {
			// Transient failure: leave the offset unmarked so the event is
			// redelivered when Start re-enters the group.
			h.logger.Error("ingest failed, leaving offset unmarked", zap.Error(err))
			return err
		}
		if err != nil {
			h.logger.Warn("skipping bad audit event", zap.Error(err))
		}
		session.MarkMessage(message, "")
	}
	return nil
}

// Publisher is the producer used by upstream services (and fixtures) to emit
// raw audit events onto the ingest topic.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create producer: %w", err)
	}
	return &Publisher{producer: producer, topic: topic}, nil
}

// NewPublisherWithProducer wires an existing producer; used in tests.
func NewPublisherWithProducer(producer sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic}
}

// PublishEvent emits one raw audit event keyed by tenant so one tenant's
// events stay on one partition.
func (p *Publisher) PublishEvent(ctx context.Context, tenantID string, event map[string]interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(tenantID),
		Value: sarama.ByteEncoder(data),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("send audit event: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}
