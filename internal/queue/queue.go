// Package queue provides the durable at-least-once notification queue the
// consumers drain. A received message stays invisible to other receivers for
// the visibility timeout; if it is not acknowledged in that window it is
// redelivered, so handlers must be idempotent.
package queue

import (
	"context"
	"time"
)

// Message is one delivery. ID doubles as the delivery handle passed to Ack.
type Message struct {
	ID   string
	Body []byte
}

type Queue interface {
	// Publish enqueues a message body.
	Publish(ctx context.Context, body []byte) error
	// Receive returns up to max messages, long-polling up to wait for the
	// first one. Returned messages are invisible until acknowledged or the
	// visibility timeout lapses.
	Receive(ctx context.Context, max int, wait time.Duration) ([]Message, error)
	// Ack removes a delivered message for good.
	Ack(ctx context.Context, msg Message) error
}
