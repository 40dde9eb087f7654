// Package outbox carries events written in the same transaction as the
// business data out to the message broker.
package outbox

import (
	"context"
	"encoding/json"
	"time"
)

// Record is one event awaiting delivery. TraceContext holds the W3C headers
// of the span that wrote it.
type Record struct {
	ID           int64             `json:"id"`
	EventID      string            `json:"event_id"`
	Topic        string            `json:"topic"`
	Key          string            `json:"key"`
	Payload      json.RawMessage   `json:"payload"`
	TraceContext map[string]string `json:"trace_context,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	SentAt       *time.Time        `json:"sent_at,omitempty"`
}

// Source is implemented by the stores that write outbox rows.
type Source interface {
	FetchPending(ctx context.Context, limit int) ([]Record, error)
	MarkSent(ctx context.Context, id int64) error
}

// Publisher delivers one record to the broker.
type Publisher interface {
	Publish(ctx context.Context, rec Record) error
}
