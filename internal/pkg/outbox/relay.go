package outbox

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultBatchSize = 100
	defaultInterval  = time.Second
)

// Relay polls a Source and publishes pending records in id order. A record is
// marked sent only after a successful publish, so delivery is at-least-once.
type Relay struct {
	source    Source
	publisher Publisher
	interval  time.Duration
	batchSize int
}

// NewRelay returns a Relay polling every interval for up to batchSize records.
// Non-positive values fall back to defaults.
func NewRelay(source Source, publisher Publisher, interval time.Duration, batchSize int) *Relay {
	if interval <= 0 {
		interval = defaultInterval
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Relay{
		source:    source,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "outbox relay started", "interval", r.interval.String())

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
			slog.ErrorContext(ctx, "outbox flush failed", "error", err)
		}
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "outbox relay stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Flush publishes one batch and returns how many records were sent. It stops
// at the first publish failure so that ordering per key is preserved.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	records, err := r.source.FetchPending(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, rec := range records {
		if err := r.publisher.Publish(ctx, rec); err != nil {
			return sent, err
		}
		if err := r.source.MarkSent(ctx, rec.ID); err != nil {
			return sent, err
		}
		sent++
		slog.DebugContext(ctx, "outbox record published", "event_id", rec.EventID, "topic", rec.Topic, "key", rec.Key)
	}
	return sent, nil
}
