package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jcmexdev/order-inventory/internal/pkg/outbox"
)

func (s *Store) FetchPending(ctx context.Context, limit int) ([]outbox.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, event_id, topic, key, payload, trace_context, created_at, sent_at FROM outbox WHERE sent_at IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch outbox: %w", err)
	}
	defer rows.Close()

	var out []outbox.Record
	for rows.Next() {
		var rec outbox.Record
		var traceContext []byte
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.Topic, &rec.Key, &rec.Payload, &traceContext, &rec.CreatedAt, &rec.SentAt); err != nil {
			return nil, fmt.Errorf("postgres: scan outbox: %w", err)
		}
		if err := json.Unmarshal(traceContext, &rec.TraceContext); err != nil {
			return nil, fmt.Errorf("postgres: decode trace context of outbox %d: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) MarkSent(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, `UPDATE outbox SET sent_at = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: mark outbox %d sent: %w", id, err)
	}
	return nil
}
