package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jcmexdev/order-inventory/internal/pkg/outbox"
)

func (s *Store) FetchPending(ctx context.Context, limit int) ([]outbox.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event_id, topic, key, payload, trace_context, created_at FROM outbox WHERE sent_at IS NULL ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: fetch outbox: %w", err)
	}
	defer rows.Close()

	var out []outbox.Record
	for rows.Next() {
		var rec outbox.Record
		var payload, traceContext, createdAt string
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.Topic, &rec.Key, &payload, &traceContext, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan outbox: %w", err)
		}
		rec.Payload = json.RawMessage(payload)
		if err := json.Unmarshal([]byte(traceContext), &rec.TraceContext); err != nil {
			return nil, fmt.Errorf("sqlite: decode trace context of outbox %d: %w", rec.ID, err)
		}
		if rec.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) MarkSent(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE outbox SET sent_at = ? WHERE id = ? AND sent_at IS NULL`, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("sqlite: mark outbox %d sent: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("sqlite: mark outbox %d sent: %w", id, sql.ErrNoRows)
	}
	return nil
}
