package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-inventory/internal/order-service/domain"
	"github.com/jcmexdev/order-inventory/internal/pkg/outbox"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// txRepo is the catalog and order store bound to one transaction.
type txRepo struct {
	q     querier
	topic string
}

func (r *txRepo) FindAllByID(ctx context.Context, ids []string) ([]domain.Product, error) {
	return findProducts(ctx, r.q, ids)
}

// UpdateQuantities applies conditional decrements in ascending id order. A
// decrement that matches no row means the stock no longer covers it.
func (r *txRepo) UpdateQuantities(ctx context.Context, updates []domain.QuantityUpdate) error {
	totals, err := domain.SumUpdates(updates)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	const q = `
		UPDATE products
		SET    quantity = quantity - ?, updated_at = ?
		WHERE  id = ? AND quantity >= ?`

	now := formatTime(time.Now())
	var short []string
	for _, id := range ids {
		n := totals[id]
		res, err := r.q.ExecContext(ctx, q, n, now, id, n)
		if err != nil {
			return fmt.Errorf("sqlite: decrement %q: %w", id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: decrement %q: %w", id, err)
		}
		if affected == 0 {
			short = append(short, id)
		}
	}
	if len(short) > 0 {
		return &domain.StockError{ProductIDs: short}
	}
	return nil
}

// Create inserts the order header, its items in request order and the
// order.created outbox row.
func (r *txRepo) Create(ctx context.Context, customer domain.Customer, items []domain.OrderItem) (*domain.Order, error) {
	now := time.Now().UTC()
	order := &domain.Order{
		ID:         uuid.NewString(),
		CustomerID: customer.ID,
		Items:      make([]domain.OrderItem, len(items)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	ts := formatTime(now)

	if _, err := r.q.ExecContext(ctx,
		`INSERT INTO orders (id, customer_id, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		order.ID, order.CustomerID, ts, ts,
	); err != nil {
		return nil, fmt.Errorf("sqlite: insert order: %w", err)
	}

	for i, it := range items {
		it.ID = uuid.NewString()
		if _, err := r.q.ExecContext(ctx,
			`INSERT INTO orders_products (id, order_id, product_id, position, price, quantity, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ID, order.ID, it.ProductID, i, it.Price.StringFixed(domain.PriceScale), it.Quantity, ts, ts,
		); err != nil {
			return nil, fmt.Errorf("sqlite: insert item %q of order %q: %w", it.ProductID, order.ID, err)
		}
		order.Items[i] = it
	}

	eventID := uuid.NewString()
	payload, err := json.Marshal(domain.NewOrderCreatedEvent(eventID, order))
	if err != nil {
		return nil, fmt.Errorf("sqlite: encode order event: %w", err)
	}
	traceContext, err := json.Marshal(outbox.CaptureTrace(ctx))
	if err != nil {
		return nil, fmt.Errorf("sqlite: encode trace context: %w", err)
	}
	if _, err := r.q.ExecContext(ctx,
		`INSERT INTO outbox (event_id, topic, key, payload, trace_context, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		eventID, r.topic, order.ID, string(payload), string(traceContext), ts,
	); err != nil {
		return nil, fmt.Errorf("sqlite: insert outbox row: %w", err)
	}

	return order, nil
}

func (r *txRepo) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	return findOrder(ctx, r.q, id)
}

func findProducts(ctx context.Context, q querier, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT id, name, price, quantity, created_at, updated_at FROM products WHERE id IN (` +
		strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",") + `)`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: find products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		var p domain.Product
		var price, createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.Name, &price, &p.Quantity, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan product: %w", err)
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("sqlite: parse price of %q: %w", p.ID, err)
		}
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func findOrder(ctx context.Context, q querier, id string) (*domain.Order, error) {
	var o domain.Order
	var createdAt, updatedAt string
	err := q.QueryRowContext(ctx,
		`SELECT id, customer_id, created_at, updated_at FROM orders WHERE id = ?`, id,
	).Scan(&o.ID, &o.CustomerID, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: find order %q: %w", id, err)
	}
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if o.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, product_id, price, quantity FROM orders_products WHERE order_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: find items of %q: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.OrderItem
		var price string
		if err := rows.Scan(&it.ID, &it.ProductID, &price, &it.Quantity); err != nil {
			return nil, fmt.Errorf("sqlite: scan item: %w", err)
		}
		if it.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("sqlite: parse item price: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: read items of %q: %w", id, err)
	}
	return &o, nil
}
