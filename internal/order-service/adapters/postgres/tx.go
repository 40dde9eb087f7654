package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-inventory/internal/order-service/domain"
	"github.com/jcmexdev/order-inventory/internal/pkg/outbox"
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type txRepo struct {
	q     querier
	topic string
}

func (r *txRepo) FindAllByID(ctx context.Context, ids []string) ([]domain.Product, error) {
	return findProducts(ctx, r.q, ids)
}

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

	var short []string
	for _, id := range ids {
		n := totals[id]
		tag, err := r.q.Exec(ctx,
			`UPDATE products SET quantity = quantity - $2, updated_at = now() WHERE id = $1 AND quantity >= $2`,
			id, n,
		)
		if err != nil {
			return fmt.Errorf("postgres: decrement %q: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			short = append(short, id)
		}
	}
	if len(short) > 0 {
		return &domain.StockError{ProductIDs: short}
	}
	return nil
}

func (r *txRepo) Create(ctx context.Context, customer domain.Customer, items []domain.OrderItem) (*domain.Order, error) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	order := &domain.Order{
		ID:         uuid.NewString(),
		CustomerID: customer.ID,
		Items:      make([]domain.OrderItem, len(items)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if _, err := r.q.Exec(ctx,
		`INSERT INTO orders (id, customer_id, created_at, updated_at) VALUES ($1, $2, $3, $3)`,
		order.ID, order.CustomerID, now,
	); err != nil {
		return nil, fmt.Errorf("postgres: insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for i, it := range items {
		it.ID = uuid.NewString()
		batch.Queue(
			`INSERT INTO orders_products (id, order_id, product_id, position, price, quantity, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5::text::numeric, $6, $7, $7)`,
			it.ID, order.ID, it.ProductID, i, it.Price.StringFixed(domain.PriceScale), it.Quantity, now,
		)
		order.Items[i] = it
	}

	eventID := uuid.NewString()
	payload, err := json.Marshal(domain.NewOrderCreatedEvent(eventID, order))
	if err != nil {
		return nil, fmt.Errorf("postgres: encode order event: %w", err)
	}
	traceContext, err := json.Marshal(outbox.CaptureTrace(ctx))
	if err != nil {
		return nil, fmt.Errorf("postgres: encode trace context: %w", err)
	}
	batch.Queue(
		`INSERT INTO outbox (event_id, topic, key, payload, trace_context) VALUES ($1, $2, $3, $4, $5)`,
		eventID, r.topic, order.ID, payload, traceContext,
	)

	if err := r.q.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("postgres: insert items of order %q: %w", order.ID, err)
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
	rows, err := q.Query(ctx,
		`SELECT id, name, price::text, quantity, created_at, updated_at FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: find products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		var p domain.Product
		var price string
		if err := rows.Scan(&p.ID, &p.Name, &price, &p.Quantity, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan product: %w", err)
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("postgres: parse price of %q: %w", p.ID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func findOrder(ctx context.Context, q querier, id string) (*domain.Order, error) {
	var o domain.Order
	err := q.QueryRow(ctx,
		`SELECT id, customer_id, created_at, updated_at FROM orders WHERE id = $1`, id,
	).Scan(&o.ID, &o.CustomerID, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: find order %q: %w", id, err)
	}

	rows, err := q.Query(ctx,
		`SELECT id, product_id, price::text, quantity FROM orders_products WHERE order_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("postgres: find items of %q: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.OrderItem
		var price string
		if err := rows.Scan(&it.ID, &it.ProductID, &price, &it.Quantity); err != nil {
			return nil, fmt.Errorf("postgres: scan item: %w", err)
		}
		if it.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("postgres: parse item price: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: read items of %q: %w", id, err)
	}
	return &o, nil
}
