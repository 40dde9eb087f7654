// Package postgres implements the order-service ports on PostgreSQL via pgx.
//
// An order commit is one READ COMMITTED transaction: the order header, its
// items and the outbox row are inserted, then every product is decremented
// with "quantity = quantity - n WHERE quantity >= n" in ascending id order.
// The row lock taken by the UPDATE serializes concurrent orders for the same
// product, and the fixed lock order keeps multi-product orders deadlock-free.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jcmexdev/order-inventory/internal/order-service/domain"
	"github.com/jcmexdev/order-inventory/internal/pkg/outbox"
	"github.com/jcmexdev/order-inventory/internal/pkg/retry"
)

const schema = `
CREATE TABLE IF NOT EXISTS customers (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL DEFAULT '',
    email       TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS products (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL DEFAULT '',
    price       NUMERIC(10,2) NOT NULL,
    quantity    INTEGER NOT NULL CHECK (quantity >= 0),
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS orders (
    id           TEXT PRIMARY KEY,
    customer_id  TEXT NOT NULL REFERENCES customers(id),
    created_at   TIMESTAMPTZ NOT NULL,
    updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS orders_products (
    id          TEXT PRIMARY KEY,
    order_id    TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    product_id  TEXT NOT NULL REFERENCES products(id),
    position    INTEGER NOT NULL,
    price       NUMERIC(10,2) NOT NULL,
    quantity    INTEGER NOT NULL CHECK (quantity > 0),
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_products_order_id ON orders_products(order_id, position);

CREATE TABLE IF NOT EXISTS outbox (
    id          BIGSERIAL PRIMARY KEY,
    event_id    TEXT NOT NULL UNIQUE,
    topic       TEXT NOT NULL,
    key         TEXT NOT NULL,
    payload     JSONB NOT NULL,
    trace_context JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    sent_at     TIMESTAMPTZ
);

ALTER TABLE outbox ADD COLUMN IF NOT EXISTS trace_context JSONB NOT NULL DEFAULT '{}'::jsonb;

CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(id) WHERE sent_at IS NULL;
`

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

var (
	_ domain.CustomerDirectory = (*Store)(nil)
	_ domain.ProductCatalog    = (*Store)(nil)
	_ domain.Transactor        = (*Store)(nil)
	_ domain.OrderStore        = orderStore{}
	_ outbox.Source            = (*Store)(nil)
)

// Store implements every storage port on a PostgreSQL pool.
type Store struct {
	pool        *pgxpool.Pool
	topic       string
	retryWindow time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithEventsTopic sets the topic recorded on outbox rows.
func WithEventsTopic(topic string) Option {
	return func(s *Store) {
		if topic != "" {
			s.topic = topic
		}
	}
}

// WithRetryWindow bounds how long deadlock and serialization failures are retried.
func WithRetryWindow(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.retryWindow = d
		}
	}
}

// Open connects to databaseURL, pings it and applies the schema.
func Open(ctx context.Context, databaseURL string, opts ...Option) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: apply schema: %w", err)
	}

	s := &Store{pool: pool, topic: "order.events", retryWindow: 2 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) FindByID(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, email, created_at, updated_at FROM customers WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Email, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: find customer %q: %w", id, err)
	}
	return &c, nil
}

func (s *Store) FindAllByID(ctx context.Context, ids []string) ([]domain.Product, error) {
	return findProducts(ctx, s.pool, ids)
}

func (s *Store) UpdateQuantities(ctx context.Context, updates []domain.QuantityUpdate) error {
	return s.WithinTransaction(ctx, func(ctx context.Context, products domain.ProductCatalog, _ domain.OrderStore) error {
		return products.UpdateQuantities(ctx, updates)
	})
}

// Orders exposes the order side of the store; FindByID on Store resolves customers.
func (s *Store) Orders() domain.OrderStore {
	return orderStore{s}
}

type orderStore struct{ s *Store }

func (o orderStore) Create(ctx context.Context, customer domain.Customer, items []domain.OrderItem) (*domain.Order, error) {
	var order *domain.Order
	err := o.s.WithinTransaction(ctx, func(ctx context.Context, _ domain.ProductCatalog, orders domain.OrderStore) error {
		var err error
		order, err = orders.Create(ctx, customer, items)
		return err
	})
	return order, err
}

func (o orderStore) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	return findOrder(ctx, o.s.pool, id)
}

// WithinTransaction runs fn in a pgx transaction and rolls it back on any
// error. Deadlocks and serialization failures re-run fn from scratch.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context, products domain.ProductCatalog, orders domain.OrderStore) error) error {
	return retry.Do(ctx, s.retryWindow, isConflict, func() error {
		tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
		if err != nil {
			return fmt.Errorf("postgres: begin: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		repo := &txRepo{q: tx, topic: s.topic}
		if err := fn(ctx, repo, repo); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("postgres: commit: %w", err)
		}
		return nil
	})
}

// Seed upserts customers and products.
func (s *Store) Seed(ctx context.Context, customers []domain.Customer, products []domain.Product) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, c := range customers {
		if _, err := tx.Exec(ctx,
			`INSERT INTO customers (id, name, email) VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email, updated_at = now()`,
			c.ID, c.Name, c.Email,
		); err != nil {
			return fmt.Errorf("postgres: seed customer %q: %w", c.ID, err)
		}
	}
	for _, p := range products {
		if _, err := tx.Exec(ctx,
			`INSERT INTO products (id, name, price, quantity) VALUES ($1, $2, $3::text::numeric, $4)
			 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price,
			     quantity = EXCLUDED.quantity, updated_at = now()`,
			p.ID, p.Name, domain.NormalizePrice(p.Price).StringFixed(domain.PriceScale), p.Quantity,
		); err != nil {
			return fmt.Errorf("postgres: seed product %q: %w", p.ID, err)
		}
	}
	return tx.Commit(ctx)
}

func isConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
	}
	return false
}
