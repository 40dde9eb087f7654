// Package sqlite provides a SQLite-backed implementation of the customer
// directory, product catalog, order store and outbox.
//
// The database runs in WAL mode with a single open connection, so SQLite
// itself serializes writers. The stock decrement is still conditional
// (quantity >= requested) and checked by affected rows, so the same code is
// correct under any connection count.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/jcmexdev/order-inventory/internal/order-service/domain"
	"github.com/jcmexdev/order-inventory/internal/pkg/outbox"
	"github.com/jcmexdev/order-inventory/internal/pkg/retry"
)

const schema = `
CREATE TABLE IF NOT EXISTS customers (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL DEFAULT '',
    email       TEXT NOT NULL DEFAULT '',
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS products (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL DEFAULT '',
    -- decimal string with two fractional digits
    price       TEXT NOT NULL,
    quantity    INTEGER NOT NULL CHECK (quantity >= 0),
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
    id           TEXT PRIMARY KEY,
    customer_id  TEXT NOT NULL REFERENCES customers(id),
    created_at   TEXT NOT NULL,
    updated_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS orders_products (
    id          TEXT PRIMARY KEY,
    order_id    TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    product_id  TEXT NOT NULL REFERENCES products(id),
    position    INTEGER NOT NULL,
    price       TEXT NOT NULL,
    quantity    INTEGER NOT NULL CHECK (quantity > 0),
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_products_order_id ON orders_products(order_id, position);

CREATE TABLE IF NOT EXISTS outbox (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    event_id    TEXT NOT NULL UNIQUE,
    topic       TEXT NOT NULL,
    key         TEXT NOT NULL,
    payload     TEXT NOT NULL,
    trace_context TEXT NOT NULL DEFAULT '{}',
    created_at  TEXT NOT NULL,
    sent_at     TEXT
);

CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(sent_at, id);
`

var (
	_ domain.CustomerDirectory = (*Store)(nil)
	_ domain.ProductCatalog    = (*Store)(nil)
	_ domain.Transactor        = (*Store)(nil)
	_ domain.OrderStore        = orderStore{}
	_ outbox.Source            = (*Store)(nil)
)

// Store implements every storage port on a single SQLite database.
type Store struct {
	db          *sql.DB
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

// WithRetryWindow bounds how long a busy database is retried.
func WithRetryWindow(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.retryWindow = d
		}
	}
}

// Open opens (or creates) the database at path and applies the schema.
//
//	store, err := sqlite.Open("./data/orders.db")
func Open(path string, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir %q: %w", dir, err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, topic: "order.events", retryWindow: 2 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) FindByID(ctx context.Context, id string) (*domain.Customer, error) {
	const q = `SELECT id, name, email, created_at, updated_at FROM customers WHERE id = ?`

	var c domain.Customer
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, q, id).Scan(&c.ID, &c.Name, &c.Email, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: find customer %q: %w", id, err)
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) FindAllByID(ctx context.Context, ids []string) ([]domain.Product, error) {
	return findProducts(ctx, s.db, ids)
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
	return findOrder(ctx, o.s.db, id)
}

// WithinTransaction runs fn in one SQLite transaction, retrying it while the
// database reports SQLITE_BUSY.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context, products domain.ProductCatalog, orders domain.OrderStore) error) error {
	return retry.Do(ctx, s.retryWindow, isBusy, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("sqlite: begin: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		repo := &txRepo{q: tx, topic: s.topic}
		if err := fn(ctx, repo, repo); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("sqlite: commit: %w", err)
		}
		return nil
	})
}

// Seed inserts or replaces customers and products.
func (s *Store) Seed(ctx context.Context, customers []domain.Customer, products []domain.Product) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := formatTime(time.Now())
	for _, c := range customers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO customers (id, name, email, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name, email = excluded.email, updated_at = excluded.updated_at`,
			c.ID, c.Name, c.Email, now, now,
		); err != nil {
			return fmt.Errorf("sqlite: seed customer %q: %w", c.ID, err)
		}
	}
	for _, p := range products {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO products (id, name, price, quantity, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name, price = excluded.price,
			     quantity = excluded.quantity, updated_at = excluded.updated_at`,
			p.ID, p.Name, domain.NormalizePrice(p.Price).StringFixed(domain.PriceScale), p.Quantity, now, now,
		); err != nil {
			return fmt.Errorf("sqlite: seed product %q: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return nil
}

func isBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code() & 0xff
	return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
}
