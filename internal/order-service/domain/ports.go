package domain

import "context"

// CustomerDirectory resolves customers. FindByID returns ErrCustomerNotFound
// when the id is unknown.
type CustomerDirectory interface {
	FindByID(ctx context.Context, id string) (*Customer, error)
}

// ProductCatalog owns product prices and available quantities.
type ProductCatalog interface {
	// FindAllByID returns the subset of ids that exist, in no particular order.
	FindAllByID(ctx context.Context, ids []string) ([]Product, error)

	// UpdateQuantities decrements stock for every update, only where the
	// available quantity covers it. If any update cannot be applied the
	// returned error wraps ErrInsufficientStock and callers must discard the
	// enclosing transaction; no partial update may survive it.
	UpdateQuantities(ctx context.Context, updates []QuantityUpdate) error
}

// OrderStore is the source of truth for committed orders.
type OrderStore interface {
	// Create persists the order header and its items, assigning ids and timestamps.
	Create(ctx context.Context, customer Customer, items []OrderItem) (*Order, error)
	FindByID(ctx context.Context, id string) (*Order, error)
}

// Transactor runs fn as one atomic unit. The catalog and store handed to fn are
// bound to that unit: when fn returns an error nothing it did is kept.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, products ProductCatalog, orders OrderStore) error) error
}
