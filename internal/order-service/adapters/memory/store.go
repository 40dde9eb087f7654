// Package memory keeps customers, products and orders in process memory.
// A single mutex serializes transactions, which makes the stock check and
// the decrement of one transaction atomic with respect to every other one.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jcmexdev/order-inventory/internal/order-service/domain"
)

var (
	_ domain.CustomerDirectory = (*Store)(nil)
	_ domain.ProductCatalog    = (*Store)(nil)
	_ domain.Transactor        = (*Store)(nil)
	_ domain.OrderStore        = orderStore{}
	_ domain.OrderStore        = (*txView)(nil)
)

// Store implements every storage port in memory.
type Store struct {
	mu        sync.RWMutex
	customers map[string]domain.Customer
	products  map[string]domain.Product
	orders    map[string]*domain.Order
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		customers: make(map[string]domain.Customer),
		products:  make(map[string]domain.Product),
		orders:    make(map[string]*domain.Order),
	}
}

// Seed inserts or replaces customers and products.
func (s *Store) Seed(_ context.Context, customers []domain.Customer, products []domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, c := range customers {
		if c.CreatedAt.IsZero() {
			c.CreatedAt, c.UpdatedAt = now, now
		}
		s.customers[c.ID] = c
	}
	for _, p := range products {
		if p.Quantity < 0 {
			return fmt.Errorf("memory: product %s has negative quantity %d", p.ID, p.Quantity)
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt, p.UpdatedAt = now, now
		}
		p.Price = domain.NormalizePrice(p.Price)
		s.products[p.ID] = p
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, domain.ErrCustomerNotFound
	}
	return &c, nil
}

func (s *Store) FindAllByID(ctx context.Context, ids []string) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&txView{store: s}).FindAllByID(ctx, ids)
}

func (s *Store) UpdateQuantities(ctx context.Context, updates []domain.QuantityUpdate) error {
	return s.WithinTransaction(ctx, func(ctx context.Context, products domain.ProductCatalog, _ domain.OrderStore) error {
		return products.UpdateQuantities(ctx, updates)
	})
}

func (s *Store) Create(ctx context.Context, customer domain.Customer, items []domain.OrderItem) (*domain.Order, error) {
	var order *domain.Order
	err := s.WithinTransaction(ctx, func(ctx context.Context, _ domain.ProductCatalog, orders domain.OrderStore) error {
		var err error
		order, err = orders.Create(ctx, customer, items)
		return err
	})
	return order, err
}

// FindOrder is the order lookup; FindByID on Store resolves customers.
func (s *Store) FindOrder(ctx context.Context, id string) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&txView{store: s}).findOrder(id)
}

// Orders exposes the store through the domain.OrderStore contract.
func (s *Store) Orders() domain.OrderStore { return orderStore{s} }

// WithinTransaction holds the write lock for the whole of fn and applies the
// staged changes only when fn succeeds and ctx is still live.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context, products domain.ProductCatalog, orders domain.OrderStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &txView{store: s, decrements: make(map[string]int)}
	if err := fn(ctx, tx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	now := time.Now().UTC()
	for id, n := range tx.decrements {
		p := s.products[id]
		p.Quantity -= n
		p.UpdatedAt = now
		s.products[id] = p
	}
	for _, o := range tx.pending {
		s.orders[o.ID] = o
	}
	slog.DebugContext(ctx, "memory transaction committed", "orders", len(tx.pending), "products", len(tx.decrements))
	return nil
}

// orderStore adapts Store to domain.OrderStore, whose FindByID clashes with
// the customer lookup.
type orderStore struct{ s *Store }

func (o orderStore) Create(ctx context.Context, customer domain.Customer, items []domain.OrderItem) (*domain.Order, error) {
	return o.s.Create(ctx, customer, items)
}

func (o orderStore) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	return o.s.FindOrder(ctx, id)
}

// txView stages writes of one transaction. The store lock is held by the
// caller for as long as a txView is in use.
type txView struct {
	store      *Store
	decrements map[string]int
	pending    []*domain.Order
}

func (t *txView) FindAllByID(_ context.Context, ids []string) ([]domain.Product, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		p, ok := t.store.products[id]
		if !ok {
			continue
		}
		p.Quantity -= t.decrements[id]
		out = append(out, p)
	}
	return out, nil
}

func (t *txView) UpdateQuantities(_ context.Context, updates []domain.QuantityUpdate) error {
	staged, err := domain.SumUpdates(updates)
	if err != nil {
		return err
	}
	for id := range staged {
		if _, ok := t.store.products[id]; !ok {
			return fmt.Errorf("%w: unknown product id %s", domain.ErrInvalidProducts, id)
		}
	}

	var short []string
	for id, n := range staged {
		if n > t.store.products[id].Quantity-t.decrements[id] {
			short = append(short, id)
		}
	}
	if len(short) > 0 {
		sort.Strings(short)
		return &domain.StockError{ProductIDs: short}
	}
	for id, n := range staged {
		t.decrements[id] += n
	}
	return nil
}

func (t *txView) Create(_ context.Context, customer domain.Customer, items []domain.OrderItem) (*domain.Order, error) {
	if _, ok := t.store.customers[customer.ID]; !ok {
		return nil, domain.ErrCustomerNotFound
	}
	now := time.Now().UTC()
	order := &domain.Order{
		ID:         uuid.NewString(),
		CustomerID: customer.ID,
		Items:      make([]domain.OrderItem, len(items)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for i, it := range items {
		it.ID = uuid.NewString()
		order.Items[i] = it
	}
	t.pending = append(t.pending, order)
	return cloneOrder(order), nil
}

func (t *txView) FindByID(_ context.Context, id string) (*domain.Order, error) {
	for _, o := range t.pending {
		if o.ID == id {
			return cloneOrder(o), nil
		}
	}
	return t.findOrder(id)
}

func (t *txView) findOrder(id string) (*domain.Order, error) {
	o, ok := t.store.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.OrderItem(nil), o.Items...)
	return &c
}
