package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/order-inventory/internal/order-service/adapters/memory"
	"github.com/jcmexdev/order-inventory/internal/order-service/app"
	"github.com/jcmexdev/order-inventory/internal/order-service/domain"
)

var errDisk = errors.New("disk on fire")

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// newStore seeds customer c-1 and the given products.
func newStore(t *testing.T, products ...domain.Product) *memory.Store {
	t.Helper()
	s := memory.NewStore()
	require.NoError(t, s.Seed(context.Background(),
		[]domain.Customer{{ID: "c-1", Name: "Ada"}},
		products,
	))
	return s
}

func newService(s *memory.Store, opts ...app.Option) *app.OrderService {
	return app.NewOrderService(s, s, s.Orders(), s, opts...)
}

// testingT is satisfied by *testing.T and *rapid.T.
type testingT interface {
	require.TestingT
	Helper()
}

func stockOf(t testingT, s *memory.Store, id string) int {
	t.Helper()
	ps, err := s.FindAllByID(context.Background(), []string{id})
	require.NoError(t, err)
	require.Len(t, ps, 1)
	return ps[0].Quantity
}

// countingDirectory records lookups and delegates to next.
type countingDirectory struct {
	next  domain.CustomerDirectory
	mu    sync.Mutex
	calls int
}

func (d *countingDirectory) FindByID(ctx context.Context, id string) (*domain.Customer, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	return d.next.FindByID(ctx, id)
}

type countingCatalog struct {
	domain.ProductCatalog
	mu    sync.Mutex
	calls int
	ids   [][]string
}

func (c *countingCatalog) FindAllByID(ctx context.Context, ids []string) ([]domain.Product, error) {
	c.mu.Lock()
	c.calls++
	c.ids = append(c.ids, append([]string(nil), ids...))
	c.mu.Unlock()
	return c.ProductCatalog.FindAllByID(ctx, ids)
}

// staleCatalog reports a fixed snapshot instead of the live stock.
type staleCatalog struct {
	domain.ProductCatalog
	snapshot []domain.Product
}

func (c staleCatalog) FindAllByID(context.Context, []string) ([]domain.Product, error) {
	return c.snapshot, nil
}

type slowDirectory struct{}

func (slowDirectory) FindByID(ctx context.Context, _ string) (*domain.Customer, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type failingDirectory struct{ err error }

func (d failingDirectory) FindByID(context.Context, string) (*domain.Customer, error) {
	return nil, d.err
}

// faultyTx runs the real transaction but fails the decrement step, recording
// the id of the order created before the failure.
type faultyTx struct {
	inner     domain.Transactor
	err       error
	createdID string
}

func (f *faultyTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context, products domain.ProductCatalog, orders domain.OrderStore) error) error {
	return f.inner.WithinTransaction(ctx, func(ctx context.Context, products domain.ProductCatalog, orders domain.OrderStore) error {
		return fn(ctx, failingUpdates{products, f.err}, recordingOrders{orders, f})
	})
}

type failingUpdates struct {
	domain.ProductCatalog
	err error
}

func (f failingUpdates) UpdateQuantities(context.Context, []domain.QuantityUpdate) error {
	return f.err
}

type recordingOrders struct {
	domain.OrderStore
	tx *faultyTx
}

func (r recordingOrders) Create(ctx context.Context, c domain.Customer, items []domain.OrderItem) (*domain.Order, error) {
	o, err := r.OrderStore.Create(ctx, c, items)
	if err == nil {
		r.tx.createdID = o.ID
	}
	return o, err
}

// slowCommit blocks inside the transaction until the deadline passes.
type slowCommit struct{ inner domain.Transactor }

func (s slowCommit) WithinTransaction(ctx context.Context, fn func(ctx context.Context, products domain.ProductCatalog, orders domain.OrderStore) error) error {
	return s.inner.WithinTransaction(ctx, func(ctx context.Context, products domain.ProductCatalog, orders domain.OrderStore) error {
		if err := fn(ctx, products, orders); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
		return nil
	})
}

type recordingMetrics struct {
	mu       sync.Mutex
	created  int
	rejected map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{rejected: make(map[string]int)}
}

func (m *recordingMetrics) OrderCreated(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
}

func (m *recordingMetrics) OrderRejected(reason string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[reason]++
}
