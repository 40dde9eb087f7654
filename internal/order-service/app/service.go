package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/order-inventory/internal/order-service/domain"
)

const defaultStoreTimeout = 3 * time.Second

// Metrics receives the outcome of every CreateOrder call.
type Metrics interface {
	OrderCreated(elapsed time.Duration)
	OrderRejected(reason string, elapsed time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) OrderCreated(time.Duration)           {}
func (noopMetrics) OrderRejected(string, time.Duration) {}

// CreateOrderInput is an order request as received from the caller. Products may
// repeat an id; the quantities are merged before stock is checked.
type CreateOrderInput struct {
	CustomerID string
	Products   []domain.RequestedProduct
}

// OrderService places orders against the shared product inventory.
type OrderService struct {
	customers domain.CustomerDirectory
	products  domain.ProductCatalog
	orders    domain.OrderStore
	tx        domain.Transactor

	storeTimeout time.Duration
	metrics      Metrics
	tracer       trace.Tracer
}

// Option configures an OrderService.
type Option func(*OrderService)

// WithStoreTimeout bounds every storage call, including the final commit.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *OrderService) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

// WithMetrics reports every CreateOrder outcome to m. A nil m is ignored.
func WithMetrics(m Metrics) Option {
	return func(s *OrderService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer replaces the global tracer. A nil t is ignored.
func WithTracer(t trace.Tracer) Option {
	return func(s *OrderService) {
		if t != nil {
			s.tracer = t
		}
	}
}

// NewOrderService wires the service to its stores. orders and the catalog are
// only written through tx.
func NewOrderService(
	customers domain.CustomerDirectory,
	products domain.ProductCatalog,
	orders domain.OrderStore,
	tx domain.Transactor,
	opts ...Option,
) *OrderService {
	s := &OrderService{
		customers:    customers,
		products:     products,
		orders:       orders,
		tx:           tx,
		storeTimeout: defaultStoreTimeout,
		metrics:      noopMetrics{},
		tracer:       otel.Tracer("order-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder validates the request, snapshots prices and commits the order
// together with the stock decrements. On any error nothing is persisted.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "order.create", trace.WithAttributes(
		attribute.String("customer.id", in.CustomerID),
		attribute.Int("order.requested_lines", len(in.Products)),
	))
	defer span.End()

	order, err := s.createOrder(ctx, in)
	elapsed := time.Since(start)
	if err != nil {
		reason := rejectReason(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
		s.metrics.OrderRejected(reason, elapsed)
		if domain.IsValidation(err) {
			slog.WarnContext(ctx, "order rejected", "customer_id", in.CustomerID, "reason", reason, "error", err)
		} else {
			slog.ErrorContext(ctx, "order creation failed", "customer_id", in.CustomerID, "error", err)
		}
		return nil, err
	}

	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.Int("order.items", len(order.Items)),
	)
	span.SetStatus(codes.Ok, "order created")
	s.metrics.OrderCreated(elapsed)
	slog.InfoContext(ctx, "order created",
		"order_id", order.ID,
		"customer_id", order.CustomerID,
		"items", len(order.Items),
		"total", order.Total().StringFixed(domain.PriceScale),
	)
	return order, nil
}

func (s *OrderService) createOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	requested, err := mergeRequested(in.Products)
	if err != nil {
		return nil, err
	}
	if in.CustomerID == "" {
		return nil, domain.ErrCustomerNotFound
	}

	customer, err := s.findCustomer(ctx, in.CustomerID)
	if err != nil {
		return nil, err
	}

	stored, err := s.resolveProducts(ctx, requested)
	if err != nil {
		return nil, err
	}

	if err := checkStock(requested, stored); err != nil {
		return nil, err
	}

	items := buildItems(requested, stored)
	updates := make([]domain.QuantityUpdate, len(requested))
	for i, r := range requested {
		updates[i] = domain.QuantityUpdate{ProductID: r.ProductID, Quantity: r.Quantity}
	}

	commitCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	var order *domain.Order
	err = s.tx.WithinTransaction(commitCtx, func(ctx context.Context, products domain.ProductCatalog, orders domain.OrderStore) error {
		created, err := orders.Create(ctx, *customer, items)
		if err != nil {
			return err
		}
		if err := products.UpdateQuantities(ctx, updates); err != nil {
			return err
		}
		order = created
		return nil
	})
	if err != nil {
		return nil, domain.Persistence("commit order", err)
	}
	return order, nil
}

// GetOrder returns a committed order or domain.ErrOrderNotFound.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	if id == "" {
		return nil, domain.ErrOrderNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, domain.Persistence("find order", err)
	}
	return order, nil
}

func (s *OrderService) findCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	customer, err := s.customers.FindByID(ctx, id)
	if err != nil {
		return nil, domain.Persistence("find customer", err)
	}
	if customer == nil {
		return nil, domain.ErrCustomerNotFound
	}
	return customer, nil
}

// resolveProducts looks up every distinct requested id in one catalog call and
// fails with ErrInvalidProducts naming the ids that did not resolve.
func (s *OrderService) resolveProducts(ctx context.Context, requested []domain.RequestedProduct) (map[string]domain.Product, error) {
	ids := make([]string, len(requested))
	for i, r := range requested {
		ids[i] = r.ProductID
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	found, err := s.products.FindAllByID(lookupCtx, ids)
	if err != nil {
		return nil, domain.Persistence("find products", err)
	}

	stored := make(map[string]domain.Product, len(found))
	for _, p := range found {
		stored[p.ID] = p
	}

	var missing []string
	for _, id := range ids {
		if _, ok := stored[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: unknown product ids %v", domain.ErrInvalidProducts, missing)
	}
	return stored, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrCustomerNotFound):
		return "customer_not_found"
	case errors.Is(err, domain.ErrInvalidProducts):
		return "invalid_products"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	default:
		return "persistence"
	}
}
