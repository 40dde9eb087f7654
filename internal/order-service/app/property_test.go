package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"github.com/jcmexdev/order-inventory/internal/order-service/adapters/memory"
	"github.com/jcmexdev/order-inventory/internal/order-service/app"
	"github.com/jcmexdev/order-inventory/internal/order-service/domain"
)

// TestCreateOrderProperties checks, for random catalogs and requests, that a
// success decrements exactly what was asked and a failure changes nothing.
func TestCreateOrderProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()

		n := rapid.IntRange(1, 4).Draw(t, "products")
		catalog := make([]domain.Product, n)
		before := make(map[string]int, n)
		for i := range catalog {
			id := fmt.Sprintf("p%d", i)
			qty := rapid.IntRange(0, 15).Draw(t, "stock_"+id)
			cents := rapid.Int64Range(1, 100000).Draw(t, "cents_"+id)
			catalog[i] = domain.Product{ID: id, Price: decimal.New(cents, -2), Quantity: qty}
			before[id] = qty
		}

		s := memory.NewStore()
		if err := s.Seed(ctx, []domain.Customer{{ID: "c-1"}}, catalog); err != nil {
			t.Fatalf("seed: %v", err)
		}
		svc := app.NewOrderService(s, s, s.Orders(), s)

		customer := rapid.SampledFrom([]string{"c-1", "c-1", "c-1", "ghost"}).Draw(t, "customer")
		lines := rapid.IntRange(1, 5).Draw(t, "lines")
		ids := []string{"unknown"}
		for _, p := range catalog {
			ids = append(ids, p.ID)
		}
		requested := make([]domain.RequestedProduct, lines)
		wanted := make(map[string]int)
		unknown := false
		for i := range requested {
			id := rapid.SampledFrom(ids).Draw(t, "id")
			qty := rapid.IntRange(1, 8).Draw(t, "qty")
			requested[i] = domain.RequestedProduct{ProductID: id, Quantity: qty}
			wanted[id] += qty
			if _, ok := before[id]; !ok {
				unknown = true
			}
		}
		short := false
		for id, q := range wanted {
			if stock, ok := before[id]; ok && q > stock {
				short = true
			}
		}

		order, err := svc.CreateOrder(ctx, app.CreateOrderInput{CustomerID: customer, Products: requested})

		after := make(map[string]int, n)
		for id := range before {
			after[id] = stockOf(t, s, id)
			if after[id] < 0 {
				t.Fatalf("stock of %s went negative: %d", id, after[id])
			}
		}

		switch {
		case customer == "ghost":
			expectErr(t, err, domain.ErrCustomerNotFound)
		case unknown:
			expectErr(t, err, domain.ErrInvalidProducts)
		case short:
			expectErr(t, err, domain.ErrInsufficientStock)
		default:
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := make(map[string]int)
			for _, it := range order.Items {
				got[it.ProductID] += it.Quantity
			}
			for id, q := range wanted {
				if got[id] != q {
					t.Fatalf("order carries %d of %s, want %d", got[id], id, q)
				}
				if before[id]-after[id] != q {
					t.Fatalf("stock of %s dropped by %d, want %d", id, before[id]-after[id], q)
				}
			}
			return
		}

		for id := range before {
			if before[id] != after[id] {
				t.Fatalf("failed order changed stock of %s: %d -> %d", id, before[id], after[id])
			}
		}
	})
}

func expectErr(t *rapid.T, err, want error) {
	if !errors.Is(err, want) {
		t.Fatalf("got error %v, want %v", err, want)
	}
}
