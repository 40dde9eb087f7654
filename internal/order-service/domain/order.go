package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// PriceScale is the number of fractional digits kept for every price.
const PriceScale = 2

// Customer places orders. Customers are read only here.
type Customer struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Product is a catalog entry. Quantity is the stock still available and never
// goes below zero.
type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RequestedProduct is one (product, quantity) pair of an order request.
type RequestedProduct struct {
	ProductID string
	Quantity  int
}

// QuantityUpdate asks the catalog to take Quantity units out of stock.
type QuantityUpdate struct {
	ProductID string
	Quantity  int
}

// Order is immutable once created.
type Order struct {
	ID         string
	CustomerID string
	Items      []OrderItem
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// OrderItem is a line of an order. Price is copied from the catalog when the
// order is placed and never recalculated afterwards.
type OrderItem struct {
	ID        string
	ProductID string
	Price     decimal.Decimal
	Quantity  int
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Total is the sum of line subtotals rounded to PriceScale.
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal())
	}
	return total.Round(PriceScale)
}

// NormalizePrice rounds p to the catalog precision.
func NormalizePrice(p decimal.Decimal) decimal.Decimal {
	return p.Round(PriceScale)
}

// SumUpdates totals the requested decrement per product. Every quantity must
// be positive and no total may overflow int.
func SumUpdates(updates []QuantityUpdate) (map[string]int, error) {
	totals := make(map[string]int, len(updates))
	for _, u := range updates {
		if u.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for %s must be positive", ErrInvalidProducts, u.ProductID)
		}
		if totals[u.ProductID] > math.MaxInt-u.Quantity {
			return nil, fmt.Errorf("%w: total quantity for %s is too large", ErrInvalidProducts, u.ProductID)
		}
		totals[u.ProductID] += u.Quantity
	}
	return totals, nil
}
