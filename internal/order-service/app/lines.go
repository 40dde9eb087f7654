package app

import (
	"fmt"
	"math"
	"strings"

	"github.com/jcmexdev/order-inventory/internal/order-service/domain"
)

// mergeRequested validates the requested lines and folds repeated product ids
// into one line, keeping the position of the first occurrence.
func mergeRequested(products []domain.RequestedProduct) ([]domain.RequestedProduct, error) {
	if len(products) == 0 {
		return nil, fmt.Errorf("%w: product list is empty", domain.ErrInvalidProducts)
	}

	merged := make([]domain.RequestedProduct, 0, len(products))
	index := make(map[string]int, len(products))
	for _, p := range products {
		if strings.TrimSpace(p.ProductID) == "" {
			return nil, fmt.Errorf("%w: product id is required", domain.ErrInvalidProducts)
		}
		if p.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for %s must be positive", domain.ErrInvalidProducts, p.ProductID)
		}
		if i, ok := index[p.ProductID]; ok {
			if merged[i].Quantity > math.MaxInt-p.Quantity {
				return nil, fmt.Errorf("%w: total quantity for %s is too large", domain.ErrInvalidProducts, p.ProductID)
			}
			merged[i].Quantity += p.Quantity
			continue
		}
		index[p.ProductID] = len(merged)
		merged = append(merged, p)
	}
	return merged, nil
}

// checkStock verifies every line before anything is written.
func checkStock(requested []domain.RequestedProduct, stored map[string]domain.Product) error {
	var short []string
	for _, r := range requested {
		if r.Quantity > stored[r.ProductID].Quantity {
			short = append(short, r.ProductID)
		}
	}
	if len(short) > 0 {
		return &domain.StockError{ProductIDs: short}
	}
	return nil
}

func buildItems(requested []domain.RequestedProduct, stored map[string]domain.Product) []domain.OrderItem {
	items := make([]domain.OrderItem, len(requested))
	for i, r := range requested {
		items[i] = domain.OrderItem{
			ProductID: r.ProductID,
			Price:     domain.NormalizePrice(stored[r.ProductID].Price),
			Quantity:  r.Quantity,
		}
	}
	return items
}
