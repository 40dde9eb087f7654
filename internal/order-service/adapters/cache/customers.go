// Package cache decorates the customer directory with a read-through cache.
// Only found customers are cached; a miss in the directory is never stored,
// so a customer created later becomes visible immediately.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jcmexdev/order-inventory/internal/order-service/domain"
	"github.com/jcmexdev/order-inventory/internal/pkg/cache"
)

const operationCustomer = "customer"

var _ domain.CustomerDirectory = (*CustomerDirectory)(nil)

// CustomerDirectory serves customers from cache and falls back to next.
type CustomerDirectory struct {
	next  domain.CustomerDirectory
	cache cache.Cache
	ttl   time.Duration
}

// NewCustomerDirectory wraps next; entries expire after ttl.
func NewCustomerDirectory(next domain.CustomerDirectory, c cache.Cache, ttl time.Duration) *CustomerDirectory {
	return &CustomerDirectory{next: next, cache: c, ttl: ttl}
}

func (d *CustomerDirectory) FindByID(ctx context.Context, id string) (*domain.Customer, error) {
	key := d.cache.GenerateKey(operationCustomer, id)

	raw, err := d.cache.Get(ctx, key)
	switch {
	case err != nil:
		slog.WarnContext(ctx, "customer cache read failed", "customer_id", id, "error", err)
	case raw != "":
		var c domain.Customer
		if err := json.Unmarshal([]byte(raw), &c); err == nil {
			return &c, nil
		}
		slog.WarnContext(ctx, "discarding malformed cached customer", "customer_id", id)
		if err := d.cache.Delete(ctx, key); err != nil {
			slog.WarnContext(ctx, "customer cache evict failed", "customer_id", id, "error", err)
		}
	}

	c, err := d.next.FindByID(ctx, id)
	if err != nil || c == nil {
		return c, err
	}

	if b, err := json.Marshal(c); err == nil {
		if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
			slog.WarnContext(ctx, "customer cache write failed", "customer_id", id, "error", err)
		}
	}
	return c, nil
}
