package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCustomerNotFound  = errors.New("customer not found")
	ErrInvalidProducts   = errors.New("invalid products")
	ErrInsufficientStock = errors.New("some of the ordered products are out of stock")
	ErrPersistence       = errors.New("persistence failure")
	ErrOrderNotFound     = errors.New("order not found")
)

// StockError reports which products could not cover the requested quantity.
type StockError struct {
	ProductIDs []string
}

func (e *StockError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInsufficientStock, strings.Join(e.ProductIDs, ", "))
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// Persistence wraps a storage failure so that errors.Is(err, ErrPersistence)
// holds while the cause stays reachable. Errors that are already classified
// and nil pass through untouched.
func Persistence(op string, err error) error {
	if err == nil || classified(err) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

// IsValidation reports whether err is one of the deterministic outcomes that
// are detected before any mutation and must not be retried.
func IsValidation(err error) bool {
	return errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrInvalidProducts) ||
		errors.Is(err, ErrInsufficientStock)
}

func classified(err error) bool {
	return IsValidation(err) || errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrPersistence)
}
