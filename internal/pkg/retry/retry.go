// Package retry re-runs storage transactions that lost a conflict with a
// concurrent one (deadlock, serialization failure, busy database).
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	initialInterval = 10 * time.Millisecond
	maxInterval     = 250 * time.Millisecond
)

// Transient decides whether an error is worth another attempt.
type Transient func(err error) bool

// Do runs op until it succeeds, fails with a non-transient error, maxElapsed
// passes, or ctx is done.
func Do(ctx context.Context, maxElapsed time.Duration, transient Transient, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialInterval
	b.MaxInterval = maxInterval
	b.MaxElapsedTime = maxElapsed

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !transient(err) {
			return backoff.Permanent(err)
		}
		slog.WarnContext(ctx, "transient storage conflict, retrying", "attempt", attempt, "error", err)
		return err
	}, backoff.WithContext(b, ctx))
}
