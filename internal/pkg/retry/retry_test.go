package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errConflict = errors.New("conflict")

func isConflict(err error) bool { return errors.Is(err, errConflict) }

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), time.Second, isConflict, func() error {
		calls++
		if calls < 3 {
			return errConflict
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Do(context.Background(), time.Second, isConflict, func() error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestDoGivesUpAfterWindow(t *testing.T) {
	start := time.Now()
	err := Do(context.Background(), 50*time.Millisecond, isConflict, func() error {
		return errConflict
	})
	assert.ErrorIs(t, err, errConflict)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, time.Minute, isConflict, func() error {
		calls++
		cancel()
		return errConflict
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
