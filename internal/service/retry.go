package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/iliyamo/table-ordering/internal/model"
)

// Backoff bounds the single retry after lock contention.
type Backoff struct {
	Min time.Duration
	Max time.Duration
}

var DefaultBackoff = Backoff{Min: 50 * time.Millisecond, Max: 150 * time.Millisecond}

func (b Backoff) delay() time.Duration {
	if b.Max <= b.Min {
		return b.Min
	}
	return b.Min + time.Duration(rand.Int64N(int64(b.Max-b.Min)))
}

// withRetry runs fn and, if it fails with model.ErrContention, runs it
// exactly once more after a jittered pause.  Any other error, or a second
// contention, is returned as is.
func withRetry(ctx context.Context, b Backoff, fn func() error) error {
	err := fn()
	if !errors.Is(err, model.ErrContention) {
		return err
	}
	t := time.NewTimer(b.delay())
	defer t.Stop()
	select {
	case <-ctx.Done():
		return err
	case <-t.C:
	}
	return fn()
}
