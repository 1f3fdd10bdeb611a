package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/table-ordering/internal/model"
)

func TestBackoffDelayWithinBounds(t *testing.T) {
	b := Backoff{Min: 10 * time.Millisecond, Max: 20 * time.Millisecond}
	for i := 0; i < 100; i++ {
		d := b.delay()
		if d < b.Min || d >= b.Max {
			t.Fatalf("delay %v outside [%v, %v)", d, b.Min, b.Max)
		}
	}
	if d := (Backoff{Min: 5 * time.Millisecond}).delay(); d != 5*time.Millisecond {
		t.Fatalf("degenerate backoff delay = %v", d)
	}
}

func TestWithRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := withRetry(ctx, Backoff{Min: time.Second, Max: 2 * time.Second}, func() error {
		calls++
		return model.ErrContention
	})
	if !errors.Is(err, model.ErrContention) || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}
