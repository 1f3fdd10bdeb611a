package service

import (
	"context"
	"time"

	"github.com/iliyamo/table-ordering/internal/notify"
)

// Option tunes a service.
type Option func(*runner)

// WithBackoff replaces DefaultBackoff for the contention retry.
func WithBackoff(b Backoff) Option {
	return func(r *runner) { r.backoff = b }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *runner) { r.now = now }
}

// runner is the transaction plumbing shared by both services.
type runner struct {
	store   Store
	pub     Publisher        // receives events only after a commit
	backoff Backoff          // delay before the single contention retry
	now     func() time.Time // stamps created_at and the cleanup cutoff
}

func newRunner(store Store, pub Publisher, opts []Option) runner {
	if store == nil {
		panic("service: nil store")
	}
	if pub == nil {
		pub = discard{}
	}
	r := runner{store: store, pub: pub, backoff: DefaultBackoff, now: time.Now}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// tx runs fn in one store transaction with the contention retry.
func (r runner) tx(ctx context.Context, fn func(Tx) error) error {
	return withRetry(ctx, r.backoff, func() error {
		return r.store.Transactionally(ctx, fn)
	})
}

func (r runner) publish(ctx context.Context, events ...notify.Event) {
	for _, ev := range events {
		r.pub.Publish(ctx, ev)
	}
}

type discard struct{}

func (discard) Publish(context.Context, notify.Event) {}
