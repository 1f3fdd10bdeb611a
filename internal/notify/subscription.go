package notify

import (
	"time"

	"github.com/iliyamo/table-ordering/internal/logger"
)

type subscribeConfig struct {
	buffer      int
	ignoreActor string
	localOnly   bool
}

// SubscribeOption tunes a single subscription.
type SubscribeOption func(*subscribeConfig)

// IgnoreActor drops events caused by actor, so a device does not react to
// its own writes.
func IgnoreActor(actor string) SubscribeOption {
	return func(c *subscribeConfig) { c.ignoreActor = actor }
}

// WithBuffer overrides the hub's default buffer size.
func WithBuffer(n int) SubscribeOption {
	return func(c *subscribeConfig) {
		if n > 0 {
			c.buffer = n
		}
	}
}

// OnlyLocal restricts the subscription to events committed by this
// process.  The broker forwarder uses it to avoid echoing relayed events.
func OnlyLocal() SubscribeOption {
	return func(c *subscribeConfig) { c.localOnly = true }
}

type subscription struct {
	id          uint64
	topic       string
	ignoreActor string
	localOnly   bool
	fn          Handler
	log         *logger.Logger

	ch   chan Event
	wake chan struct{}
	done chan struct{}
}

func newSubscription(id uint64, topic string, fn Handler, cfg subscribeConfig, log *logger.Logger) *subscription {
	return &subscription{
		id:          id,
		topic:       topic,
		ignoreActor: cfg.ignoreActor,
		localOnly:   cfg.localOnly,
		fn:          fn,
		log:         log,
		ch:          make(chan Event, cfg.buffer),
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

func (s *subscription) wants(ev Event, origin string) bool {
	if !ev.Matches(s.topic) {
		return false
	}
	if s.ignoreActor != "" && ev.Actor == s.ignoreActor {
		return false
	}
	if s.localOnly && ev.Origin != origin {
		return false
	}
	return true
}

// offer enqueues without blocking.  On overflow the subscription is marked
// lagged and its worker is woken so it can emit a resync once drained.
func (s *subscription) offer(ev Event) bool {
	select {
	case s.ch <- ev:
		return true
	default:
	}
	s.markLagged()
	return false
}

func (s *subscription) markLagged() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) run() {
	defer close(s.done)
	lagged := false
	for {
		select {
		case ev, ok := <-s.ch:
			if !ok {
				return
			}
			s.call(ev)
		case <-s.wake:
			lagged = true
		}
		// a wake may also be pending while events are still queued
		select {
		case <-s.wake:
			lagged = true
		default:
		}
		if lagged && len(s.ch) == 0 {
			lagged = false
			s.call(Event{Kind: KindResync, At: time.Now().UTC()})
		}
	}
}

func (s *subscription) call(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn("notify.dispatch", "subscriber panicked", "topic", s.topic, "panic", r)
		}
	}()
	s.fn(ev)
}
