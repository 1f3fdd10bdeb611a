package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/table-ordering/internal/logger"
)

var (
	ErrHubClosed    = errors.New("notify: hub closed")
	ErrNilHandler   = errors.New("notify: nil handler")
	ErrInvalidTopic = errors.New("notify: empty topic")
)

const DefaultBuffer = 64

// Handler receives events on the subscription's own goroutine.  Handlers
// may block; only that subscriber falls behind.
type Handler func(Event)

// Hub is the in-process event bus.  Publish never blocks the caller: every
// subscription has a bounded buffer drained by its own goroutine.  Events
// of one order reach subscribers in version order.
type Hub struct {
	origin      string        // instance id stamped on local events
	buffer      int           // default per-subscription buffer
	reorderWait time.Duration // how long a version gap is held open
	log         *logger.Logger

	// seqMu serialises sequencing and fan-out so per-order order survives
	// concurrent publishers.  Taken before mu.
	seqMu sync.Mutex
	seq   *sequencer

	mu     sync.RWMutex
	subs   map[uint64]*subscription
	nextID uint64
	closed bool

	published atomic.Uint64
	dropped   atomic.Uint64
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithDefaultBuffer sets the buffer size for subscriptions that do not ask
// for their own.
func WithDefaultBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithReorderWait sets how long an out-of-order version is held back
// waiting for the one before it.
func WithReorderWait(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.reorderWait = d
		}
	}
}

// WithLogger sets the logger used for drop and panic warnings.
func WithLogger(l *logger.Logger) HubOption {
	return func(h *Hub) { h.log = l }
}

// NewHub creates a hub.  origin identifies this process on events it
// publishes; an empty origin gets a random one.  Buffer sizes and the
// reorder wait come from the HubOption functions.
func NewHub(origin string, opts ...HubOption) *Hub {
	if origin == "" {
		origin = uuid.NewString()
	}
	h := &Hub{
		origin:      origin,
		buffer:      DefaultBuffer,
		reorderWait: DefaultReorderWait,
		subs:        make(map[uint64]*subscription),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.seq = newSequencer(h.reorderWait)
	return h
}

// Origin is the instance id this hub stamps on local events.
func (h *Hub) Origin() string { return h.origin }

// Publish stamps a locally committed event with an id, time, origin and
// the actor on ctx (unless already set), then delivers it.
func (h *Hub) Publish(ctx context.Context, ev Event) {
	h.Deliver(h.Stamp(ctx, ev))
}

// Stamp fills in the fields Publish would, without delivering.
func (h *Hub) Stamp(ctx context.Context, ev Event) Event {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if ev.Origin == "" {
		ev.Origin = h.origin
	}
	if ev.Actor == "" {
		ev.Actor = ActorFrom(ctx)
	}
	return ev
}

// Deliver hands an already stamped event to every matching subscription.
// Bridges use it for events that arrived from other instances.  An event
// whose id was already delivered is dropped; one that overtook an earlier
// version of its order is held until that version arrives or the reorder
// wait runs out.
func (h *Hub) Deliver(ev Event) {
	h.seqMu.Lock()
	defer h.seqMu.Unlock()
	for _, e := range h.seq.admit(ev, h.expire) {
		h.fanout(e)
	}
}

func (h *Hub) expire(orderID string, gen uint64) {
	h.seqMu.Lock()
	defer h.seqMu.Unlock()
	out := h.seq.flush(orderID, gen)
	if len(out) > 0 {
		h.log.Warn("notify.sequence", "order version gap not filled, resync sent", "order_id", orderID)
	}
	for _, e := range out {
		h.fanout(e)
	}
}

func (h *Hub) fanout(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	h.published.Add(1)
	for _, s := range h.subs {
		if !s.wants(ev, h.origin) {
			continue
		}
		if !s.offer(ev) {
			h.dropped.Add(1)
			h.log.Warn("notify.deliver", "subscriber lagging, event dropped",
				"topic", s.topic, "kind", string(ev.Kind), "order_id", ev.OrderID)
		}
	}
}

// Subscribe registers fn for events on topic.  The returned function
// removes the subscription and waits for its goroutine to finish; it is
// safe to call more than once.
func (h *Hub) Subscribe(topic string, fn Handler, opts ...SubscribeOption) (func(), error) {
	if topic == "" {
		return nil, ErrInvalidTopic
	}
	if fn == nil {
		return nil, ErrNilHandler
	}
	cfg := subscribeConfig{buffer: h.buffer}
	for _, opt := range opts {
		opt(&cfg)
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	h.nextID++
	s := newSubscription(h.nextID, topic, fn, cfg, h.log)
	h.subs[s.id] = s
	h.mu.Unlock()

	go s.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.remove(s.id)
			<-s.done
		})
	}, nil
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(s.ch)
	}
}

// Close stops every subscription.  Later publishes are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := make([]*subscription, 0, len(h.subs))
	for id, s := range h.subs {
		delete(h.subs, id)
		close(s.ch)
		subs = append(subs, s)
	}
	h.mu.Unlock()

	h.seqMu.Lock()
	h.seq.stop()
	h.seqMu.Unlock()

	for _, s := range subs {
		<-s.done
	}
}

// Stats is a point-in-time snapshot of hub counters.
type Stats struct {
	Subscribers int
	Published   uint64
	Dropped     uint64
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	n := len(h.subs)
	h.mu.RUnlock()
	return Stats{Subscribers: n, Published: h.published.Load(), Dropped: h.dropped.Load()}
}
