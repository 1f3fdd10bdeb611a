package notify

import (
	"sort"
	"time"
)

const (
	// DefaultReorderWait bounds how long a newer order version is held
	// while an older one is still on its way.
	DefaultReorderWait = 500 * time.Millisecond

	seenIDs      = 4096
	orderIdle    = 10 * time.Minute
	finishedIdle = time.Minute
	sweepEvery   = time.Minute
)

// sequencer puts events back into per-order version order before fan-out.
// Services publish after commit from independent goroutines, so version
// n+1 can reach the hub before n.  A gap is held for at most wait; after
// that the held events go out anyway, followed by a resync for the order.
// Not safe for concurrent use; the hub serialises calls.
type sequencer struct {
	wait time.Duration
	now  func() time.Time

	orders map[string]*orderSeq
	seen   idRing
	swept  time.Time
}

type orderSeq struct {
	next     uint64 // version expected next
	tableID  uint64
	held     map[uint64]Event
	timer    *time.Timer
	gen      uint64 // invalidates timers that fired after the gap closed
	touched  time.Time
	finished bool
}

func newSequencer(wait time.Duration) *sequencer {
	if wait <= 0 {
		wait = DefaultReorderWait
	}
	return &sequencer{
		wait:   wait,
		now:    time.Now,
		orders: make(map[string]*orderSeq),
		seen:   newIDRing(seenIDs),
	}
}

// admit returns the events that may be fanned out now, in order.  expire
// is scheduled when a gap opens and must call flush with the same
// arguments.
func (q *sequencer) admit(ev Event, expire func(orderID string, gen uint64)) []Event {
	if ev.ID != "" {
		if q.seen.has(ev.ID) {
			return nil
		}
		q.seen.add(ev.ID)
	}
	if ev.OrderID == "" || ev.Version == 0 {
		return []Event{ev}
	}

	now := q.now()
	q.sweep(now)
	st, ok := q.orders[ev.OrderID]
	if !ok {
		st = &orderSeq{next: ev.Version, held: make(map[uint64]Event)}
		q.orders[ev.OrderID] = st
	}
	st.touched = now
	if ev.TableID != 0 {
		st.tableID = ev.TableID
	}

	switch {
	case ev.Version < st.next:
		// Arrived after the gap it left was given up on.
		return []Event{ev, q.resync(ev.OrderID, st)}
	case ev.Version > st.next:
		st.held[ev.Version] = ev
		if st.timer == nil {
			st.gen++
			id, gen := ev.OrderID, st.gen
			st.timer = time.AfterFunc(q.wait, func() { expire(id, gen) })
		}
		return nil
	}

	out := q.drain(st, []Event{ev})
	if len(st.held) == 0 && st.timer != nil {
		st.timer.Stop()
		st.timer = nil
		st.gen++
	}
	return out
}

// flush gives up waiting on an order's gap and releases what is held.
func (q *sequencer) flush(orderID string, gen uint64) []Event {
	st, ok := q.orders[orderID]
	if !ok || st.gen != gen || len(st.held) == 0 {
		return nil
	}
	st.timer = nil
	st.gen++

	versions := make([]uint64, 0, len(st.held))
	for v := range st.held {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })

	out := make([]Event, 0, len(versions)+1)
	for _, v := range versions {
		ev := st.held[v]
		delete(st.held, v)
		out = append(out, ev)
		if isFinal(ev.Kind) {
			st.finished = true
		}
	}
	st.next = versions[len(versions)-1] + 1
	st.touched = q.now()
	return append(out, q.resync(orderID, st))
}

func (q *sequencer) drain(st *orderSeq, out []Event) []Event {
	if isFinal(out[len(out)-1].Kind) {
		st.finished = true
	}
	st.next++
	for {
		ev, ok := st.held[st.next]
		if !ok {
			return out
		}
		delete(st.held, st.next)
		out = append(out, ev)
		if isFinal(ev.Kind) {
			st.finished = true
		}
		st.next++
	}
}

func (q *sequencer) resync(orderID string, st *orderSeq) Event {
	return Event{Kind: KindResync, OrderID: orderID, TableID: st.tableID, At: q.now().UTC()}
}

// sweep forgets orders nobody has written to for a while.  Finished
// orders go sooner; a straggler for one of them is then treated as new.
func (q *sequencer) sweep(now time.Time) {
	if now.Sub(q.swept) < sweepEvery {
		return
	}
	q.swept = now
	for id, st := range q.orders {
		if len(st.held) > 0 {
			continue
		}
		idle := now.Sub(st.touched)
		if idle > orderIdle || (st.finished && idle > finishedIdle) {
			delete(q.orders, id)
		}
	}
}

func (q *sequencer) stop() {
	for _, st := range q.orders {
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
	}
}

func isFinal(k Kind) bool {
	return k == KindOrderClosed || k == KindOrderDeleted
}

// idRing remembers the last n event ids, so broker redeliveries are
// dropped.
type idRing struct {
	ids []string
	pos int
	set map[string]struct{}
}

func newIDRing(n int) idRing {
	return idRing{ids: make([]string, n), set: make(map[string]struct{}, n)}
}

func (r *idRing) has(id string) bool {
	_, ok := r.set[id]
	return ok
}

func (r *idRing) add(id string) {
	if old := r.ids[r.pos]; old != "" {
		delete(r.set, old)
	}
	r.ids[r.pos] = id
	r.set[id] = struct{}{}
	r.pos = (r.pos + 1) % len(r.ids)
}
