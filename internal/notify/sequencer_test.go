package notify

import (
	"testing"
	"time"
)

func TestSequencerForgetsIdleAndFinishedOrders(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	q := newSequencer(time.Second)
	q.now = func() time.Time { return now }
	noTimer := func(string, uint64) { t.Fatal("no gap expected") }

	q.admit(Event{ID: "a1", Kind: KindOrderCreated, OrderID: "a", Version: 1}, noTimer)
	q.admit(Event{ID: "a2", Kind: KindOrderClosed, OrderID: "a", Version: 2}, noTimer)
	q.admit(Event{ID: "b1", Kind: KindOrderCreated, OrderID: "b", Version: 1}, noTimer)
	if len(q.orders) != 2 {
		t.Fatalf("tracked = %d", len(q.orders))
	}

	now = now.Add(2 * time.Minute)
	q.admit(Event{ID: "c1", Kind: KindOrderCreated, OrderID: "c", Version: 1}, noTimer)
	if _, ok := q.orders["a"]; ok {
		t.Fatal("closed order still tracked")
	}
	if _, ok := q.orders["b"]; !ok {
		t.Fatal("open order forgotten too early")
	}

	now = now.Add(15 * time.Minute)
	q.admit(Event{ID: "d1", Kind: KindOrderCreated, OrderID: "d", Version: 1}, noTimer)
	if len(q.orders) != 1 {
		t.Fatalf("tracked after idle sweep = %d, want only d", len(q.orders))
	}
}

func TestSequencerDropsRepeatedIDs(t *testing.T) {
	q := newSequencer(time.Second)
	ev := Event{ID: "x", Kind: KindStaffCall, TableID: 1}
	if got := q.admit(ev, nil); len(got) != 1 {
		t.Fatalf("first delivery = %v", got)
	}
	if got := q.admit(ev, nil); len(got) != 0 {
		t.Fatalf("redelivery = %v", got)
	}
}

func TestIDRingEvictsOldest(t *testing.T) {
	r := newIDRing(2)
	r.add("a")
	r.add("b")
	r.add("c")
	if r.has("a") || !r.has("b") || !r.has("c") {
		t.Fatalf("ring = %v", r.ids)
	}
}
