// Package memstore is an in-memory implementation of the service store
// contract.  Transactions are serialised by a one-slot semaphore that is
// acquired with the same bounded wait the MySQL adapter uses for row locks,
// so contention surfaces as model.ErrContention just like a lock wait
// timeout.  Each transaction works on a copy of the data which replaces
// the committed state only when fn succeeds.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/table-ordering/internal/model"
	"github.com/iliyamo/table-ordering/internal/service"
)

// DefaultLockWait is how long a transaction waits for the store before
// failing with model.ErrContention.
const DefaultLockWait = 3 * time.Second

// Store holds the committed state.  It implements service.Store and the
// read interfaces the handlers use, and it has seeding helpers for tests.
type Store struct {
	sem      chan struct{} // one slot; held for a whole transaction or seed write
	lockWait time.Duration // bounded wait for sem
	now      func() time.Time

	mu    sync.RWMutex // guards the state pointer swap against readers
	state *state
}

// New returns an empty store.  lockWait <= 0 means DefaultLockWait.
func New(lockWait time.Duration) *Store {
	if lockWait <= 0 {
		lockWait = DefaultLockWait
	}
	return &Store{
		sem:      make(chan struct{}, 1),
		lockWait: lockWait,
		now:      time.Now,
		state:    newState(),
	}
}

// Transactionally implements service.Store.
func (s *Store) Transactionally(ctx context.Context, fn func(service.Tx) error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer func() { <-s.sem }()

	s.mu.RLock()
	work := s.state.clone()
	s.mu.RUnlock()

	if err := fn(&tx{st: work, now: s.now}); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = work
	s.mu.Unlock()
	return nil
}

func (s *Store) acquire(ctx context.Context) error {
	t := time.NewTimer(s.lockWait)
	defer t.Stop()
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-t.C:
		return model.ErrContention
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return model.ErrContention
		}
		return ctx.Err()
	}
}

func (s *Store) read(fn func(st *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.state)
}

// write applies a seed change outside any transaction.  It takes the
// transaction slot, so a concurrent commit cannot replace the state with
// a clone that predates the change.  Must not be called from inside fn of
// Transactionally.
func (s *Store) write(fn func(st *state)) {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

type state struct {
	tables     map[uint64]model.Table
	categories map[uint64]model.Category
	products   map[uint64]model.Product
	orders     map[string]model.Order
	items      map[uint64]model.OrderItem
	settings   map[string]model.Setting

	nextTable    uint64
	nextCategory uint64
	nextProduct  uint64
	nextItem     uint64
}

func newState() *state {
	return &state{
		tables:     make(map[uint64]model.Table),
		categories: make(map[uint64]model.Category),
		products:   make(map[uint64]model.Product),
		orders:     make(map[string]model.Order),
		items:      make(map[uint64]model.OrderItem),
		settings:   make(map[string]model.Setting),
	}
}

// clone copies every map.  Entities are plain values; the pointer fields
// they carry (nullable strings) are never mutated in place.
func (st *state) clone() *state {
	c := &state{
		tables:       make(map[uint64]model.Table, len(st.tables)),
		categories:   make(map[uint64]model.Category, len(st.categories)),
		products:     make(map[uint64]model.Product, len(st.products)),
		orders:       make(map[string]model.Order, len(st.orders)),
		items:        make(map[uint64]model.OrderItem, len(st.items)),
		settings:     make(map[string]model.Setting, len(st.settings)),
		nextTable:    st.nextTable,
		nextCategory: st.nextCategory,
		nextProduct:  st.nextProduct,
		nextItem:     st.nextItem,
	}
	for k, v := range st.tables {
		c.tables[k] = v
	}
	for k, v := range st.categories {
		c.categories[k] = v
	}
	for k, v := range st.products {
		c.products[k] = v
	}
	for k, v := range st.orders {
		c.orders[k] = v
	}
	for k, v := range st.items {
		c.items[k] = v
	}
	for k, v := range st.settings {
		c.settings[k] = v
	}
	return c
}

// orderItems returns the items of an order sorted by id.
func (st *state) orderItems(orderID string) []model.OrderItem {
	var out []model.OrderItem
	for _, it := range st.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
