// Package service holds the order lifecycle: binding customers to tables,
// amending orders and keeping totals consistent while several devices write
// to the same order.  Correctness comes from store transactions; the
// services never hold in-process locks around data.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/table-ordering/internal/model"
	"github.com/iliyamo/table-ordering/internal/notify"
)

// Tx is the set of locking and conditional operations the services need
// inside one store transaction.  Methods that lock return model.ErrNotFound
// when the row is missing; a lock wait that times out or deadlocks is
// reported as model.ErrContention.
type Tx interface {
	// TableForUpdate reads and locks a table row.
	TableForUpdate(ctx context.Context, tableID uint64) (model.Table, error)
	// OccupyTable binds the table to orderID only if it is still free and
	// reports whether a row changed.
	OccupyTable(ctx context.Context, tableID uint64, orderID string) (bool, error)
	// ReleaseTable frees the table whatever it is bound to.
	ReleaseTable(ctx context.Context, tableID uint64) error
	// ReleaseTableFor frees the table only while it is bound to orderID.
	ReleaseTableFor(ctx context.Context, tableID uint64, orderID string) error

	CreateOrder(ctx context.Context, o *model.Order) error
	OrderForUpdate(ctx context.Context, orderID string) (model.Order, error)
	// ProductsForShare reads the given products under a shared lock so
	// their prices cannot change before the transaction commits.  Missing
	// ids are simply absent from the map.
	ProductsForShare(ctx context.Context, ids []uint64) (map[uint64]model.Product, error)

	InsertItems(ctx context.Context, items []model.OrderItem) ([]uint64, error)
	// DeleteItem removes itemID if it belongs to orderID.
	DeleteItem(ctx context.Context, orderID string, itemID uint64) (bool, error)
	// ItemOrderID reads, without locking, which order an item belongs to.
	ItemOrderID(ctx context.Context, itemID uint64) (string, error)
	ItemForUpdate(ctx context.Context, itemID uint64) (model.OrderItem, error)
	SetItemPrepStatus(ctx context.Context, itemID uint64, status model.PrepStatus) error

	// SumItems recomputes Σ price_snapshot × quantity from stored items.
	SumItems(ctx context.Context, orderID string) (model.Money, error)
	// UpdateOrderTotal writes total, bumps the version and returns it.
	UpdateOrderTotal(ctx context.Context, orderID string, total model.Money) (uint64, error)
	SetOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) (uint64, error)
	// TouchOrder bumps the version without other changes.
	TouchOrder(ctx context.Context, orderID string) (uint64, error)
	// DeleteOrder removes the order and its items, returning the number of
	// items removed.
	DeleteOrder(ctx context.Context, orderID string) (int64, error)
	// PaidOrdersBefore lists paid orders last updated before cutoff.
	PaidOrdersBefore(ctx context.Context, cutoff time.Time) ([]model.Order, error)
}

// Store runs fn inside one transaction: everything fn does commits
// together, or nothing does if fn returns an error.
type Store interface {
	Transactionally(ctx context.Context, fn func(Tx) error) error
}

// Publisher receives committed changes.  *notify.Hub satisfies it.
type Publisher interface {
	Publish(ctx context.Context, ev notify.Event)
}
