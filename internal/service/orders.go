package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/table-ordering/internal/model"
	"github.com/iliyamo/table-ordering/internal/notify"
)

// DefaultRetention is how long paid orders are kept before CleanupPaid
// removes them.
const DefaultRetention = 30 * 24 * time.Hour

// Receipt is what a successful AddItems committed.
type Receipt struct {
	OrderID string      `json:"order_id"`
	ItemIDs []uint64    `json:"item_ids"`
	Total   model.Money `json:"total"`
	Version uint64      `json:"version"`
}

// OrderManager owns every mutation of an order and its items.  Each
// operation locks the order row first, so concurrent writers to one order
// are serialised by the store, and recomputes the total from the stored
// items before committing.
type OrderManager struct {
	runner
	tables *TableCoordinator
}

// NewOrderManager returns a manager sharing store with tables, which it
// uses for OpenOrder's check-in.  Events go to pub after each commit.
// A nil store or tables panics.
func NewOrderManager(store Store, tables *TableCoordinator, pub Publisher, opts ...Option) *OrderManager {
	if tables == nil {
		panic("service: nil table coordinator")
	}
	return &OrderManager{runner: newRunner(store, pub, opts), tables: tables}
}

// AddItems appends lines to a serving order at the current product prices.
func (m *OrderManager) AddItems(ctx context.Context, orderID string, lines []Line) (Receipt, error) {
	if err := validateLines(lines); err != nil {
		return Receipt{}, err
	}
	var (
		rc    Receipt
		table uint64
	)
	err := m.tx(ctx, func(tx Tx) error {
		o, err := lockServing(ctx, tx, orderID)
		if err != nil {
			return err
		}
		rc, err = m.addItemsTx(ctx, tx, o, lines)
		table = o.TableID
		return err
	})
	if err != nil {
		return Receipt{}, err
	}
	m.publish(ctx, itemsEvent(notify.KindItemsAdded, rc.OrderID, table, rc.ItemIDs, rc.Total, rc.Version))
	return rc, nil
}

func (m *OrderManager) addItemsTx(ctx context.Context, tx Tx, o model.Order, lines []Line) (Receipt, error) {
	products, err := tx.ProductsForShare(ctx, productIDs(lines))
	if err != nil {
		return Receipt{}, fmt.Errorf("load products: %w", err)
	}
	now := m.now().UTC()
	items := make([]model.OrderItem, 0, len(lines))
	running := o.Total
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			return Receipt{}, fmt.Errorf("product %d: %w", l.ProductID, model.ErrNotFound)
		}
		if !p.Available {
			return Receipt{}, model.Invalid("product_id", fmt.Sprintf("product %d is not available", p.ID))
		}
		line, ok := p.Price.MulQty(l.Quantity)
		if !ok {
			return Receipt{}, model.Invalid("quantity", fmt.Sprintf("line total for product %d is too large", p.ID))
		}
		if running, ok = running.Plus(line); !ok {
			return Receipt{}, model.Invalid("items", "order total would exceed the maximum")
		}
		var note *string
		if n := strings.TrimSpace(l.Note); n != "" {
			note = &n
		}
		items = append(items, model.OrderItem{
			OrderID:       o.ID,
			ProductID:     p.ID,
			Quantity:      l.Quantity,
			PriceSnapshot: p.Price,
			Note:          note,
			PrepStatus:    model.PrepPending,
			CreatedAt:     now,
		})
	}
	ids, err := tx.InsertItems(ctx, items)
	if err != nil {
		return Receipt{}, fmt.Errorf("insert items: %w", err)
	}
	total, version, err := resum(ctx, tx, o.ID)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{OrderID: o.ID, ItemIDs: ids, Total: total, Version: version}, nil
}

// RemoveItem deletes one item from a serving order.
func (m *OrderManager) RemoveItem(ctx context.Context, orderID string, itemID uint64) error {
	var ev notify.Event
	err := m.tx(ctx, func(tx Tx) error {
		o, err := lockServing(ctx, tx, orderID)
		if err != nil {
			return err
		}
		ok, err := tx.DeleteItem(ctx, o.ID, itemID)
		if err != nil {
			return fmt.Errorf("delete item %d: %w", itemID, err)
		}
		if !ok {
			return fmt.Errorf("item %d: %w", itemID, model.ErrNotFound)
		}
		total, version, err := resum(ctx, tx, o.ID)
		if err != nil {
			return err
		}
		ev = itemsEvent(notify.KindItemRemoved, o.ID, o.TableID, []uint64{itemID}, total, version)
		return nil
	})
	if err != nil {
		return err
	}
	m.publish(ctx, ev)
	return nil
}

// SetItemPrepStatus marks an item pending or done.  The total does not
// change; the order version does.
func (m *OrderManager) SetItemPrepStatus(ctx context.Context, itemID uint64, status model.PrepStatus) error {
	if !status.Valid() {
		return model.Invalid("prep_status", "must be pending or done")
	}
	var (
		ev      notify.Event
		changed bool
	)
	err := m.tx(ctx, func(tx Tx) error {
		orderID, err := tx.ItemOrderID(ctx, itemID)
		if err != nil {
			return fmt.Errorf("item %d: %w", itemID, err)
		}
		o, err := lockServing(ctx, tx, orderID)
		if err != nil {
			return err
		}
		it, err := tx.ItemForUpdate(ctx, itemID)
		if err != nil {
			return fmt.Errorf("item %d: %w", itemID, err)
		}
		if it.OrderID != o.ID {
			return fmt.Errorf("item %d: %w", itemID, model.ErrNotFound)
		}
		if it.PrepStatus == status {
			changed = false
			return nil
		}
		if err := tx.SetItemPrepStatus(ctx, itemID, status); err != nil {
			return fmt.Errorf("set prep status: %w", err)
		}
		version, err := tx.TouchOrder(ctx, o.ID)
		if err != nil {
			return fmt.Errorf("touch order: %w", err)
		}
		changed = true
		ev = itemsEvent(notify.KindItemStatus, o.ID, o.TableID, []uint64{itemID}, o.Total, version)
		ev.Status = string(status)
		return nil
	})
	if err != nil {
		return err
	}
	if changed {
		m.publish(ctx, ev)
	}
	return nil
}

// CloseOrder marks a serving order paid and frees its table in the same
// transaction.  Closing an order that is already paid is
// model.ErrOrderClosed.
func (m *OrderManager) CloseOrder(ctx context.Context, orderID string) error {
	var ev notify.Event
	err := m.tx(ctx, func(tx Tx) error {
		o, err := lockServing(ctx, tx, orderID)
		if err != nil {
			return err
		}
		version, err := tx.SetOrderStatus(ctx, o.ID, model.OrderPaid)
		if err != nil {
			return fmt.Errorf("set status: %w", err)
		}
		if err := tx.ReleaseTableFor(ctx, o.TableID, o.ID); err != nil {
			return fmt.Errorf("release table %d: %w", o.TableID, err)
		}
		ev = notify.Event{
			Kind:    notify.KindOrderClosed,
			OrderID: o.ID,
			TableID: o.TableID,
			Status:  string(model.OrderPaid),
			Total:   o.Total,
			Version: version,
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.publish(ctx, ev)
	return nil
}

// DeleteOrder removes an order in any status together with its items and
// frees the table if it is still bound to this order.
func (m *OrderManager) DeleteOrder(ctx context.Context, orderID string) error {
	var ev notify.Event
	err := m.tx(ctx, func(tx Tx) error {
		o, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return fmt.Errorf("order %s: %w", orderID, err)
		}
		ev, _, err = deleteTx(ctx, tx, o)
		return err
	})
	if err != nil {
		return err
	}
	m.publish(ctx, ev)
	return nil
}

func deleteTx(ctx context.Context, tx Tx, o model.Order) (notify.Event, int64, error) {
	if err := tx.ReleaseTableFor(ctx, o.TableID, o.ID); err != nil {
		return notify.Event{}, 0, fmt.Errorf("release table %d: %w", o.TableID, err)
	}
	n, err := tx.DeleteOrder(ctx, o.ID)
	if err != nil {
		return notify.Event{}, 0, fmt.Errorf("delete order %s: %w", o.ID, err)
	}
	return notify.Event{
		Kind:    notify.KindOrderDeleted,
		OrderID: o.ID,
		TableID: o.TableID,
		Status:  string(o.Status),
		Total:   o.Total,
		Version: o.Version + 1,
	}, n, nil
}

// OpenOrder checks a table in and adds the first items in one
// transaction, for staff taking an order on a customer's behalf.
func (m *OrderManager) OpenOrder(ctx context.Context, tableID uint64, cust Customer, lines []Line) (Receipt, error) {
	if err := validateLines(lines); err != nil {
		return Receipt{}, err
	}
	name, phone, err := cust.normalize()
	if err != nil {
		return Receipt{}, err
	}
	var (
		order model.Order
		rc    Receipt
	)
	err = m.tx(ctx, func(tx Tx) error {
		o, err := m.tables.checkInTx(ctx, tx, tableID, name, phone)
		if err != nil {
			return err
		}
		order = o
		rc, err = m.addItemsTx(ctx, tx, o, lines)
		return err
	})
	if err != nil {
		return Receipt{}, err
	}
	m.publish(ctx,
		createdEvent(order),
		itemsEvent(notify.KindItemsAdded, rc.OrderID, tableID, rc.ItemIDs, rc.Total, rc.Version),
	)
	return rc, nil
}

// CleanupPaid deletes paid orders whose last change is older than
// olderThan and reports how many orders and items went.
func (m *OrderManager) CleanupPaid(ctx context.Context, olderThan time.Duration) (orders, items int64, err error) {
	if olderThan <= 0 {
		olderThan = DefaultRetention
	}
	cutoff := m.now().UTC().Add(-olderThan)
	var events []notify.Event
	err = m.tx(ctx, func(tx Tx) error {
		orders, items, events = 0, 0, events[:0]
		paid, err := tx.PaidOrdersBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("list paid orders: %w", err)
		}
		for _, o := range paid {
			ev, n, err := deleteTx(ctx, tx, o)
			if err != nil {
				return err
			}
			orders++
			items += n
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	m.publish(ctx, events...)
	return orders, items, nil
}

func lockServing(ctx context.Context, tx Tx, orderID string) (model.Order, error) {
	o, err := tx.OrderForUpdate(ctx, orderID)
	if err != nil {
		return model.Order{}, fmt.Errorf("order %s: %w", orderID, err)
	}
	if o.Status != model.OrderServing {
		return model.Order{}, model.ErrOrderClosed
	}
	return o, nil
}

// resum recomputes the order total from storage and bumps the version.
func resum(ctx context.Context, tx Tx, orderID string) (model.Money, uint64, error) {
	total, err := tx.SumItems(ctx, orderID)
	if err != nil {
		return 0, 0, fmt.Errorf("sum items: %w", err)
	}
	version, err := tx.UpdateOrderTotal(ctx, orderID, total)
	if err != nil {
		return 0, 0, fmt.Errorf("update total: %w", err)
	}
	return total, version, nil
}

func itemsEvent(kind notify.Kind, orderID string, tableID uint64, itemIDs []uint64, total model.Money, version uint64) notify.Event {
	return notify.Event{
		Kind:    kind,
		OrderID: orderID,
		TableID: tableID,
		ItemIDs: itemIDs,
		Status:  string(model.OrderServing),
		Total:   total,
		Version: version,
	}
}
