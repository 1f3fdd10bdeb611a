package memstore

import (
	"context"
	"time"

	"github.com/iliyamo/table-ordering/internal/model"
)

// tx implements service.Tx on a private copy of the state.
type tx struct {
	st  *state
	now func() time.Time
}

func (t *tx) TableForUpdate(_ context.Context, tableID uint64) (model.Table, error) {
	tb, ok := t.st.tables[tableID]
	if !ok {
		return model.Table{}, model.ErrNotFound
	}
	return tb, nil
}

func (t *tx) OccupyTable(_ context.Context, tableID uint64, orderID string) (bool, error) {
	tb, ok := t.st.tables[tableID]
	if !ok || tb.Occupied {
		return false, nil
	}
	id := orderID
	tb.Occupied = true
	tb.ActiveOrderID = &id
	tb.UpdatedAt = t.now().UTC()
	t.st.tables[tableID] = tb
	return true, nil
}

func (t *tx) ReleaseTable(_ context.Context, tableID uint64) error {
	tb, ok := t.st.tables[tableID]
	if !ok {
		return model.ErrNotFound
	}
	tb.Occupied = false
	tb.ActiveOrderID = nil
	tb.UpdatedAt = t.now().UTC()
	t.st.tables[tableID] = tb
	return nil
}

func (t *tx) ReleaseTableFor(ctx context.Context, tableID uint64, orderID string) error {
	tb, ok := t.st.tables[tableID]
	if !ok || tb.ActiveOrderID == nil || *tb.ActiveOrderID != orderID {
		return nil
	}
	return t.ReleaseTable(ctx, tableID)
}

func (t *tx) CreateOrder(_ context.Context, o *model.Order) error {
	if _, ok := t.st.tables[o.TableID]; !ok {
		return model.ErrNotFound
	}
	t.st.orders[o.ID] = *o
	return nil
}

func (t *tx) OrderForUpdate(_ context.Context, orderID string) (model.Order, error) {
	o, ok := t.st.orders[orderID]
	if !ok {
		return model.Order{}, model.ErrNotFound
	}
	return o, nil
}

func (t *tx) ProductsForShare(_ context.Context, ids []uint64) (map[uint64]model.Product, error) {
	out := make(map[uint64]model.Product, len(ids))
	for _, id := range ids {
		if p, ok := t.st.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (t *tx) InsertItems(_ context.Context, items []model.OrderItem) ([]uint64, error) {
	ids := make([]uint64, 0, len(items))
	for _, it := range items {
		if _, ok := t.st.orders[it.OrderID]; !ok {
			return nil, model.ErrNotFound
		}
		t.st.nextItem++
		it.ID = t.st.nextItem
		t.st.items[it.ID] = it
		ids = append(ids, it.ID)
	}
	return ids, nil
}

func (t *tx) DeleteItem(_ context.Context, orderID string, itemID uint64) (bool, error) {
	it, ok := t.st.items[itemID]
	if !ok || it.OrderID != orderID {
		return false, nil
	}
	delete(t.st.items, itemID)
	return true, nil
}

func (t *tx) ItemOrderID(_ context.Context, itemID uint64) (string, error) {
	it, ok := t.st.items[itemID]
	if !ok {
		return "", model.ErrNotFound
	}
	return it.OrderID, nil
}

func (t *tx) ItemForUpdate(_ context.Context, itemID uint64) (model.OrderItem, error) {
	it, ok := t.st.items[itemID]
	if !ok {
		return model.OrderItem{}, model.ErrNotFound
	}
	return it, nil
}

func (t *tx) SetItemPrepStatus(_ context.Context, itemID uint64, status model.PrepStatus) error {
	it, ok := t.st.items[itemID]
	if !ok {
		return model.ErrNotFound
	}
	it.PrepStatus = status
	t.st.items[itemID] = it
	return nil
}

func (t *tx) SumItems(_ context.Context, orderID string) (model.Money, error) {
	return model.SumItems(t.st.orderItems(orderID)), nil
}

func (t *tx) bump(orderID string, mutate func(*model.Order)) (uint64, error) {
	o, ok := t.st.orders[orderID]
	if !ok {
		return 0, model.ErrNotFound
	}
	mutate(&o)
	o.Version++
	o.UpdatedAt = t.now().UTC()
	t.st.orders[orderID] = o
	return o.Version, nil
}

func (t *tx) UpdateOrderTotal(_ context.Context, orderID string, total model.Money) (uint64, error) {
	return t.bump(orderID, func(o *model.Order) { o.Total = total })
}

func (t *tx) SetOrderStatus(_ context.Context, orderID string, status model.OrderStatus) (uint64, error) {
	return t.bump(orderID, func(o *model.Order) { o.Status = status })
}

func (t *tx) TouchOrder(_ context.Context, orderID string) (uint64, error) {
	return t.bump(orderID, func(*model.Order) {})
}

func (t *tx) DeleteOrder(_ context.Context, orderID string) (int64, error) {
	if _, ok := t.st.orders[orderID]; !ok {
		return 0, model.ErrNotFound
	}
	var n int64
	for id, it := range t.st.items {
		if it.OrderID == orderID {
			delete(t.st.items, id)
			n++
		}
	}
	delete(t.st.orders, orderID)
	return n, nil
}

func (t *tx) PaidOrdersBefore(_ context.Context, cutoff time.Time) ([]model.Order, error) {
	var out []model.Order
	for _, o := range t.st.orders {
		if o.Status == model.OrderPaid && o.UpdatedAt.Before(cutoff) {
			out = append(out, o)
		}
	}
	return out, nil
}
