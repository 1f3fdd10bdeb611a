package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/iliyamo/table-ordering/internal/model"
	"github.com/iliyamo/table-ordering/internal/notify"
)

// TableCoordinator binds customer sessions to tables.  A table holds at
// most one serving order; the binding is only ever made by a conditional
// update inside the same transaction that creates the order.
type TableCoordinator struct {
	runner
}

// NewTableCoordinator returns a coordinator that runs its transactions on
// store and announces committed check-ins on pub.  A nil pub discards
// events; a nil store panics.
func NewTableCoordinator(store Store, pub Publisher, opts ...Option) *TableCoordinator {
	return &TableCoordinator{runner: newRunner(store, pub, opts)}
}

// CheckIn creates a serving order for a free table and returns its id.
// Of two concurrent check-ins on the same table exactly one succeeds; the
// other gets model.ErrAlreadyOccupied.
func (c *TableCoordinator) CheckIn(ctx context.Context, tableID uint64, cust Customer) (string, error) {
	name, phone, err := cust.normalize()
	if err != nil {
		return "", err
	}
	var order model.Order
	err = c.tx(ctx, func(tx Tx) error {
		o, err := c.checkInTx(ctx, tx, tableID, name, phone)
		order = o
		return err
	})
	if err != nil {
		return "", err
	}
	c.publish(ctx, createdEvent(order))
	return order.ID, nil
}

func (c *TableCoordinator) checkInTx(ctx context.Context, tx Tx, tableID uint64, name, phone *string) (model.Order, error) {
	t, err := tx.TableForUpdate(ctx, tableID)
	if err != nil {
		return model.Order{}, fmt.Errorf("table %d: %w", tableID, err)
	}
	if !t.Free() {
		return model.Order{}, model.ErrAlreadyOccupied
	}
	now := c.now().UTC()
	o := model.Order{
		ID:            uuid.NewString(),
		TableID:       tableID,
		CustomerName:  name,
		CustomerPhone: phone,
		Total:         0,
		Status:        model.OrderServing,
		Version:       1,
		CreatedBy:     notify.ActorFrom(ctx),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.CreateOrder(ctx, &o); err != nil {
		return model.Order{}, fmt.Errorf("create order: %w", err)
	}
	ok, err := tx.OccupyTable(ctx, tableID, o.ID)
	if err != nil {
		return model.Order{}, fmt.Errorf("occupy table %d: %w", tableID, err)
	}
	if !ok {
		return model.Order{}, model.ErrAlreadyOccupied
	}
	return o, nil
}

// Release frees a table.  Releasing a free table is a no-op.
func (c *TableCoordinator) Release(ctx context.Context, tableID uint64) error {
	return c.tx(ctx, func(tx Tx) error {
		t, err := tx.TableForUpdate(ctx, tableID)
		if err != nil {
			return fmt.Errorf("table %d: %w", tableID, err)
		}
		if t.Free() {
			return nil
		}
		return tx.ReleaseTable(ctx, tableID)
	})
}

func createdEvent(o model.Order) notify.Event {
	return notify.Event{
		Kind:    notify.KindOrderCreated,
		OrderID: o.ID,
		TableID: o.TableID,
		Status:  string(o.Status),
		Total:   o.Total,
		Version: o.Version,
	}
}
