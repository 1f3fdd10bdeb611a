package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/table-ordering/internal/model"
)

// sqlTx implements service.Tx on one *sql.Tx.  Locking reads use
// SELECT ... FOR UPDATE (or LOCK IN SHARE MODE for products) so the row
// stays locked until the surrounding transaction ends.
type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) TableForUpdate(ctx context.Context, tableID uint64) (model.Table, error) {
	row := t.tx.QueryRowContext(ctx,
		"SELECT "+tableColumns+" FROM tables t WHERE t.id = ? FOR UPDATE", tableID)
	tb, err := scanTable(row)
	if err != nil {
		return model.Table{}, classify(err)
	}
	return tb, nil
}

func (t *sqlTx) OccupyTable(ctx context.Context, tableID uint64, orderID string) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE tables SET occupied = 1, active_order_id = ?
		 WHERE id = ? AND occupied = 0`, orderID, tableID)
	if err != nil {
		return false, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (t *sqlTx) ReleaseTable(ctx context.Context, tableID uint64) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE tables SET occupied = 0, active_order_id = NULL WHERE id = ?", tableID)
	return classify(err)
}

func (t *sqlTx) ReleaseTableFor(ctx context.Context, tableID uint64, orderID string) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE tables SET occupied = 0, active_order_id = NULL
		 WHERE id = ? AND active_order_id = ?`, tableID, orderID)
	return classify(err)
}

func (t *sqlTx) CreateOrder(ctx context.Context, o *model.Order) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO orders
		   (id, table_id, customer_name, customer_phone, total, status, version, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.TableID, o.CustomerName, o.CustomerPhone, o.Total, o.Status, o.Version,
		o.CreatedBy, o.CreatedAt, o.UpdatedAt)
	return classify(err)
}

func (t *sqlTx) OrderForUpdate(ctx context.Context, orderID string) (model.Order, error) {
	row := t.tx.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders o WHERE o.id = ? FOR UPDATE", orderID)
	o, err := scanOrder(row)
	if err != nil {
		return model.Order{}, classify(err)
	}
	return o, nil
}

func (t *sqlTx) ProductsForShare(ctx context.Context, ids []uint64) (map[uint64]model.Product, error) {
	out := make(map[uint64]model.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := t.tx.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products p WHERE p.id IN ("+placeholders(len(ids))+") LOCK IN SHARE MODE",
		args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, classify(rows.Err())
}

// InsertItems inserts one row per item so every id comes from its own
// LastInsertId.
func (t *sqlTx) InsertItems(ctx context.Context, items []model.OrderItem) ([]uint64, error) {
	ids := make([]uint64, 0, len(items))
	for _, it := range items {
		res, err := t.tx.ExecContext(ctx,
			`INSERT INTO order_items
			   (order_id, product_id, quantity, price_snapshot, note, prep_status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			it.OrderID, it.ProductID, it.Quantity, it.PriceSnapshot, it.Note, it.PrepStatus, it.CreatedAt)
		if err != nil {
			return nil, classify(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		ids = append(ids, uint64(id))
	}
	return ids, nil
}

func (t *sqlTx) DeleteItem(ctx context.Context, orderID string, itemID uint64) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		"DELETE FROM order_items WHERE id = ? AND order_id = ?", itemID, orderID)
	if err != nil {
		return false, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (t *sqlTx) ItemOrderID(ctx context.Context, itemID uint64) (string, error) {
	var orderID string
	err := t.tx.QueryRowContext(ctx,
		"SELECT order_id FROM order_items WHERE id = ?", itemID).Scan(&orderID)
	return orderID, classify(err)
}

func (t *sqlTx) ItemForUpdate(ctx context.Context, itemID uint64) (model.OrderItem, error) {
	row := t.tx.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM order_items i WHERE i.id = ? FOR UPDATE", itemID)
	it, err := scanItem(row)
	if err != nil {
		return model.OrderItem{}, classify(err)
	}
	return it, nil
}

func (t *sqlTx) SetItemPrepStatus(ctx context.Context, itemID uint64, status model.PrepStatus) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE order_items SET prep_status = ? WHERE id = ?", status, itemID)
	return classify(err)
}

func (t *sqlTx) SumItems(ctx context.Context, orderID string) (model.Money, error) {
	var total model.Money
	err := t.tx.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(price_snapshot * quantity), 0) FROM order_items WHERE order_id = ?",
		orderID).Scan(&total)
	return total, classify(err)
}

// bump applies set (a "col = ?" fragment, may be empty) to the order,
// increments its version and returns the new version.
func (t *sqlTx) bump(ctx context.Context, orderID, set string, args ...any) (uint64, error) {
	if set != "" {
		set += ", "
	}
	args = append(args, orderID)
	res, err := t.tx.ExecContext(ctx,
		"UPDATE orders SET "+set+"version = version + 1, updated_at = UTC_TIMESTAMP(3) WHERE id = ?",
		args...)
	if err != nil {
		return 0, classify(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, err
	} else if n == 0 {
		return 0, fmt.Errorf("order %s: %w", orderID, model.ErrNotFound)
	}
	var version uint64
	err = t.tx.QueryRowContext(ctx, "SELECT version FROM orders WHERE id = ?", orderID).Scan(&version)
	return version, classify(err)
}

func (t *sqlTx) UpdateOrderTotal(ctx context.Context, orderID string, total model.Money) (uint64, error) {
	return t.bump(ctx, orderID, "total = ?", total)
}

func (t *sqlTx) SetOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) (uint64, error) {
	return t.bump(ctx, orderID, "status = ?", status)
}

func (t *sqlTx) TouchOrder(ctx context.Context, orderID string) (uint64, error) {
	return t.bump(ctx, orderID, "")
}

func (t *sqlTx) DeleteOrder(ctx context.Context, orderID string) (int64, error) {
	res, err := t.tx.ExecContext(ctx, "DELETE FROM order_items WHERE order_id = ?", orderID)
	if err != nil {
		return 0, classify(err)
	}
	items, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	res, err = t.tx.ExecContext(ctx, "DELETE FROM orders WHERE id = ?", orderID)
	if err != nil {
		return 0, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("order %s: %w", orderID, model.ErrNotFound)
	}
	return items, nil
}

func (t *sqlTx) PaidOrdersBefore(ctx context.Context, cutoff time.Time) ([]model.Order, error) {
	rows, err := t.tx.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders o WHERE o.status = 'paid' AND o.updated_at < ? FOR UPDATE",
		cutoff.UTC())
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var out []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, classify(rows.Err())
}
