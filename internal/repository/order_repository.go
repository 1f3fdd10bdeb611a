package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/table-ordering/internal/model"
)

// OrderRepo serves the order views for dashboards and customer devices.
// All writes go through the service transactions.
type OrderRepo struct{ DB *sql.DB }

func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{DB: db} }

const orderDetailQuery = "SELECT " + orderColumns + ", t.label FROM orders o JOIN tables t ON t.id = o.table_id"

// OrderDetail returns one order with its table label and items.
func (r *OrderRepo) OrderDetail(ctx context.Context, orderID string) (model.OrderDetail, error) {
	var d model.OrderDetail
	o, err := scanOrder(r.DB.QueryRowContext(ctx, orderDetailQuery+" WHERE o.id = ?", orderID), &d.TableLabel)
	if err != nil {
		return model.OrderDetail{}, classify(err)
	}
	d.Order = o
	items, err := r.items(ctx, []string{o.ID})
	if err != nil {
		return model.OrderDetail{}, err
	}
	d.Items = items[o.ID]
	if d.Items == nil {
		d.Items = []model.OrderItemDetail{}
	}
	return d, nil
}

// ListOrders returns orders newest first with their items.  An empty
// status lists every order.
func (r *OrderRepo) ListOrders(ctx context.Context, status model.OrderStatus) ([]model.OrderDetail, error) {
	query := orderDetailQuery
	var args []any
	if status != "" {
		query += " WHERE o.status = ?"
		args = append(args, status)
	}
	query += " ORDER BY o.created_at DESC, o.id"

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	out := []model.OrderDetail{}
	var ids []string
	for rows.Next() {
		var d model.OrderDetail
		o, err := scanOrder(rows, &d.TableLabel)
		if err != nil {
			rows.Close()
			return nil, err
		}
		d.Order = o
		out = append(out, d)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, classify(err)
	}
	rows.Close()
	if len(ids) == 0 {
		return out, nil
	}

	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
		if out[i].Items == nil {
			out[i].Items = []model.OrderItemDetail{}
		}
	}
	return out, nil
}

func (r *OrderRepo) items(ctx context.Context, orderIDs []string) (map[string][]model.OrderItemDetail, error) {
	args := make([]any, len(orderIDs))
	for i, id := range orderIDs {
		args[i] = id
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+itemColumns+", p.name FROM order_items i JOIN products p ON p.id = i.product_id"+
			" WHERE i.order_id IN ("+placeholders(len(orderIDs))+") ORDER BY i.id", args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	out := make(map[string][]model.OrderItemDetail, len(orderIDs))
	for rows.Next() {
		var d model.OrderItemDetail
		it, err := scanItem(rows, &d.ProductName)
		if err != nil {
			return nil, err
		}
		d.OrderItem = it
		out[it.OrderID] = append(out[it.OrderID], d)
	}
	return out, classify(rows.Err())
}
