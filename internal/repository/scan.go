package repository

import (
	"database/sql"
	"strings"

	"github.com/iliyamo/table-ordering/internal/model"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const (
	tableColumns   = "t.id, t.label, t.occupied, t.active_order_id, t.created_at, t.updated_at"
	productColumns = "p.id, p.category_id, p.name, p.price, p.image_ref, p.is_available, p.created_at, p.updated_at"
	orderColumns   = "o.id, o.table_id, o.customer_name, o.customer_phone, o.total, o.status, o.version, o.created_by, o.created_at, o.updated_at"
	itemColumns    = "i.id, i.order_id, i.product_id, i.quantity, i.price_snapshot, i.note, i.prep_status, i.created_at"
)

func scanTable(s rowScanner) (model.Table, error) {
	var (
		t      model.Table
		active sql.NullString
	)
	if err := s.Scan(&t.ID, &t.Label, &t.Occupied, &active, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return model.Table{}, err
	}
	t.ActiveOrderID = nullString(active)
	return t, nil
}

func scanProduct(s rowScanner) (model.Product, error) {
	var p model.Product
	err := s.Scan(&p.ID, &p.CategoryID, &p.Name, &p.Price, &p.ImageRef, &p.Available, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// scanOrder reads orderColumns followed by any extra destinations.
func scanOrder(s rowScanner, extra ...any) (model.Order, error) {
	var (
		o           model.Order
		name, phone sql.NullString
	)
	dest := append([]any{&o.ID, &o.TableID, &name, &phone, &o.Total, &o.Status, &o.Version,
		&o.CreatedBy, &o.CreatedAt, &o.UpdatedAt}, extra...)
	if err := s.Scan(dest...); err != nil {
		return model.Order{}, err
	}
	o.CustomerName = nullString(name)
	o.CustomerPhone = nullString(phone)
	return o, nil
}

func scanItem(s rowScanner, extra ...any) (model.OrderItem, error) {
	var (
		it   model.OrderItem
		note sql.NullString
	)
	dest := append([]any{&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.PriceSnapshot,
		&note, &it.PrepStatus, &it.CreatedAt}, extra...)
	if err := s.Scan(dest...); err != nil {
		return model.OrderItem{}, err
	}
	it.Note = nullString(note)
	return it, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// placeholders returns "?,?,?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}
