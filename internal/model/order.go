package model

import "time"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderServing OrderStatus = "serving"
	OrderPaid    OrderStatus = "paid"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool { return s == OrderServing || s == OrderPaid }

// PrepStatus tracks kitchen progress on a single order line.
type PrepStatus string

const (
	PrepPending PrepStatus = "pending"
	PrepDone    PrepStatus = "done"
)

// Valid reports whether s is a known preparation status.
func (s PrepStatus) Valid() bool { return s == PrepPending || s == PrepDone }

// Order is the aggregate root for everything served at a table during one
// visit.  Total is always the re-summed value of its items; Version grows by
// one with every committed mutation and orders notifications.
//
// Fields:
//  ID            – UUID primary key.
//  TableID       – table the order was opened on.
//  CustomerName  – optional name given at check-in.
//  CustomerPhone – optional phone given at check-in.
//  Total         – Σ price_snapshot × quantity over current items.
//  Status        – serving or paid.
//  Version       – monotonic mutation counter.
//  CreatedBy     – actor tag of whoever opened the order.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Order struct {
	ID            string      `json:"id"`                       // orders.id
	TableID       uint64      `json:"table_id"`                 // orders.table_id
	CustomerName  *string     `json:"customer_name,omitempty"`  // orders.customer_name (nullable)
	CustomerPhone *string     `json:"customer_phone,omitempty"` // orders.customer_phone (nullable)
	Total         Money       `json:"total"`                    // orders.total
	Status        OrderStatus `json:"status"`                   // orders.status
	Version       uint64      `json:"version"`                  // orders.version
	CreatedBy     string      `json:"created_by"`               // orders.created_by
	CreatedAt     time.Time   `json:"created_at"`               // orders.created_at
	UpdatedAt     time.Time   `json:"updated_at"`               // orders.updated_at
}

// OrderItem is one line of an order.  PriceSnapshot is frozen at insertion
// and never follows later product price changes.
type OrderItem struct {
	ID            uint64     `json:"id"`             // order_items.id
	OrderID       string     `json:"order_id"`       // order_items.order_id
	ProductID     uint64     `json:"product_id"`     // order_items.product_id
	Quantity      int        `json:"quantity"`       // order_items.quantity
	PriceSnapshot Money      `json:"price_snapshot"` // order_items.price_snapshot
	Note          *string    `json:"note,omitempty"` // order_items.note (nullable)
	PrepStatus    PrepStatus `json:"prep_status"`    // order_items.prep_status
	CreatedAt     time.Time  `json:"created_at"`     // order_items.created_at
}

// Subtotal is the line amount.
func (it OrderItem) Subtotal() Money { return it.PriceSnapshot.Times(it.Quantity) }

// SumItems re-sums a set of items.  It is the single definition of an order
// total used by every store implementation.
func SumItems(items []OrderItem) Money {
	var total Money
	for _, it := range items {
		total += it.Subtotal()
	}
	return total
}

// OrderItemDetail is an order line joined with its product name for display.
type OrderItemDetail struct {
	OrderItem
	ProductName string `json:"product_name"`
}

// OrderDetail is an order with its lines and table label, the shape served
// to admin dashboards and customer devices.
type OrderDetail struct {
	Order
	TableLabel string            `json:"table_label"`
	Items      []OrderItemDetail `json:"items"`
}
