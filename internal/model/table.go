package model

import "time"

// Table is a physical table in the dining room.  Each table has its own QR
// code pointing at /order/<id>.  Occupied and ActiveOrderID always move
// together: a table is occupied exactly when it points at a serving order.
//
// Fields:
//  ID            – primary key identifier.
//  Label         – human label printed on the table ("A1", "Terrace 3").
//  Occupied      – whether a customer session is bound to the table.
//  ActiveOrderID – order currently being served at the table (nil when free).
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Table struct {
	ID            uint64    `json:"id"`                        // tables.id
	Label         string    `json:"label"`                     // tables.label
	Occupied      bool      `json:"occupied"`                  // tables.occupied
	ActiveOrderID *string   `json:"active_order_id,omitempty"` // tables.active_order_id (nullable)
	CreatedAt     time.Time `json:"created_at"`                // tables.created_at
	UpdatedAt     time.Time `json:"updated_at"`                // tables.updated_at
}

// Free reports whether the table can accept a check-in.
func (t Table) Free() bool { return !t.Occupied && t.ActiveOrderID == nil }
