package model

import "time"

// Category groups products on the menu.  Lower priority values sort first.
type Category struct {
	ID        uint64    `json:"id"`         // categories.id
	Name      string    `json:"name"`       // categories.name
	Priority  int       `json:"priority"`   // categories.priority
	CreatedAt time.Time `json:"created_at"` // categories.created_at
}

// Product is a sellable menu entry.  Orders never reference the live price;
// each order item copies Price at insertion time.
//
// Fields:
//  ID         – primary key identifier.
//  CategoryID – owning category.
//  Name       – display name.
//  Price      – current unit price in minor units.
//  ImageRef   – opaque reference to the product image (URL or storage key).
//  Available  – whether the product can currently be ordered.
type Product struct {
	ID         uint64    `json:"id"`          // products.id
	CategoryID uint64    `json:"category_id"` // products.category_id
	Name       string    `json:"name"`        // products.name
	Price      Money     `json:"price"`       // products.price
	ImageRef   string    `json:"image_ref"`   // products.image_ref
	Available  bool      `json:"available"`   // products.is_available
	CreatedAt  time.Time `json:"created_at"`  // products.created_at
	UpdatedAt  time.Time `json:"updated_at"`  // products.updated_at
}

// CategoryWithProducts is the menu view returned to customer devices.
type CategoryWithProducts struct {
	Category
	Products []Product `json:"products"`
}

// Setting is a free-form display configuration entry (shop name, wifi
// password, banner text ...).
type Setting struct {
	Key       string    `json:"key"`        // settings.key
	Value     string    `json:"value"`      // settings.value
	UpdatedAt time.Time `json:"updated_at"` // settings.updated_at
}
