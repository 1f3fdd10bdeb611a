package service

import (
	"strings"
	"unicode/utf8"

	"github.com/iliyamo/table-ordering/internal/model"
)

const (
	maxNameRunes  = 100
	maxPhoneChars = 32
	maxNoteRunes  = 500
	maxQuantity   = 10000
	maxLines      = 100
)

// Customer is the optional identity a device supplies at check-in.
type Customer struct {
	Name  string
	Phone string
}

// normalize trims both fields and returns nil pointers for empty values.
func (c Customer) normalize() (name, phone *string, err error) {
	n := strings.TrimSpace(c.Name)
	p := strings.TrimSpace(c.Phone)
	if utf8.RuneCountInString(n) > maxNameRunes {
		return nil, nil, model.Invalid("customer_name", "must be at most 100 characters")
	}
	if len(p) > maxPhoneChars {
		return nil, nil, model.Invalid("customer_phone", "must be at most 32 characters")
	}
	for _, r := range p {
		if !validPhoneRune(r) {
			return nil, nil, model.Invalid("customer_phone", "may only contain digits, spaces and + - . ( )")
		}
	}
	if n != "" {
		name = &n
	}
	if p != "" {
		phone = &p
	}
	return name, phone, nil
}

func validPhoneRune(r rune) bool {
	if r >= '0' && r <= '9' {
		return true
	}
	switch r {
	case ' ', '+', '-', '.', '(', ')':
		return true
	}
	return false
}

// Line is one requested item.  It has no price field; the price always
// comes from the product row.
type Line struct {
	ProductID uint64
	Quantity  int
	Note      string
}

func validateLines(lines []Line) error {
	if len(lines) == 0 {
		return model.Invalid("items", "at least one item is required")
	}
	if len(lines) > maxLines {
		return model.Invalid("items", "at most 100 lines per request")
	}
	for _, l := range lines {
		if l.ProductID == 0 {
			return model.Invalid("product_id", "is required")
		}
		if l.Quantity <= 0 {
			return model.Invalid("quantity", "must be greater than zero")
		}
		if l.Quantity > maxQuantity {
			return model.Invalid("quantity", "must be at most 10000")
		}
		if utf8.RuneCountInString(l.Note) > maxNoteRunes {
			return model.Invalid("note", "must be at most 500 characters")
		}
	}
	return nil
}

func productIDs(lines []Line) []uint64 {
	seen := make(map[uint64]struct{}, len(lines))
	ids := make([]uint64, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	return ids
}
