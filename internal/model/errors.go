// Package model holds the entities shared by the store adapters, the order
// services and the HTTP layer, together with the error taxonomy every
// mutating operation reports through.
package model

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyOccupied is returned when a check-in loses the race for a
	// table.  Callers re-read the table and tell the user.
	ErrAlreadyOccupied = errors.New("table already occupied")

	// ErrOrderClosed is returned when an item mutation or a second close is
	// attempted on a paid order.  Never retried.
	ErrOrderClosed = errors.New("order closed")

	// ErrNotFound is returned when a referenced table, order, item or product
	// no longer exists.
	ErrNotFound = errors.New("not found")

	// ErrContention is returned when a row lock could not be acquired within
	// the configured wait.  The services retry it once before surfacing it.
	ErrContention = errors.New("contention")

	// ErrValidation is the class of all malformed-input errors.
	ErrValidation = errors.New("validation failed")
)

// ValidationError describes one rejected input field.  errors.Is(err,
// ErrValidation) holds for every *ValidationError.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a *ValidationError.
func Invalid(field, msg string) error { return &ValidationError{Field: field, Msg: msg} }
