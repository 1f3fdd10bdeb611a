// Package repository is the MySQL adapter: the transactional store the
// order services run on, and the read/CRUD queries behind the HTTP API.
//
// Every error that leaves this package has been classified: lock wait
// timeouts and deadlocks become model.ErrContention, missing rows
// model.ErrNotFound, and constraint violations ErrConflict.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/table-ordering/internal/model"
)

// ErrConflict is returned when a write violates a uniqueness or foreign
// key constraint, e.g. deleting a product that appears on orders or
// creating a second table with the same label.  Handlers translate it to
// HTTP 409.
var ErrConflict = errors.New("conflict")

// MySQL server error numbers the adapter reacts to.
const (
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
	errDuplicateEntry  = 1062
	errRowIsReferenced = 1451
	errNoReferencedRow = 1452
)

// classify maps driver errors onto the model taxonomy, keeping the original
// error in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", model.ErrNotFound, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", model.ErrContention, err)
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case errLockWaitTimeout, errDeadlock:
			return fmt.Errorf("%w: %w", model.ErrContention, err)
		case errDuplicateEntry, errRowIsReferenced:
			return fmt.Errorf("%w: %w", ErrConflict, err)
		case errNoReferencedRow:
			return fmt.Errorf("%w: %w", model.ErrNotFound, err)
		}
	}
	return err
}
