package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/table-ordering/internal/service"
)

// Store runs service transactions on MySQL.  Each transaction first caps
// how long InnoDB waits for a row lock on its connection, so a blocked
// writer fails with model.ErrContention instead of hanging.
type Store struct {
	DB       *sql.DB
	LockWait time.Duration
}

func NewStore(db *sql.DB, lockWait time.Duration) *Store {
	if db == nil {
		panic("nil db passed to NewStore")
	}
	if lockWait < time.Second {
		lockWait = time.Second // InnoDB granularity
	}
	return &Store{DB: db, LockWait: lockWait}
}

// Transactionally implements service.Store.
func (s *Store) Transactionally(ctx context.Context, fn func(service.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx,
		"SET SESSION innodb_lock_wait_timeout = ?", int(s.LockWait/time.Second)); err != nil {
		return fmt.Errorf("set lock wait timeout: %w", classify(err))
	}
	if err := fn(&sqlTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	committed = true
	return nil
}
