package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/table-ordering/internal/model"
)

// TableRepo reads and maintains the dining tables.  Occupancy itself is
// only changed through the service transactions.
type TableRepo struct{ DB *sql.DB }

func NewTableRepo(db *sql.DB) *TableRepo { return &TableRepo{DB: db} }

func (r *TableRepo) list(ctx context.Context, where string) ([]model.Table, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+tableColumns+" FROM tables t "+where+" ORDER BY t.label, t.id")
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	out := []model.Table{}
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, classify(rows.Err())
}

// ListTables returns every table.
func (r *TableRepo) ListTables(ctx context.Context) ([]model.Table, error) {
	return r.list(ctx, "")
}

// ListFreeTables returns the tables a walk-in customer can pick.
func (r *TableRepo) ListFreeTables(ctx context.Context) ([]model.Table, error) {
	return r.list(ctx, "WHERE t.occupied = 0")
}

func (r *TableRepo) GetTable(ctx context.Context, id uint64) (model.Table, error) {
	t, err := scanTable(r.DB.QueryRowContext(ctx, "SELECT "+tableColumns+" FROM tables t WHERE t.id = ?", id))
	if err != nil {
		return model.Table{}, classify(err)
	}
	return t, nil
}

func (r *TableRepo) CreateTable(ctx context.Context, label string) (model.Table, error) {
	label = strings.TrimSpace(label)
	res, err := r.DB.ExecContext(ctx, "INSERT INTO tables (label) VALUES (?)", label)
	if err != nil {
		return model.Table{}, classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Table{}, err
	}
	return r.GetTable(ctx, uint64(id))
}

func (r *TableRepo) RenameTable(ctx context.Context, id uint64, label string) (model.Table, error) {
	if _, err := r.DB.ExecContext(ctx, "UPDATE tables SET label = ? WHERE id = ?", strings.TrimSpace(label), id); err != nil {
		return model.Table{}, classify(err)
	}
	// affected rows is 0 for an unchanged label, so existence is checked by reading back
	return r.GetTable(ctx, id)
}

// DeleteTable removes a free table without order history.
func (r *TableRepo) DeleteTable(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM tables WHERE id = ? AND occupied = 0", id)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := r.GetTable(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("table %d is occupied: %w", id, ErrConflict)
}
