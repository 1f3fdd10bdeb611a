package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/table-ordering/internal/model"
)

// SettingsRepo stores the free-form display settings.
type SettingsRepo struct{ DB *sql.DB }

func NewSettingsRepo(db *sql.DB) *SettingsRepo { return &SettingsRepo{DB: db} }

func (r *SettingsRepo) Settings(ctx context.Context) ([]model.Setting, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT `key`, value, updated_at FROM settings ORDER BY `key`")
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	out := []model.Setting{}
	for rows.Next() {
		var s model.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, classify(rows.Err())
}

// UpsertSettings writes all values in one transaction.
func (r *SettingsRepo) UpsertSettings(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for k, v := range values {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO settings (`key`, value) VALUES (?, ?) ON DUPLICATE KEY UPDATE value = VALUES(value)",
			k, v); err != nil {
			return classify(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	committed = true
	return nil
}
