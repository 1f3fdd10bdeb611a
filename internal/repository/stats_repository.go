package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/table-ordering/internal/model"
)

type StatsRepo struct{ DB *sql.DB }

func NewStatsRepo(db *sql.DB) *StatsRepo { return &StatsRepo{DB: db} }

// Dashboard gathers the admin home page counters in one round trip.
func (r *StatsRepo) Dashboard(ctx context.Context) (model.DashboardStats, error) {
	var s model.DashboardStats
	err := r.DB.QueryRowContext(ctx, `
		SELECT
		  (SELECT COUNT(*) FROM tables),
		  (SELECT COUNT(*) FROM tables WHERE occupied = 1),
		  (SELECT COUNT(*) FROM products),
		  (SELECT COUNT(*) FROM orders WHERE status = 'serving'),
		  (SELECT COALESCE(SUM(total), 0) FROM orders WHERE status = 'paid')`).
		Scan(&s.TotalTables, &s.ActiveTables, &s.Products, &s.ActiveOrders, &s.PaidRevenue)
	if err != nil {
		return model.DashboardStats{}, classify(err)
	}
	return s, nil
}
