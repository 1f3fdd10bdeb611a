package handler

import (
	"context"

	"github.com/iliyamo/table-ordering/internal/model"
	"github.com/iliyamo/table-ordering/internal/notify"
)

// Read-side dependencies.  The MySQL repositories satisfy them in
// production and the in-memory store in tests.

type TableReader interface {
	ListTables(ctx context.Context) ([]model.Table, error)
	ListFreeTables(ctx context.Context) ([]model.Table, error)
	GetTable(ctx context.Context, id uint64) (model.Table, error)
}

type MenuReader interface {
	Menu(ctx context.Context) ([]model.CategoryWithProducts, error)
}

type OrderReader interface {
	OrderDetail(ctx context.Context, orderID string) (model.OrderDetail, error)
	ListOrders(ctx context.Context, status model.OrderStatus) ([]model.OrderDetail, error)
}

type SettingsReader interface {
	Settings(ctx context.Context) ([]model.Setting, error)
}

type StatsReader interface {
	Dashboard(ctx context.Context) (model.DashboardStats, error)
}

// StaffCaller announces a customer's request for staff.
type StaffCaller interface {
	Call(ctx context.Context, tableID uint64, call notify.StaffCall) error
}
