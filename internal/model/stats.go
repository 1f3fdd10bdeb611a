package model

// DashboardStats is the summary shown on the admin home page.
type DashboardStats struct {
	TotalTables  int   `json:"total_tables"`
	ActiveTables int   `json:"active_tables"`
	Products     int   `json:"products"`
	ActiveOrders int   `json:"active_orders"`
	PaidRevenue  Money `json:"paid_revenue"`
}
