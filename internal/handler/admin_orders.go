package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-ordering/internal/model"
	"github.com/iliyamo/table-ordering/internal/service"
)

// OrderAdminHandler serves the admin dashboard and kitchen displays.
type OrderAdminHandler struct {
	Orders    OrderReader
	Stats     StatsReader
	Coord     *service.TableCoordinator
	Manager   *service.OrderManager
	Retention time.Duration // default cutoff for cleanup
}

// NewOrderAdminHandler panics if any dependency is nil.
func NewOrderAdminHandler(orders OrderReader, stats StatsReader, coord *service.TableCoordinator,
	manager *service.OrderManager, retention time.Duration) *OrderAdminHandler {
	if orders == nil || stats == nil || coord == nil || manager == nil {
		panic("nil dependency passed to NewOrderAdminHandler")
	}
	if retention <= 0 {
		retention = service.DefaultRetention
	}
	return &OrderAdminHandler{Orders: orders, Stats: stats, Coord: coord, Manager: manager, Retention: retention}
}

type openOrderReq struct {
	TableID       uint64    `json:"table_id"`
	CustomerName  string    `json:"customer_name"`
	CustomerPhone string    `json:"customer_phone"`
	Items         []lineReq `json:"items"`
}

type prepStatusReq struct {
	Status string `json:"status"`
}

// ListOrders handles GET /v1/admin/orders?status=serving|paid.  Without a
// status every order is listed, newest first.
func (h *OrderAdminHandler) ListOrders(c echo.Context) error {
	status := model.OrderStatus(c.QueryParam("status"))
	if status != "" && !status.Valid() {
		return badRequest(c, "status must be serving or paid")
	}
	orders, err := h.Orders.ListOrders(c.Request().Context(), status)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": orders})
}

// GetOrder handles GET /v1/admin/orders/:id.
func (h *OrderAdminHandler) GetOrder(c echo.Context) error {
	d, err := h.Orders.OrderDetail(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// OpenOrder handles POST /v1/admin/orders: check in a table on behalf of a
// customer and place the first items in one step.
func (h *OrderAdminHandler) OpenOrder(c echo.Context) error {
	var req openOrderReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.TableID == 0 {
		return badRequest(c, "table_id is required")
	}
	rc, err := h.Manager.OpenOrder(c.Request().Context(), req.TableID,
		service.Customer{Name: req.CustomerName, Phone: req.CustomerPhone},
		itemsReq{Items: req.Items}.lines())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, rc)
}

// AddItems handles POST /v1/admin/orders/:id/items.
func (h *OrderAdminHandler) AddItems(c echo.Context) error {
	var req itemsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	rc, err := h.Manager.AddItems(c.Request().Context(), c.Param("id"), req.lines())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, rc)
}

// RemoveItem handles DELETE /v1/admin/orders/:id/items/:itemId.
func (h *OrderAdminHandler) RemoveItem(c echo.Context) error {
	itemID, ok := paramID(c, "itemId")
	if !ok {
		return badRequest(c, "invalid item id")
	}
	if err := h.Manager.RemoveItem(c.Request().Context(), c.Param("id"), itemID); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SetItemStatus handles PATCH /v1/admin/items/:id.
func (h *OrderAdminHandler) SetItemStatus(c echo.Context) error {
	itemID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req prepStatusReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := h.Manager.SetItemPrepStatus(c.Request().Context(), itemID, model.PrepStatus(req.Status)); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CloseOrder handles POST /v1/admin/orders/:id/close.
func (h *OrderAdminHandler) CloseOrder(c echo.Context) error {
	if err := h.Manager.CloseOrder(c.Request().Context(), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteOrder handles DELETE /v1/admin/orders/:id.
func (h *OrderAdminHandler) DeleteOrder(c echo.Context) error {
	if err := h.Manager.DeleteOrder(c.Request().Context(), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Cleanup handles POST /v1/admin/orders/cleanup?older_than=720h.
func (h *OrderAdminHandler) Cleanup(c echo.Context) error {
	olderThan := h.Retention
	if raw := c.QueryParam("older_than"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return badRequest(c, "older_than must be a positive duration such as 720h")
		}
		olderThan = d
	}
	orders, items, err := h.Manager.CleanupPaid(c.Request().Context(), olderThan)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted_orders": orders, "deleted_items": items})
}

// DashboardStats handles GET /v1/admin/stats.
func (h *OrderAdminHandler) DashboardStats(c echo.Context) error {
	st, err := h.Stats.Dashboard(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// ReleaseTable handles POST /v1/admin/tables/:id/release.  It frees a table
// without touching its order, for sessions abandoned without payment.
func (h *OrderAdminHandler) ReleaseTable(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	if err := h.Coord.Release(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
