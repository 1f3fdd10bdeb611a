package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-ordering/internal/model"
	"github.com/iliyamo/table-ordering/internal/notify"
	"github.com/iliyamo/table-ordering/internal/service"
)

// CustomerHandler serves the pages a customer reaches from a table's QR
// code: menu, check-in, ordering and the order view.
type CustomerHandler struct {
	Tables   TableReader
	Menus    MenuReader
	Orders   OrderReader
	Settings SettingsReader
	Coord    *service.TableCoordinator
	Manager  *service.OrderManager
	Calls    StaffCaller
}

// NewCustomerHandler panics if any dependency is nil.
func NewCustomerHandler(tables TableReader, menus MenuReader, orders OrderReader, settings SettingsReader,
	coord *service.TableCoordinator, manager *service.OrderManager, calls StaffCaller) *CustomerHandler {
	if tables == nil || menus == nil || orders == nil || settings == nil || coord == nil || manager == nil || calls == nil {
		panic("nil dependency passed to NewCustomerHandler")
	}
	return &CustomerHandler{
		Tables:   tables,
		Menus:    menus,
		Orders:   orders,
		Settings: settings,
		Coord:    coord,
		Manager:  manager,
		Calls:    calls,
	}
}

type checkInReq struct {
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
}

type lineReq struct {
	ProductID uint64 `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Note      string `json:"note"`
}

type itemsReq struct {
	Items []lineReq `json:"items"`
}

func (r itemsReq) lines() []service.Line {
	out := make([]service.Line, len(r.Items))
	for i, it := range r.Items {
		out[i] = service.Line{ProductID: it.ProductID, Quantity: it.Quantity, Note: it.Note}
	}
	return out
}

// tableView is a table together with the order currently served on it.
type tableView struct {
	Table model.Table        `json:"table"`
	Order *model.OrderDetail `json:"order,omitempty"`
}

// GetMenu handles GET /v1/menu.
func (h *CustomerHandler) GetMenu(c echo.Context) error {
	menu, err := h.Menus.Menu(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"categories": menu})
}

// GetSettings handles GET /v1/settings.
func (h *CustomerHandler) GetSettings(c echo.Context) error {
	settings, err := h.Settings.Settings(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	out := make(map[string]string, len(settings))
	for _, s := range settings {
		out[s.Key] = s.Value
	}
	return c.JSON(http.StatusOK, out)
}

// ListFreeTables handles GET /v1/tables/free.
func (h *CustomerHandler) ListFreeTables(c echo.Context) error {
	tables, err := h.Tables.ListFreeTables(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"tables": tables})
}

// GetTable handles GET /v1/tables/:id.  The active order is included so a
// device that scans an occupied table lands on the running order.
func (h *CustomerHandler) GetTable(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx := c.Request().Context()
	t, err := h.Tables.GetTable(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	view := tableView{Table: t}
	if t.ActiveOrderID != nil {
		d, err := h.Orders.OrderDetail(ctx, *t.ActiveOrderID)
		switch {
		case err == nil:
			view.Order = &d
		case !isNotFound(err):
			return writeError(c, err)
		}
	}
	return c.JSON(http.StatusOK, view)
}

// CheckIn handles POST /v1/tables/:id/checkin.
func (h *CustomerHandler) CheckIn(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req checkInReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	orderID, err := h.Coord.CheckIn(c.Request().Context(), id, service.Customer{
		Name:  req.CustomerName,
		Phone: req.CustomerPhone,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"order_id": orderID, "table_id": id})
}

// AddItems handles POST /v1/orders/:id/items.
func (h *CustomerHandler) AddItems(c echo.Context) error {
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

// GetOrder handles GET /v1/orders/:id.
func (h *CustomerHandler) GetOrder(c echo.Context) error {
	d, err := h.Orders.OrderDetail(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// CallStaff handles POST /v1/tables/:id/call-staff.  The call is a
// fire-and-forget signal; a broker hiccup is logged but still answers 202
// because local dashboards were notified.
func (h *CustomerHandler) CallStaff(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx := c.Request().Context()
	t, err := h.Tables.GetTable(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	call := notify.StaffCall{TableLabel: t.Label}
	if t.ActiveOrderID != nil {
		if d, err := h.Orders.OrderDetail(ctx, *t.ActiveOrderID); err == nil {
			if d.CustomerName != nil {
				call.CustomerName = *d.CustomerName
			}
			if d.CustomerPhone != nil {
				call.CustomerPhone = *d.CustomerPhone
			}
		}
	}
	if err := h.Calls.Call(ctx, id, call); err != nil {
		c.Logger().Warnf("staff call for table %d: %v", id, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"status": "staff notified"})
}
