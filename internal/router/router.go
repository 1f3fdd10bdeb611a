// Package router wires the HTTP handlers onto echo route groups with the
// middleware each audience needs: anonymous customer devices, signed-in
// staff (ADMIN or KITCHEN) and admins.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-ordering/internal/handler"
	"github.com/iliyamo/table-ordering/internal/middleware"
	"github.com/iliyamo/table-ordering/internal/model"
)

// RegisterRoutes registers the probes.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
}

// RegisterAuth registers login, token rotation and logout under /v1/auth,
// plus /v1/me for any signed-in staff member.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	// logout accepts either a refresh token in the body or a bearer token
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleKitchen))
}

// Customer groups the middleware applied to customer routes.
type Customer struct {
	MenuCache echo.MiddlewareFunc // response cache for the menu
	Limiter   echo.MiddlewareFunc // rate limit on customer writes
}

// RegisterCustomer registers the unauthenticated routes a table's QR code
// leads to.  Writes are rate limited per device.
func RegisterCustomer(e *echo.Echo, h *handler.CustomerHandler, s *handler.StreamHandler, mw Customer) {
	mw.MenuCache = orPass(mw.MenuCache)
	mw.Limiter = orPass(mw.Limiter)
	g := e.Group("/v1", middleware.Actor())
	g.GET("/menu", h.GetMenu, mw.MenuCache)
	g.GET("/settings", h.GetSettings)
	g.GET("/tables/free", h.ListFreeTables)
	g.GET("/tables/:id", h.GetTable)
	g.POST("/tables/:id/checkin", h.CheckIn, mw.Limiter)
	g.POST("/tables/:id/call-staff", h.CallStaff, mw.Limiter)
	g.GET("/orders/:id", h.GetOrder)
	g.POST("/orders/:id/items", h.AddItems, mw.Limiter)
	g.GET("/orders/:id/ws", s.Order)
}

func orPass(m echo.MiddlewareFunc) echo.MiddlewareFunc {
	if m == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return m
}

// RegisterStaff registers what kitchen displays and the admin dashboard
// share: the order board, prep status and the event stream.
func RegisterStaff(e *echo.Echo, h *handler.OrderAdminHandler, s *handler.StreamHandler, jwtSecret string) {
	g := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleKitchen),
		middleware.Actor(),
	)
	g.GET("/admin/orders", h.ListOrders)
	g.GET("/admin/orders/:id", h.GetOrder)
	g.PATCH("/admin/items/:id", h.SetItemStatus)
	g.GET("/ws", s.Staff)
}

// RegisterAdmin registers the ADMIN-only routes.
func RegisterAdmin(e *echo.Echo, orders *handler.OrderAdminHandler, catalog *handler.CatalogHandler,
	auth *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
		middleware.Actor(),
	)

	g.POST("/orders", orders.OpenOrder)
	g.POST("/orders/cleanup", orders.Cleanup)
	g.POST("/orders/:id/items", orders.AddItems)
	g.DELETE("/orders/:id/items/:itemId", orders.RemoveItem)
	g.POST("/orders/:id/close", orders.CloseOrder)
	g.DELETE("/orders/:id", orders.DeleteOrder)
	g.GET("/stats", orders.DashboardStats)

	g.GET("/tables", catalog.ListTables)
	g.POST("/tables", catalog.CreateTable)
	g.PUT("/tables/:id", catalog.RenameTable)
	g.DELETE("/tables/:id", catalog.DeleteTable)
	g.POST("/tables/:id/release", orders.ReleaseTable)

	g.GET("/categories", catalog.ListCategories)
	g.POST("/categories", catalog.CreateCategory)
	g.PUT("/categories/:id", catalog.UpdateCategory)
	g.DELETE("/categories/:id", catalog.DeleteCategory)

	g.GET("/products", catalog.ListProducts)
	g.POST("/products", catalog.CreateProduct)
	g.GET("/products/:id", catalog.GetProduct)
	g.PUT("/products/:id", catalog.UpdateProduct)
	g.DELETE("/products/:id", catalog.DeleteProduct)

	g.PUT("/settings", catalog.PutSettings)
	g.POST("/staff", auth.CreateStaff)
}
