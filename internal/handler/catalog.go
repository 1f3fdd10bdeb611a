package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-ordering/internal/model"
	"github.com/iliyamo/table-ordering/internal/repository"
)

// CatalogHandler bundles the admin CRUD endpoints for tables, the menu
// catalog and settings.
type CatalogHandler struct {
	Tables   *repository.TableRepo
	Catalog  *repository.CatalogRepo
	Settings *repository.SettingsRepo

	// PurgeMenu drops cached menu responses after a catalog write.
	PurgeMenu func(ctx context.Context) error
}

// NewCatalogHandler panics if a repository is nil.  purge may be nil when
// responses are not cached.
func NewCatalogHandler(tables *repository.TableRepo, catalog *repository.CatalogRepo,
	settings *repository.SettingsRepo, purge func(ctx context.Context) error) *CatalogHandler {
	if tables == nil || catalog == nil || settings == nil {
		panic("nil repository passed to NewCatalogHandler")
	}
	if purge == nil {
		purge = func(context.Context) error { return nil }
	}
	return &CatalogHandler{Tables: tables, Catalog: catalog, Settings: settings, PurgeMenu: purge}
}

const (
	maxLabelRunes = 50
	maxNameRunes  = 100
)

type tableReq struct {
	Label string `json:"label"`
}

type categoryReq struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
}

type productReq struct {
	CategoryID uint64      `json:"category_id"`
	Name       string      `json:"name"`
	Price      model.Money `json:"price"`
	ImageRef   string      `json:"image_ref"`
	Available  *bool       `json:"available"`
}

func (r productReq) validate() error {
	switch {
	case r.CategoryID == 0:
		return model.Invalid("category_id", "is required")
	case strings.TrimSpace(r.Name) == "":
		return model.Invalid("name", "is required")
	case utf8.RuneCountInString(strings.TrimSpace(r.Name)) > maxNameRunes:
		return model.Invalid("name", "must be at most 100 characters")
	case r.Price < 0:
		return model.Invalid("price", "must not be negative")
	case r.Price > model.MaxTotal:
		return model.Invalid("price", "is too large")
	}
	return nil
}

func (r productReq) product(id uint64) model.Product {
	available := true
	if r.Available != nil {
		available = *r.Available
	}
	return model.Product{
		ID:         id,
		CategoryID: r.CategoryID,
		Name:       r.Name,
		Price:      r.Price,
		ImageRef:   strings.TrimSpace(r.ImageRef),
		Available:  available,
	}
}

func requireText(field, v string, max int) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return model.Invalid(field, "is required")
	}
	if utf8.RuneCountInString(v) > max {
		return model.Invalid(field, "must be at most "+strconv.Itoa(max)+" characters")
	}
	return nil
}

// purge is best effort: a stale menu expires with the cache TTL anyway.
func (h *CatalogHandler) purge(c echo.Context) {
	if err := h.PurgeMenu(c.Request().Context()); err != nil {
		c.Logger().Warnf("menu cache purge failed: %v", err)
	}
}

// ----- tables -----

// ListTables handles GET /v1/admin/tables.
func (h *CatalogHandler) ListTables(c echo.Context) error {
	tables, err := h.Tables.ListTables(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"tables": tables})
}

// CreateTable handles POST /v1/admin/tables.
func (h *CatalogHandler) CreateTable(c echo.Context) error {
	var req tableReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := requireText("label", req.Label, maxLabelRunes); err != nil {
		return writeError(c, err)
	}
	t, err := h.Tables.CreateTable(c.Request().Context(), req.Label)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// RenameTable handles PUT /v1/admin/tables/:id.
func (h *CatalogHandler) RenameTable(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req tableReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := requireText("label", req.Label, maxLabelRunes); err != nil {
		return writeError(c, err)
	}
	t, err := h.Tables.RenameTable(c.Request().Context(), id, req.Label)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// DeleteTable handles DELETE /v1/admin/tables/:id.  Occupied tables answer
// 409.
func (h *CatalogHandler) DeleteTable(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	if err := h.Tables.DeleteTable(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ----- categories -----

func (h *CatalogHandler) ListCategories(c echo.Context) error {
	cats, err := h.Catalog.ListCategories(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"categories": cats})
}

func (h *CatalogHandler) CreateCategory(c echo.Context) error {
	var req categoryReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := requireText("name", req.Name, maxNameRunes); err != nil {
		return writeError(c, err)
	}
	cat, err := h.Catalog.CreateCategory(c.Request().Context(), req.Name, req.Priority)
	if err != nil {
		return writeError(c, err)
	}
	h.purge(c)
	return c.JSON(http.StatusCreated, cat)
}

func (h *CatalogHandler) UpdateCategory(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req categoryReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := requireText("name", req.Name, maxNameRunes); err != nil {
		return writeError(c, err)
	}
	cat, err := h.Catalog.UpdateCategory(c.Request().Context(), id, req.Name, req.Priority)
	if err != nil {
		return writeError(c, err)
	}
	h.purge(c)
	return c.JSON(http.StatusOK, cat)
}

// DeleteCategory handles DELETE /v1/admin/categories/:id.  Categories that
// still hold products answer 409.
func (h *CatalogHandler) DeleteCategory(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	if err := h.Catalog.DeleteCategory(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	h.purge(c)
	return c.NoContent(http.StatusNoContent)
}

// ----- products -----

// ListProducts handles GET /v1/admin/products?category_id=.
func (h *CatalogHandler) ListProducts(c echo.Context) error {
	var categoryID uint64
	if raw := c.QueryParam("category_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return badRequest(c, "invalid category_id")
		}
		categoryID = id
	}
	products, err := h.Catalog.ListProducts(c.Request().Context(), categoryID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"products": products})
}

func (h *CatalogHandler) GetProduct(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	p, err := h.Catalog.GetProduct(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *CatalogHandler) CreateProduct(c echo.Context) error {
	var req productReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := req.validate(); err != nil {
		return writeError(c, err)
	}
	p, err := h.Catalog.CreateProduct(c.Request().Context(), req.product(0))
	if err != nil {
		return writeError(c, err)
	}
	h.purge(c)
	return c.JSON(http.StatusCreated, p)
}

// UpdateProduct handles PUT /v1/admin/products/:id.  Orders already placed
// keep the price they were taken at.
func (h *CatalogHandler) UpdateProduct(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req productReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := req.validate(); err != nil {
		return writeError(c, err)
	}
	p, err := h.Catalog.UpdateProduct(c.Request().Context(), req.product(id))
	if err != nil {
		return writeError(c, err)
	}
	h.purge(c)
	return c.JSON(http.StatusOK, p)
}

func (h *CatalogHandler) DeleteProduct(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	if err := h.Catalog.DeleteProduct(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	h.purge(c)
	return c.NoContent(http.StatusNoContent)
}

// ----- settings -----

// PutSettings handles PUT /v1/admin/settings with a flat JSON object of
// string values.
func (h *CatalogHandler) PutSettings(c echo.Context) error {
	var values map[string]string
	if err := c.Bind(&values); err != nil {
		return badRequest(c, "body must be an object of string values")
	}
	if len(values) == 0 {
		return badRequest(c, "no settings given")
	}
	for k := range values {
		if err := requireText("key", k, maxNameRunes); err != nil {
			return writeError(c, err)
		}
	}
	if err := h.Settings.UpsertSettings(c.Request().Context(), values); err != nil {
		return writeError(c, err)
	}
	settings, err := h.Settings.Settings(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"settings": settings})
}
