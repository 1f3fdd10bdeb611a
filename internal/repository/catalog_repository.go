package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/table-ordering/internal/model"
)

// CatalogRepo manages menu categories and products.
type CatalogRepo struct{ DB *sql.DB }

func NewCatalogRepo(db *sql.DB) *CatalogRepo { return &CatalogRepo{DB: db} }

// Menu returns categories by priority, each with its available products.
// Categories without available products are still listed so the layout
// stays stable while items sell out.
func (r *CatalogRepo) Menu(ctx context.Context) ([]model.CategoryWithProducts, error) {
	cats, err := r.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	products, err := r.listProducts(ctx, "WHERE p.is_available = 1")
	if err != nil {
		return nil, err
	}
	byCat := make(map[uint64][]model.Product, len(cats))
	for _, p := range products {
		byCat[p.CategoryID] = append(byCat[p.CategoryID], p)
	}
	out := make([]model.CategoryWithProducts, 0, len(cats))
	for _, c := range cats {
		ps := byCat[c.ID]
		if ps == nil {
			ps = []model.Product{}
		}
		out = append(out, model.CategoryWithProducts{Category: c, Products: ps})
	}
	return out, nil
}

func (r *CatalogRepo) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, name, priority, created_at FROM categories ORDER BY priority, id")
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	out := []model.Category{}
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Priority, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, classify(rows.Err())
}

func (r *CatalogRepo) GetCategory(ctx context.Context, id uint64) (model.Category, error) {
	var c model.Category
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, name, priority, created_at FROM categories WHERE id = ?", id).
		Scan(&c.ID, &c.Name, &c.Priority, &c.CreatedAt)
	if err != nil {
		return model.Category{}, classify(err)
	}
	return c, nil
}

func (r *CatalogRepo) CreateCategory(ctx context.Context, name string, priority int) (model.Category, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO categories (name, priority) VALUES (?, ?)", strings.TrimSpace(name), priority)
	if err != nil {
		return model.Category{}, classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Category{}, err
	}
	return r.GetCategory(ctx, uint64(id))
}

func (r *CatalogRepo) UpdateCategory(ctx context.Context, id uint64, name string, priority int) (model.Category, error) {
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE categories SET name = ?, priority = ? WHERE id = ?", strings.TrimSpace(name), priority, id); err != nil {
		return model.Category{}, classify(err)
	}
	return r.GetCategory(ctx, id)
}

// DeleteCategory fails with ErrConflict while products still reference it.
func (r *CatalogRepo) DeleteCategory(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id)
	if err != nil {
		return classify(err)
	}
	return expectOne(res, "category", id)
}

func (r *CatalogRepo) listProducts(ctx context.Context, where string, args ...any) ([]model.Product, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products p "+where+" ORDER BY p.category_id, p.id", args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	out := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, classify(rows.Err())
}

// ListProducts returns every product, or only those of categoryID when it
// is non-zero.
func (r *CatalogRepo) ListProducts(ctx context.Context, categoryID uint64) ([]model.Product, error) {
	if categoryID != 0 {
		return r.listProducts(ctx, "WHERE p.category_id = ?", categoryID)
	}
	return r.listProducts(ctx, "")
}

func (r *CatalogRepo) GetProduct(ctx context.Context, id uint64) (model.Product, error) {
	p, err := scanProduct(r.DB.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products p WHERE p.id = ?", id))
	if err != nil {
		return model.Product{}, classify(err)
	}
	return p, nil
}

// CreateProduct inserts p and returns the stored row.  A missing category
// surfaces as model.ErrNotFound.
func (r *CatalogRepo) CreateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO products (category_id, name, price, image_ref, is_available)
		 VALUES (?, ?, ?, ?, ?)`,
		p.CategoryID, strings.TrimSpace(p.Name), p.Price, p.ImageRef, p.Available)
	if err != nil {
		return model.Product{}, classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Product{}, err
	}
	return r.GetProduct(ctx, uint64(id))
}

// UpdateProduct overwrites every editable column.  Existing order items
// keep their price snapshots.
func (r *CatalogRepo) UpdateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	if _, err := r.DB.ExecContext(ctx,
		`UPDATE products SET category_id = ?, name = ?, price = ?, image_ref = ?, is_available = ?
		 WHERE id = ?`,
		p.CategoryID, strings.TrimSpace(p.Name), p.Price, p.ImageRef, p.Available, p.ID); err != nil {
		return model.Product{}, classify(err)
	}
	return r.GetProduct(ctx, p.ID)
}

// DeleteProduct fails with ErrConflict once the product appears on an
// order; mark it unavailable instead.
func (r *CatalogRepo) DeleteProduct(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
	if err != nil {
		return classify(err)
	}
	return expectOne(res, "product", id)
}

func expectOne(res sql.Result, what string, id uint64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, model.ErrNotFound)
	}
	return nil
}
