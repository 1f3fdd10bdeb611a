package memstore

import (
	"context"
	"sort"

	"github.com/iliyamo/table-ordering/internal/model"
)

// The read side mirrors the MySQL repositories so the HTTP handlers can run
// against either store.

func (s *Store) ListTables(_ context.Context) ([]model.Table, error) {
	var out []model.Table
	s.read(func(st *state) {
		for _, t := range st.tables {
			out = append(out, t)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListFreeTables(ctx context.Context) ([]model.Table, error) {
	all, _ := s.ListTables(ctx)
	out := all[:0]
	for _, t := range all {
		if t.Free() {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) GetTable(_ context.Context, id uint64) (model.Table, error) {
	var (
		t  model.Table
		ok bool
	)
	s.read(func(st *state) { t, ok = st.tables[id] })
	if !ok {
		return model.Table{}, model.ErrNotFound
	}
	return t, nil
}

// Menu lists categories by priority with their available products.
func (s *Store) Menu(_ context.Context) ([]model.CategoryWithProducts, error) {
	var out []model.CategoryWithProducts
	s.read(func(st *state) {
		for _, c := range st.categories {
			cp := model.CategoryWithProducts{Category: c, Products: []model.Product{}}
			for _, p := range st.products {
				if p.CategoryID == c.ID && p.Available {
					cp.Products = append(cp.Products, p)
				}
			}
			sort.Slice(cp.Products, func(i, j int) bool { return cp.Products[i].ID < cp.Products[j].ID })
			out = append(out, cp)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) OrderDetail(_ context.Context, orderID string) (model.OrderDetail, error) {
	var (
		d  model.OrderDetail
		ok bool
	)
	s.read(func(st *state) {
		var o model.Order
		o, ok = st.orders[orderID]
		if ok {
			d = st.detail(o)
		}
	})
	if !ok {
		return model.OrderDetail{}, model.ErrNotFound
	}
	return d, nil
}

// ListOrders returns orders newest first, filtered by status unless it is
// empty.
func (s *Store) ListOrders(_ context.Context, status model.OrderStatus) ([]model.OrderDetail, error) {
	var out []model.OrderDetail
	s.read(func(st *state) {
		for _, o := range st.orders {
			if status != "" && o.Status != status {
				continue
			}
			out = append(out, st.detail(o))
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) Settings(_ context.Context) ([]model.Setting, error) {
	var out []model.Setting
	s.read(func(st *state) {
		for _, v := range st.settings {
			out = append(out, v)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (st *state) detail(o model.Order) model.OrderDetail {
	d := model.OrderDetail{Order: o, Items: []model.OrderItemDetail{}}
	if t, ok := st.tables[o.TableID]; ok {
		d.TableLabel = t.Label
	}
	for _, it := range st.orderItems(o.ID) {
		d.Items = append(d.Items, model.OrderItemDetail{OrderItem: it, ProductName: st.products[it.ProductID].Name})
	}
	return d
}

// Dashboard mirrors repository.StatsRepo.Dashboard.
func (s *Store) Dashboard(_ context.Context) (model.DashboardStats, error) {
	var d model.DashboardStats
	s.read(func(st *state) {
		d.TotalTables = len(st.tables)
		for _, t := range st.tables {
			if t.Occupied {
				d.ActiveTables++
			}
		}
		d.Products = len(st.products)
		for _, o := range st.orders {
			switch o.Status {
			case model.OrderServing:
				d.ActiveOrders++
			case model.OrderPaid:
				d.PaidRevenue += o.Total
			}
		}
	})
	return d, nil
}
