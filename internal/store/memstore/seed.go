package memstore

import "github.com/iliyamo/table-ordering/internal/model"

// Seeding helpers used by tests and fixtures.  Each waits for any running
// transaction and then changes the committed state directly.

func (s *Store) AddTable(label string) model.Table {
	var t model.Table
	s.write(func(st *state) {
		st.nextTable++
		now := s.now().UTC()
		t = model.Table{ID: st.nextTable, Label: label, CreatedAt: now, UpdatedAt: now}
		st.tables[t.ID] = t
	})
	return t
}

func (s *Store) AddCategory(name string, priority int) model.Category {
	var c model.Category
	s.write(func(st *state) {
		st.nextCategory++
		c = model.Category{ID: st.nextCategory, Name: name, Priority: priority, CreatedAt: s.now().UTC()}
		st.categories[c.ID] = c
	})
	return c
}

func (s *Store) AddProduct(categoryID uint64, name string, price model.Money, available bool) model.Product {
	var p model.Product
	s.write(func(st *state) {
		st.nextProduct++
		now := s.now().UTC()
		p = model.Product{
			ID:         st.nextProduct,
			CategoryID: categoryID,
			Name:       name,
			Price:      price,
			Available:  available,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		st.products[p.ID] = p
	})
	return p
}

func (s *Store) SetProductPrice(id uint64, price model.Money) {
	s.write(func(st *state) {
		if p, ok := st.products[id]; ok {
			p.Price = price
			st.products[id] = p
		}
	})
}

func (s *Store) SetProductAvailable(id uint64, available bool) {
	s.write(func(st *state) {
		if p, ok := st.products[id]; ok {
			p.Available = available
			st.products[id] = p
		}
	})
}

func (s *Store) PutSetting(key, value string) {
	s.write(func(st *state) {
		st.settings[key] = model.Setting{Key: key, Value: value, UpdatedAt: s.now().UTC()}
	})
}

// Items returns the stored items of an order.
func (s *Store) Items(orderID string) []model.OrderItem {
	var out []model.OrderItem
	s.read(func(st *state) { out = st.orderItems(orderID) })
	return out
}

// Order returns the stored order.
func (s *Store) Order(orderID string) (model.Order, bool) {
	var (
		o  model.Order
		ok bool
	)
	s.read(func(st *state) { o, ok = st.orders[orderID] })
	return o, ok
}
