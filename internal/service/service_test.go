package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/table-ordering/internal/model"
	"github.com/iliyamo/table-ordering/internal/notify"
	"github.com/iliyamo/table-ordering/internal/service"
	"github.com/iliyamo/table-ordering/internal/store/memstore"
)

var fastBackoff = service.WithBackoff(service.Backoff{Min: time.Millisecond, Max: 2 * time.Millisecond})

type fixture struct {
	store  *memstore.Store
	hub    *notify.Hub
	tables *service.TableCoordinator
	orders *service.OrderManager

	table model.Table
	a, b  model.Product
}

func newFixture(t *testing.T, opts ...service.Option) *fixture {
	t.Helper()
	st := memstore.New(time.Second)
	hub := notify.NewHub("test")
	t.Cleanup(hub.Close)
	opts = append([]service.Option{fastBackoff}, opts...)
	tables := service.NewTableCoordinator(st, hub, opts...)
	f := &fixture{
		store:  st,
		hub:    hub,
		tables: tables,
		orders: service.NewOrderManager(st, tables, hub, opts...),
		table:  st.AddTable("T1"),
	}
	cat := st.AddCategory("Mains", 1)
	f.a = st.AddProduct(cat.ID, "A", 50000, true)
	f.b = st.AddProduct(cat.ID, "B", 30000, true)
	return f
}

func (f *fixture) checkIn(t *testing.T) string {
	t.Helper()
	id, err := f.tables.CheckIn(context.Background(), f.table.ID, service.Customer{Name: "An", Phone: "0901 234 567"})
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	return id
}

func (f *fixture) assertTotalMatchesItems(t *testing.T, orderID string) model.Order {
	t.Helper()
	o, ok := f.store.Order(orderID)
	if !ok {
		t.Fatalf("order %s missing", orderID)
	}
	if sum := model.SumItems(f.store.Items(orderID)); o.Total != sum {
		t.Fatalf("total %d != sum of items %d", o.Total, sum)
	}
	return o
}

func TestOrderLifecycleScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o1 := f.checkIn(t)
	tb, _ := f.store.GetTable(ctx, f.table.ID)
	if !tb.Occupied || tb.ActiveOrderID == nil || *tb.ActiveOrderID != o1 {
		t.Fatalf("table not bound to %s: %+v", o1, tb)
	}

	rc, err := f.orders.AddItems(ctx, o1, []service.Line{
		{ProductID: f.a.ID, Quantity: 2},
		{ProductID: f.b.ID, Quantity: 1, Note: "no ice"},
	})
	if err != nil {
		t.Fatalf("AddItems: %v", err)
	}
	if rc.Total != 130000 || len(rc.ItemIDs) != 2 {
		t.Fatalf("receipt = %+v", rc)
	}
	f.assertTotalMatchesItems(t, o1)

	if err := f.orders.RemoveItem(ctx, o1, rc.ItemIDs[1]); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if o := f.assertTotalMatchesItems(t, o1); o.Total != 100000 {
		t.Fatalf("total after remove = %d", o.Total)
	}

	if err := f.orders.CloseOrder(ctx, o1); err != nil {
		t.Fatalf("CloseOrder: %v", err)
	}
	o, _ := f.store.Order(o1)
	if o.Status != model.OrderPaid {
		t.Fatalf("status = %s", o.Status)
	}
	tb, _ = f.store.GetTable(ctx, f.table.ID)
	if !tb.Free() {
		t.Fatalf("table not released: %+v", tb)
	}

	o2 := f.checkIn(t)
	if o2 == o1 {
		t.Fatal("second check-in reused the closed order id")
	}
}

func TestConcurrentCheckInExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	const n = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     []string
		occupied int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := f.tables.CheckIn(context.Background(), f.table.ID, service.Customer{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins = append(wins, id)
			case errors.Is(err, model.ErrAlreadyOccupied):
				occupied++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if len(wins) != 1 || occupied != n-1 {
		t.Fatalf("wins=%d occupied=%d", len(wins), occupied)
	}
	tb, _ := f.store.GetTable(context.Background(), f.table.ID)
	if *tb.ActiveOrderID != wins[0] {
		t.Fatalf("table bound to %s, winner %s", *tb.ActiveOrderID, wins[0])
	}
}

func TestCheckInErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.tables.CheckIn(ctx, 999, service.Customer{}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("missing table: %v", err)
	}
	f.checkIn(t)
	if _, err := f.tables.CheckIn(ctx, f.table.ID, service.Customer{}); !errors.Is(err, model.ErrAlreadyOccupied) {
		t.Fatalf("occupied table: %v", err)
	}

	tests := []struct {
		name string
		cust service.Customer
	}{
		{"phone letters", service.Customer{Phone: "call me"}},
		{"phone too long", service.Customer{Phone: strings.Repeat("1", 33)}},
		{"name too long", service.Customer{Name: strings.Repeat("é", 101)}},
	}
	other := f.store.AddTable("T2")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.tables.CheckIn(ctx, other.ID, tt.cust)
			if !errors.Is(err, model.ErrValidation) {
				t.Fatalf("err = %v, want validation", err)
			}
		})
	}
	tb, _ := f.store.GetTable(ctx, other.ID)
	if !tb.Free() {
		t.Fatal("rejected check-in occupied the table")
	}
}

func TestCheckInTrimsCustomer(t *testing.T) {
	f := newFixture(t)
	id, err := f.tables.CheckIn(context.Background(), f.table.ID, service.Customer{Name: "  Binh ", Phone: "  "})
	if err != nil {
		t.Fatal(err)
	}
	o, _ := f.store.Order(id)
	if o.CustomerName == nil || *o.CustomerName != "Binh" || o.CustomerPhone != nil {
		t.Fatalf("customer = %v / %v", o.CustomerName, o.CustomerPhone)
	}
	if o.Version != 1 || o.Status != model.OrderServing || o.Total != 0 {
		t.Fatalf("new order = %+v", o)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.checkIn(t)

	for i := 0; i < 2; i++ {
		if err := f.tables.Release(ctx, f.table.ID); err != nil {
			t.Fatalf("release #%d: %v", i+1, err)
		}
		tb, _ := f.store.GetTable(ctx, f.table.ID)
		if !tb.Free() {
			t.Fatalf("release #%d left table occupied", i+1)
		}
	}
	if err := f.tables.Release(ctx, 999); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("missing table: %v", err)
	}
}

func TestPriceSnapshotIgnoresLaterPriceChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.checkIn(t)

	if _, err := f.orders.AddItems(ctx, id, []service.Line{{ProductID: f.a.ID, Quantity: 1}}); err != nil {
		t.Fatal(err)
	}
	f.store.SetProductPrice(f.a.ID, 70000)
	rc, err := f.orders.AddItems(ctx, id, []service.Line{{ProductID: f.a.ID, Quantity: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if rc.Total != 120000 {
		t.Fatalf("total = %d, want 120000", rc.Total)
	}
	items := f.store.Items(id)
	if items[0].PriceSnapshot != 50000 || items[1].PriceSnapshot != 70000 {
		t.Fatalf("snapshots = %d, %d", items[0].PriceSnapshot, items[1].PriceSnapshot)
	}
	f.assertTotalMatchesItems(t, id)
}

func TestAddItemsRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.checkIn(t)
	gone := f.store.AddProduct(1, "Seasonal", 20000, false)

	tests := []struct {
		name  string
		lines []service.Line
		want  error
	}{
		{"no lines", nil, model.ErrValidation},
		{"zero quantity", []service.Line{{ProductID: f.a.ID, Quantity: 0}}, model.ErrValidation},
		{"negative quantity", []service.Line{{ProductID: f.a.ID, Quantity: -1}}, model.ErrValidation},
		{"quantity over cap", []service.Line{{ProductID: f.a.ID, Quantity: 10001}}, model.ErrValidation},
		{"huge quantity", []service.Line{{ProductID: f.a.ID, Quantity: 1 << 60}}, model.ErrValidation},
		{"too many lines", manyLines(f.a.ID, 101), model.ErrValidation},
		{"missing product id", []service.Line{{Quantity: 1}}, model.ErrValidation},
		{"long note", []service.Line{{ProductID: f.a.ID, Quantity: 1, Note: strings.Repeat("x", 501)}}, model.ErrValidation},
		{"unknown product", []service.Line{{ProductID: 4242, Quantity: 1}}, model.ErrNotFound},
		{"unavailable product", []service.Line{{ProductID: gone.ID, Quantity: 1}}, model.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orders.AddItems(ctx, id, tt.lines)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
	// a batch with one bad line inserts nothing
	_, err := f.orders.AddItems(ctx, id, []service.Line{{ProductID: f.a.ID, Quantity: 1}, {ProductID: 4242, Quantity: 1}})
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("mixed batch: %v", err)
	}
	if n := len(f.store.Items(id)); n != 0 {
		t.Fatalf("items after rejected batches = %d", n)
	}
	if _, err := f.orders.AddItems(ctx, "nope", []service.Line{{ProductID: f.a.ID, Quantity: 1}}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("unknown order: %v", err)
	}
}

func manyLines(productID uint64, n int) []service.Line {
	lines := make([]service.Line, n)
	for i := range lines {
		lines[i] = service.Line{ProductID: productID, Quantity: 1}
	}
	return lines
}

func TestAddItemsRejectsTotalsPastMaximum(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.checkIn(t)
	pricey := f.store.AddProduct(1, "Caviar", model.MaxTotal/2, true)

	if _, err := f.orders.AddItems(ctx, id, []service.Line{{ProductID: pricey.ID, Quantity: 3}}); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("line past maximum: %v", err)
	}
	if _, err := f.orders.AddItems(ctx, id, []service.Line{{ProductID: pricey.ID, Quantity: 2}}); err != nil {
		t.Fatalf("line at maximum: %v", err)
	}
	var verr *model.ValidationError
	_, err := f.orders.AddItems(ctx, id, []service.Line{{ProductID: f.a.ID, Quantity: 1}})
	if !errors.As(err, &verr) || verr.Field != "items" {
		t.Fatalf("order past maximum: %v", err)
	}
	o := f.assertTotalMatchesItems(t, id)
	if o.Total != model.MaxTotal/2*2 {
		t.Fatalf("total = %d", o.Total)
	}
}

func TestPaidOrderIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.checkIn(t)
	rc, err := f.orders.AddItems(ctx, id, []service.Line{{ProductID: f.a.ID, Quantity: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.orders.CloseOrder(ctx, id); err != nil {
		t.Fatal(err)
	}

	if _, err := f.orders.AddItems(ctx, id, []service.Line{{ProductID: f.b.ID, Quantity: 1}}); !errors.Is(err, model.ErrOrderClosed) {
		t.Errorf("AddItems on paid: %v", err)
	}
	if err := f.orders.RemoveItem(ctx, id, rc.ItemIDs[0]); !errors.Is(err, model.ErrOrderClosed) {
		t.Errorf("RemoveItem on paid: %v", err)
	}
	if err := f.orders.SetItemPrepStatus(ctx, rc.ItemIDs[0], model.PrepDone); !errors.Is(err, model.ErrOrderClosed) {
		t.Errorf("SetItemPrepStatus on paid: %v", err)
	}
	if err := f.orders.CloseOrder(ctx, id); !errors.Is(err, model.ErrOrderClosed) {
		t.Errorf("second CloseOrder: %v", err)
	}

	if err := f.orders.DeleteOrder(ctx, id); err != nil {
		t.Fatalf("DeleteOrder on paid: %v", err)
	}
	if _, ok := f.store.Order(id); ok {
		t.Fatal("order still stored after delete")
	}
	if n := len(f.store.Items(id)); n != 0 {
		t.Fatalf("items left after delete: %d", n)
	}
	if err := f.orders.DeleteOrder(ctx, id); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("delete twice: %v", err)
	}
}

func TestDeleteServingOrderReleasesTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.checkIn(t)
	if err := f.orders.DeleteOrder(ctx, id); err != nil {
		t.Fatal(err)
	}
	tb, _ := f.store.GetTable(ctx, f.table.ID)
	if !tb.Free() {
		t.Fatalf("table still bound: %+v", tb)
	}
}

func TestDeleteOldOrderKeepsNewBinding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old := f.checkIn(t)
	if err := f.orders.CloseOrder(ctx, old); err != nil {
		t.Fatal(err)
	}
	current := f.checkIn(t)

	if err := f.orders.DeleteOrder(ctx, old); err != nil {
		t.Fatal(err)
	}
	tb, _ := f.store.GetTable(ctx, f.table.ID)
	if tb.ActiveOrderID == nil || *tb.ActiveOrderID != current {
		t.Fatalf("deleting an old order freed the table: %+v", tb)
	}
}

func TestRemoveItemNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o1 := f.checkIn(t)
	other := f.store.AddTable("T2")
	o2, err := f.tables.CheckIn(ctx, other.ID, service.Customer{})
	if err != nil {
		t.Fatal(err)
	}
	rc, err := f.orders.AddItems(ctx, o2, []service.Line{{ProductID: f.a.ID, Quantity: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.orders.RemoveItem(ctx, o1, rc.ItemIDs[0]); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("item of another order: %v", err)
	}
	if err := f.orders.RemoveItem(ctx, o1, 12345); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("unknown item: %v", err)
	}
}

func TestSetItemPrepStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.checkIn(t)
	rc, err := f.orders.AddItems(ctx, id, []service.Line{{ProductID: f.a.ID, Quantity: 1}})
	if err != nil {
		t.Fatal(err)
	}

	if err := f.orders.SetItemPrepStatus(ctx, rc.ItemIDs[0], "cooking"); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("bad status: %v", err)
	}
	if err := f.orders.SetItemPrepStatus(ctx, 999, model.PrepDone); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("unknown item: %v", err)
	}
	if err := f.orders.SetItemPrepStatus(ctx, rc.ItemIDs[0], model.PrepDone); err != nil {
		t.Fatal(err)
	}
	o, _ := f.store.Order(id)
	if o.Version != rc.Version+1 || o.Total != rc.Total {
		t.Fatalf("after status change: version %d total %d", o.Version, o.Total)
	}
	if got := f.store.Items(id)[0].PrepStatus; got != model.PrepDone {
		t.Fatalf("prep status = %s", got)
	}
	// setting the same status again changes nothing
	if err := f.orders.SetItemPrepStatus(ctx, rc.ItemIDs[0], model.PrepDone); err != nil {
		t.Fatal(err)
	}
	if again, _ := f.store.Order(id); again.Version != o.Version {
		t.Fatalf("no-op status change bumped version to %d", again.Version)
	}
}

func TestConcurrentAddItemsKeepTotalConsistent(t *testing.T) {
	f := newFixture(t)
	id := f.checkIn(t)
	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.orders.AddItems(context.Background(), id, []service.Line{{ProductID: f.a.ID, Quantity: 1}}); err != nil {
				t.Errorf("AddItems: %v", err)
			}
		}()
	}
	wg.Wait()
	o := f.assertTotalMatchesItems(t, id)
	if o.Total != n*50000 {
		t.Fatalf("total = %d", o.Total)
	}
	if o.Version != 1+n {
		t.Fatalf("version = %d, want %d", o.Version, 1+n)
	}
}

func TestOpenOrderIsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := notify.WithActor(context.Background(), "staff:1")

	if _, err := f.orders.OpenOrder(ctx, f.table.ID, service.Customer{}, []service.Line{{ProductID: 4242, Quantity: 1}}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("unknown product: %v", err)
	}
	tb, _ := f.store.GetTable(ctx, f.table.ID)
	if !tb.Free() {
		t.Fatal("failed OpenOrder left the table occupied")
	}

	rc, err := f.orders.OpenOrder(ctx, f.table.ID, service.Customer{Name: "Walk-in"}, []service.Line{{ProductID: f.b.ID, Quantity: 3}})
	if err != nil {
		t.Fatal(err)
	}
	o := f.assertTotalMatchesItems(t, rc.OrderID)
	if o.Total != 90000 || o.CreatedBy != "staff:1" {
		t.Fatalf("opened order = %+v", o)
	}
}

func TestCleanupPaidRemovesOnlyOldPaidOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	paid := f.checkIn(t)
	if _, err := f.orders.AddItems(ctx, paid, []service.Line{{ProductID: f.a.ID, Quantity: 2}}); err != nil {
		t.Fatal(err)
	}
	if err := f.orders.CloseOrder(ctx, paid); err != nil {
		t.Fatal(err)
	}
	serving := f.checkIn(t)

	later := service.NewOrderManager(f.store, f.tables, f.hub, fastBackoff,
		service.WithClock(func() time.Time { return time.Now().Add(31 * 24 * time.Hour) }))
	orders, items, err := later.CleanupPaid(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if orders != 1 || items != 1 {
		t.Fatalf("cleaned %d orders / %d items", orders, items)
	}
	if _, ok := f.store.Order(paid); ok {
		t.Fatal("old paid order survived cleanup")
	}
	if _, ok := f.store.Order(serving); !ok {
		t.Fatal("cleanup removed a serving order")
	}

	// nothing is old enough with the real clock
	if orders, _, _ := f.orders.CleanupPaid(ctx, 0); orders != 0 {
		t.Fatalf("recent cleanup removed %d orders", orders)
	}
}

func TestEventsFollowCommits(t *testing.T) {
	f := newFixture(t)
	events := make(chan notify.Event, 16)
	unsub, err := f.hub.Subscribe(notify.TopicOrders, func(ev notify.Event) { events <- ev })
	if err != nil {
		t.Fatal(err)
	}
	defer unsub()

	ctx := notify.WithActor(context.Background(), "device:abc")
	id, err := f.tables.CheckIn(ctx, f.table.ID, service.Customer{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.orders.AddItems(ctx, id, []service.Line{{ProductID: f.a.ID, Quantity: 1}}); err != nil {
		t.Fatal(err)
	}
	// a failed mutation publishes nothing
	_, _ = f.orders.AddItems(ctx, id, []service.Line{{ProductID: 4242, Quantity: 1}})
	if err := f.orders.CloseOrder(ctx, id); err != nil {
		t.Fatal(err)
	}

	want := []struct {
		kind    notify.Kind
		version uint64
	}{
		{notify.KindOrderCreated, 1},
		{notify.KindItemsAdded, 2},
		{notify.KindOrderClosed, 3},
	}
	for _, w := range want {
		select {
		case ev := <-events:
			if ev.Kind != w.kind || ev.Version != w.version || ev.OrderID != id {
				t.Fatalf("got %s v%d, want %s v%d", ev.Kind, ev.Version, w.kind, w.version)
			}
			if ev.Actor != "device:abc" || ev.TableID != f.table.ID {
				t.Fatalf("event actor/table = %q/%d", ev.Actor, ev.TableID)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", w.kind)
		}
	}
	select {
	case ev := <-events:
		t.Fatalf("unexpected extra event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

// stallingPublisher holds back the publish of one order version, as a
// descheduled goroutine would after its commit.
type stallingPublisher struct {
	hub     *notify.Hub
	version uint64
	stalled chan struct{}
	delay   time.Duration
}

func (p *stallingPublisher) Publish(ctx context.Context, ev notify.Event) {
	if ev.Kind == notify.KindItemsAdded && ev.Version == p.version {
		close(p.stalled)
		time.Sleep(p.delay)
	}
	p.hub.Publish(ctx, ev)
}

func TestLatePublishIsDeliveredInCommitOrder(t *testing.T) {
	st := memstore.New(time.Second)
	hub := notify.NewHub("test")
	defer hub.Close()
	pub := &stallingPublisher{hub: hub, version: 2, stalled: make(chan struct{}), delay: 200 * time.Millisecond}
	tables := service.NewTableCoordinator(st, pub, fastBackoff)
	orders := service.NewOrderManager(st, tables, pub, fastBackoff)
	tb := st.AddTable("T1")
	cat := st.AddCategory("Mains", 1)
	a := st.AddProduct(cat.ID, "A", 50000, true)
	b := st.AddProduct(cat.ID, "B", 30000, true)

	events := make(chan notify.Event, 16)
	unsub, err := hub.Subscribe(notify.TopicOrders, func(ev notify.Event) { events <- ev })
	if err != nil {
		t.Fatal(err)
	}
	defer unsub()

	ctx := context.Background()
	id, err := tables.CheckIn(ctx, tb.ID, service.Customer{})
	if err != nil {
		t.Fatal(err)
	}
	first := make(chan error, 1)
	go func() {
		_, err := orders.AddItems(ctx, id, []service.Line{{ProductID: a.ID, Quantity: 1}})
		first <- err
	}()
	<-pub.stalled
	if _, err := orders.AddItems(ctx, id, []service.Line{{ProductID: b.ID, Quantity: 1}}); err != nil {
		t.Fatal(err)
	}
	if err := <-first; err != nil {
		t.Fatal(err)
	}

	want := []struct {
		kind    notify.Kind
		version uint64
		product uint64
	}{
		{notify.KindOrderCreated, 1, 0},
		{notify.KindItemsAdded, 2, a.ID},
		{notify.KindItemsAdded, 3, b.ID},
	}
	for _, w := range want {
		select {
		case ev := <-events:
			if ev.Kind != w.kind || ev.Version != w.version {
				t.Fatalf("got %s v%d, want %s v%d", ev.Kind, ev.Version, w.kind, w.version)
			}
			if w.product != 0 {
				items := st.Items(id)
				var found bool
				for _, it := range items {
					if len(ev.ItemIDs) == 1 && it.ID == ev.ItemIDs[0] && it.ProductID == w.product {
						found = true
					}
				}
				if !found {
					t.Fatalf("v%d carries items %v, want product %d", ev.Version, ev.ItemIDs, w.product)
				}
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s v%d", w.kind, w.version)
		}
	}
	select {
	case ev := <-events:
		t.Fatalf("unexpected extra event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

// flakyStore fails the first n transactions with contention.
type flakyStore struct {
	inner    *memstore.Store
	mu       sync.Mutex
	failures int
	calls    int
}

func (s *flakyStore) Transactionally(ctx context.Context, fn func(service.Tx) error) error {
	s.mu.Lock()
	s.calls++
	fail := s.failures > 0
	if fail {
		s.failures--
	}
	s.mu.Unlock()
	if fail {
		return model.ErrContention
	}
	return s.inner.Transactionally(ctx, fn)
}

func TestContentionIsRetriedOnce(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		wantErr   error
		wantCalls int
	}{
		{"no contention", 0, nil, 1},
		{"one contention", 1, nil, 2},
		{"persistent contention", 5, model.ErrContention, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := memstore.New(time.Second)
			tb := inner.AddTable("T1")
			st := &flakyStore{inner: inner, failures: tt.failures}
			tables := service.NewTableCoordinator(st, nil, fastBackoff)

			_, err := tables.CheckIn(context.Background(), tb.ID, service.Customer{})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if st.calls != tt.wantCalls {
				t.Fatalf("calls = %d, want %d", st.calls, tt.wantCalls)
			}
		})
	}
}

func TestNonContentionErrorsAreNotRetried(t *testing.T) {
	inner := memstore.New(time.Second)
	st := &flakyStore{inner: inner}
	tables := service.NewTableCoordinator(st, nil, fastBackoff)
	if _, err := tables.CheckIn(context.Background(), 77, service.Customer{}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	if st.calls != 1 {
		t.Fatalf("calls = %d", st.calls)
	}
}
