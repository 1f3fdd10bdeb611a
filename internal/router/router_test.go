package router

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-ordering/internal/config"
	"github.com/iliyamo/table-ordering/internal/handler"
	"github.com/iliyamo/table-ordering/internal/logger"
	"github.com/iliyamo/table-ordering/internal/notify"
	"github.com/iliyamo/table-ordering/internal/repository"
	"github.com/iliyamo/table-ordering/internal/service"
	"github.com/iliyamo/table-ordering/internal/store/memstore"
	"github.com/iliyamo/table-ordering/internal/utils"
)

const secret = "router-secret"

func newServer(t *testing.T) (*echo.Echo, *memstore.Store) {
	t.Helper()
	e, st, _ := newServerWithHub(t)
	return e, st
}

func newServerWithHub(t *testing.T) (*echo.Echo, *memstore.Store, *notify.Hub) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	mock.ExpectPing()

	st := memstore.New(time.Second)
	hub := notify.NewHub("test")
	t.Cleanup(hub.Close)
	coord := service.NewTableCoordinator(st, hub)
	manager := service.NewOrderManager(st, coord, hub)

	cust := handler.NewCustomerHandler(st, st, st, st, coord, manager, notify.NewRedisCalls(hub, nil, logger.Discard()))
	orders := handler.NewOrderAdminHandler(st, st, coord, manager, 0)
	catalog := handler.NewCatalogHandler(repository.NewTableRepo(db), repository.NewCatalogRepo(db), repository.NewSettingsRepo(db), nil)
	auth := handler.NewAuthHandler(config.Config{JWTSecret: secret}, repository.NewUserRepo(db), repository.NewTokenRepo(db))
	stream := handler.NewStreamHandler(hub, 0, logger.Discard())

	e := echo.New()
	RegisterRoutes(e, db)
	RegisterAuth(e, auth, secret)
	RegisterCustomer(e, cust, stream, Customer{})
	RegisterStaff(e, orders, stream, secret)
	RegisterAdmin(e, orders, catalog, auth, secret)
	return e, st, hub
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	return "Bearer " + rawToken(t, role)
}

func rawToken(t *testing.T, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, 1, role, 5)
	if err != nil {
		t.Fatal(err)
	}
	return tok.Token
}

func TestRouteAccess(t *testing.T) {
	e, st := newServer(t)
	st.AddTable("T1")

	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		want   int
	}{
		{"health", http.MethodGet, "/healthz", "", http.StatusOK},
		{"ready", http.MethodGet, "/readyz", "", http.StatusOK},
		{"menu is public", http.MethodGet, "/v1/menu", "", http.StatusOK},
		{"free tables public", http.MethodGet, "/v1/tables/free", "", http.StatusOK},
		{"board needs token", http.MethodGet, "/v1/admin/orders", "", http.StatusUnauthorized},
		{"kitchen sees board", http.MethodGet, "/v1/admin/orders", bearer(t, "KITCHEN"), http.StatusOK},
		{"admin sees board", http.MethodGet, "/v1/admin/orders", bearer(t, "ADMIN"), http.StatusOK},
		{"kitchen cannot see stats", http.MethodGet, "/v1/admin/stats", bearer(t, "KITCHEN"), http.StatusForbidden},
		{"admin sees stats", http.MethodGet, "/v1/admin/stats", bearer(t, "ADMIN"), http.StatusOK},
		{"kitchen cannot release", http.MethodPost, "/v1/admin/tables/1/release", bearer(t, "KITCHEN"), http.StatusForbidden},
		{"admin releases", http.MethodPost, "/v1/admin/tables/1/release", bearer(t, "ADMIN"), http.StatusNoContent},
		{"me", http.MethodGet, "/v1/me", bearer(t, "KITCHEN"), http.StatusOK},
		{"ws needs token", http.MethodGet, "/v1/ws", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestOpenOrderRecordsStaffActor(t *testing.T) {
	e, st := newServer(t)
	table := st.AddTable("T1")
	cat := st.AddCategory("Drinks", 1)
	p := st.AddProduct(cat.ID, "Tea", 1500, true)

	body := `{"table_id":1,"items":[{"product_id":1,"quantity":2}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/orders", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Authorization", bearer(t, "ADMIN"))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("open order: %d %s", rec.Code, rec.Body.String())
	}

	tbl, _ := st.GetTable(req.Context(), table.ID)
	if tbl.ActiveOrderID == nil {
		t.Fatal("table not bound")
	}
	o, _ := st.Order(*tbl.ActiveOrderID)
	if o.CreatedBy != "staff:1" || o.Total != p.Price*2 {
		t.Fatalf("order = %+v", o)
	}
}

func dialStaff(t *testing.T, srv *httptest.Server, hub *notify.Hub, query string) *websocket.Conn {
	t.Helper()
	before := hub.Stats().Subscribers
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws?" + query + "&token=" + rawToken(t, "ADMIN")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", query, err)
	}
	t.Cleanup(func() { conn.Close() })
	deadline := time.Now().Add(2 * time.Second)
	for hub.Stats().Subscribers <= before {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func TestNewOrderAlertsSkipOrdersStaffOpenedThemselves(t *testing.T) {
	e, st, hub := newServerWithHub(t)
	mine := st.AddTable("T1")
	theirs := st.AddTable("T2")
	cat := st.AddCategory("Drinks", 1)
	p := st.AddProduct(cat.ID, "Tea", 1500, true)
	srv := httptest.NewServer(e)
	defer srv.Close()

	alerts := dialStaff(t, srv, hub, "topic=orders.new")
	everything := dialStaff(t, srv, hub, "topic=orders.new&self=include")

	body := `{"table_id":` + jsonID(mine.ID) + `,"items":[{"product_id":` + jsonID(p.ID) + `,"quantity":1}]}`
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/admin/orders", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Authorization", bearer(t, "ADMIN"))
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("open order: %d", res.StatusCode)
	}

	res, err = http.Post(srv.URL+"/v1/tables/"+jsonID(theirs.ID)+"/checkin", echo.MIMEApplicationJSON, strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("checkin: %d", res.StatusCode)
	}

	read := func(conn *websocket.Conn) notify.Event {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var ev notify.Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatal(err)
		}
		return ev
	}

	if ev := read(alerts); ev.TableID != theirs.ID || ev.Actor != "guest" {
		t.Fatalf("alert stream got %+v, want only the guest check-in", ev)
	}
	if ev := read(everything); ev.TableID != mine.ID || ev.Actor != "staff:1" {
		t.Fatalf("self=include got %+v first, want the staff order", ev)
	}
	if ev := read(everything); ev.TableID != theirs.ID {
		t.Fatalf("self=include got %+v second", ev)
	}
}

func TestStreamRejectsUnknownSelfMode(t *testing.T) {
	e, _ := newServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/ws?self=maybe", nil)
	req.Header.Set("Authorization", bearer(t, "ADMIN"))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func jsonID(id uint64) string {
	return strconv.FormatUint(id, 10)
}
