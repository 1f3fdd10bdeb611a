package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-ordering/internal/logger"
	"github.com/iliyamo/table-ordering/internal/middleware"
	"github.com/iliyamo/table-ordering/internal/notify"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Stream modes.  "events" sends every event as JSON; "refresh" sends a
// bare {"type":"refresh"} at most once per coalescing window, for pages
// that simply refetch.
const (
	ModeEvents  = "events"
	ModeRefresh = "refresh"
)

var refreshMsg = map[string]string{"type": "refresh"}

// StreamHandler upgrades requests to WebSocket connections fed by the
// notification hub.
type StreamHandler struct {
	Hub      *notify.Hub
	Window   time.Duration
	Log      *logger.Logger
	Upgrader websocket.Upgrader
}

func NewStreamHandler(hub *notify.Hub, window time.Duration, log *logger.Logger) *StreamHandler {
	if hub == nil {
		panic("nil hub passed to NewStreamHandler")
	}
	if window <= 0 {
		window = notify.DefaultCoalesceWindow
	}
	return &StreamHandler{
		Hub:    hub,
		Window: window,
		Log:    log,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// validStaffTopic accepts the fixed topics plus table.<id> and order.<id>.
func validStaffTopic(topic string) bool {
	switch topic {
	case notify.TopicAll, notify.TopicOrders, notify.TopicNewOrders, notify.TopicStaffCalls:
		return true
	}
	for _, prefix := range []string{"table.", "order."} {
		if rest, ok := strings.CutPrefix(topic, prefix); ok && rest != "" {
			return true
		}
	}
	return false
}

func streamMode(c echo.Context) (string, bool) {
	mode := c.QueryParam("mode")
	switch mode {
	case "":
		return ModeEvents, true
	case ModeEvents, ModeRefresh:
		return mode, true
	}
	return "", false
}

// selfFilter reads ?self=ignore|include.  Without it a device never sees
// its own writes and staff do not get alerted about orders they opened on
// orders.new.  Guests share one tag, so they are never filtered.
func selfFilter(c echo.Context, actor, topic string) (ignore, ok bool) {
	tagged := strings.HasPrefix(actor, "device:") || strings.HasPrefix(actor, "staff:")
	switch c.QueryParam("self") {
	case "":
		if strings.HasPrefix(actor, "device:") {
			return true, true
		}
		return topic == notify.TopicNewOrders && tagged, true
	case "ignore":
		return tagged, true
	case "include":
		return false, true
	}
	return false, false
}

// Staff handles GET /v1/ws?topic=orders&mode=events|refresh&self=ignore|include.
func (h *StreamHandler) Staff(c echo.Context) error {
	topic := c.QueryParam("topic")
	if topic == "" {
		topic = notify.TopicOrders
	}
	if !validStaffTopic(topic) {
		return badRequest(c, "unknown topic")
	}
	mode, ok := streamMode(c)
	if !ok {
		return badRequest(c, "mode must be events or refresh")
	}
	ignoreSelf, ok := selfFilter(c, middleware.ActorOf(c), topic)
	if !ok {
		return badRequest(c, "self must be ignore or include")
	}
	return h.serve(c, topic, mode, ignoreSelf)
}

// Order handles GET /v1/orders/:id/ws, the customer device's view of its
// own order.  Events the device caused itself are not echoed back.
func (h *StreamHandler) Order(c echo.Context) error {
	orderID := c.Param("id")
	if orderID == "" {
		return badRequest(c, "invalid id")
	}
	mode, ok := streamMode(c)
	if !ok {
		return badRequest(c, "mode must be events or refresh")
	}
	topic := notify.OrderTopic(orderID)
	ignoreSelf, ok := selfFilter(c, middleware.ActorOf(c), topic)
	if !ok {
		return badRequest(c, "self must be ignore or include")
	}
	return h.serve(c, topic, mode, ignoreSelf)
}

func (h *StreamHandler) serve(c echo.Context, topic, mode string, ignoreSelf bool) error {
	actor := middleware.ActorOf(c)
	conn, err := h.Upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.Log.Warn("ws.upgrade", "upgrade failed", "err", err.Error())
		return nil
	}
	defer conn.Close()

	out := make(chan any, 16)
	done := make(chan struct{})

	var coalescer *notify.Coalescer
	if mode == ModeRefresh {
		coalescer = notify.NewCoalescer(h.Window, func() {
			select {
			case out <- refreshMsg:
			default: // a refresh is already pending
			}
		})
		defer coalescer.Stop()
	}

	// Blocking here only stalls this subscription; once its hub buffer is
	// full the hub drops and later sends a resync.
	handler := func(ev notify.Event) {
		if coalescer != nil {
			coalescer.Trigger()
			return
		}
		select {
		case out <- ev:
		case <-done:
		}
	}
	opts := []notify.SubscribeOption{}
	if ignoreSelf {
		opts = append(opts, notify.IgnoreActor(actor))
	}
	unsubscribe, err := h.Hub.Subscribe(topic, handler, opts...)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "shutting down"), time.Now().Add(writeWait))
		return nil
	}
	defer unsubscribe()
	defer close(done)

	h.Log.Debug("ws.open", "stream opened", "topic", topic, "mode", mode, "actor", actor)
	gone := make(chan struct{})
	go readPump(conn, gone)
	writePump(conn, out, gone)
	h.Log.Debug("ws.close", "stream closed", "topic", topic, "actor", actor)
	return nil
}

// readPump discards client messages and keeps the pong deadline fresh.  It
// closes gone when the connection breaks.
func readPump(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(conn *websocket.Conn, out <-chan any, gone <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-gone:
			return
		case msg := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
