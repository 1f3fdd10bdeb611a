package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-ordering/internal/notify"
)

// DeviceHeader carries the stable id a customer device generates for
// itself, so its own events can be filtered out of its stream.
const DeviceHeader = "X-Device-ID"

const ctxActor = "actor"

// Actor tags the request with whoever is acting: "staff:<id>" after
// JWTAuth, "device:<id>" for customer devices that send DeviceHeader and
// "guest" otherwise.  The tag is placed on the request context, where the
// order services pick it up for the events they emit.
func Actor() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := actorFor(c)
			c.Set(ctxActor, actor)
			req := c.Request()
			c.SetRequest(req.WithContext(notify.WithActor(req.Context(), actor)))
			return next(c)
		}
	}
}

func actorFor(c echo.Context) string {
	if uid, ok := UserID(c); ok {
		return "staff:" + strconv.FormatUint(uid, 10)
	}
	if dev := DeviceID(c); dev != "" {
		return "device:" + dev
	}
	return "guest"
}

// ActorOf returns the tag set by Actor.
func ActorOf(c echo.Context) string {
	if a, ok := c.Get(ctxActor).(string); ok {
		return a
	}
	return "guest"
}

// DeviceID returns a sanitised device id from the header (or, for
// WebSocket upgrades, the "device" query parameter).  Ids longer than 64
// characters or containing anything but letters, digits, '-' and '_' are
// ignored.
func DeviceID(c echo.Context) string {
	id := c.Request().Header.Get(DeviceHeader)
	if id == "" && isWebSocketUpgrade(c.Request()) {
		id = c.QueryParam("device")
	}
	if id == "" || len(id) > 64 {
		return ""
	}
	for _, r := range id {
		ok := r == '-' || r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !ok {
			return ""
		}
	}
	return id
}
