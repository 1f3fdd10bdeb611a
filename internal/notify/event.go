// Package notify fans committed order mutations and staff calls out to every
// interested observer: dashboard WebSockets, kitchen displays, and the
// broker bridge that carries events to other instances.
package notify

import (
	"strconv"
	"time"

	"github.com/iliyamo/table-ordering/internal/model"
)

// Kind names what happened.
type Kind string

const (
	KindOrderCreated Kind = "order.created"
	KindItemsAdded   Kind = "items.added"
	KindItemRemoved  Kind = "item.removed"
	KindItemStatus   Kind = "item.status"
	KindOrderClosed  Kind = "order.closed"
	KindOrderDeleted Kind = "order.deleted"
	KindStaffCall    Kind = "staff.call"

	// KindResync tells receivers to refetch their view.  A subscription
	// that had to drop events sends one without an order; the hub sends
	// one scoped to an order whose versions arrived out of order.
	KindResync Kind = "resync"
)

// Topics a subscriber can listen on.  Table and order topics are built with
// TableTopic and OrderTopic.
const (
	TopicAll        = "*"
	TopicOrders     = "orders"
	TopicNewOrders  = "orders.new"
	TopicStaffCalls = "staff-calls"
)

func TableTopic(tableID uint64) string { return "table." + strconv.FormatUint(tableID, 10) }
func OrderTopic(orderID string) string { return "order." + orderID }

// StaffCall is the payload of a "call staff" signal from a customer device.
type StaffCall struct {
	TableLabel    string `json:"table_label"`
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerPhone string `json:"customer_phone,omitempty"`
}

// Event is one committed change.  Version is the order version after the
// mutation; the hub uses it with OrderID to fan events out in commit order.
// Actor is who caused the change, Origin the instance that committed it.
type Event struct {
	ID      string      `json:"id"`
	Kind    Kind        `json:"kind"`
	OrderID string      `json:"order_id,omitempty"`
	TableID uint64      `json:"table_id,omitempty"`
	ItemIDs []uint64    `json:"item_ids,omitempty"`
	Status  string      `json:"status,omitempty"`
	Total   model.Money `json:"total"`
	Version uint64      `json:"version,omitempty"`
	Actor   string      `json:"actor,omitempty"`
	Origin  string      `json:"origin,omitempty"`
	At      time.Time   `json:"at"`
	Call    *StaffCall  `json:"call,omitempty"`
}

// IsOrderEvent reports whether the event describes an order or item change.
func (e Event) IsOrderEvent() bool {
	switch e.Kind {
	case KindOrderCreated, KindItemsAdded, KindItemRemoved, KindItemStatus, KindOrderClosed, KindOrderDeleted:
		return true
	}
	return false
}

// Topics lists every topic the event is visible on.
func (e Event) Topics() []string {
	topics := []string{TopicAll}
	if e.IsOrderEvent() {
		topics = append(topics, TopicOrders)
		if e.Kind == KindOrderCreated {
			topics = append(topics, TopicNewOrders)
		}
		if e.OrderID != "" {
			topics = append(topics, OrderTopic(e.OrderID))
		}
	}
	if e.Kind == KindStaffCall {
		topics = append(topics, TopicStaffCalls)
	}
	if e.TableID != 0 {
		topics = append(topics, TableTopic(e.TableID))
	}
	return topics
}

// Matches reports whether the event is visible on topic.  A resync without
// an order matches everything; one for an order is visible wherever that
// order's events are.
func (e Event) Matches(topic string) bool {
	if e.Kind == KindResync {
		if e.OrderID == "" {
			return true
		}
		switch topic {
		case TopicAll, TopicOrders, OrderTopic(e.OrderID):
			return true
		}
		return e.TableID != 0 && topic == TableTopic(e.TableID)
	}
	for _, t := range e.Topics() {
		if t == topic {
			return true
		}
	}
	return false
}
