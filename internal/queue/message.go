// Package queue bridges the in-process notification hub to RabbitMQ.  Order
// events committed on this instance are published to a fanout exchange;
// every instance relays the events of the others back into its own hub, and
// the kitchen consumer turns them into ticket lines.
package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/table-ordering/internal/notify"
)

// OriginHeader carries the id of the instance that committed the event.
const OriginHeader = "origin"

func encode(ev notify.Event) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Type:         string(ev.Kind),
		Timestamp:    ev.At,
		Headers:      amqp.Table{OriginHeader: ev.Origin},
		Body:         body,
	}, nil
}

func decode(body []byte) (notify.Event, error) {
	var ev notify.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return notify.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if ev.Kind == "" {
		return notify.Event{}, fmt.Errorf("unmarshal event: missing kind")
	}
	return ev, nil
}

// TicketLine renders an order event as one line of the kitchen log.
func TicketLine(ev notify.Event) string {
	items := "[]"
	if len(ev.ItemIDs) > 0 {
		ids := make([]string, len(ev.ItemIDs))
		for i, id := range ev.ItemIDs {
			ids[i] = fmt.Sprint(id)
		}
		items = "[" + strings.Join(ids, ",") + "]"
	}
	line := fmt.Sprintf("[%s] %s | order=%s | table=%d | items=%s | total=%s | version=%d | actor=%s",
		ev.At.UTC().Format(time.RFC3339), ev.Kind, ev.OrderID, ev.TableID, items, ev.Total, ev.Version, ev.Actor)
	if ev.Status != "" {
		line += " | status=" + ev.Status
	}
	return line + "\n"
}
