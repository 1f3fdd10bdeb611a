package queue

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/table-ordering/internal/logger"
	"github.com/iliyamo/table-ordering/internal/notify"
)

// Relay feeds events committed by other instances into the local hub.
// Each instance binds its own exclusive, server-named queue to the
// exchange, so every instance sees every event.
type Relay struct {
	hub *notify.Hub
	c   consumer
}

func NewRelay(url, exchange string, hub *notify.Hub, log *logger.Logger) *Relay {
	r := &Relay{hub: hub}
	r.c = consumer{
		url:    url,
		action: "queue.relay",
		log:    log,
		setup: func(ch *amqp.Channel) (string, error) {
			if err := declareExchange(ch, exchange); err != nil {
				return "", err
			}
			q, err := ch.QueueDeclare("", false, true, true, false, nil)
			if err != nil {
				return "", fmt.Errorf("queue declare: %w", err)
			}
			if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
				return "", fmt.Errorf("queue bind: %w", err)
			}
			return q.Name, nil
		},
		handle: func(_ context.Context, d amqp.Delivery) error {
			return r.handle(d.Body)
		},
	}
	return r
}

// Run blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error { return r.c.run(ctx) }

func (r *Relay) handle(body []byte) error {
	ev, err := decode(body)
	if err != nil {
		return fmt.Errorf("%w: %v", errPoison, err)
	}
	if ev.Origin == r.hub.Origin() {
		return nil
	}
	r.hub.Deliver(ev)
	return nil
}
