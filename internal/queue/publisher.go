package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/table-ordering/internal/logger"
	"github.com/iliyamo/table-ordering/internal/notify"
)

var ErrPublisherClosed = errors.New("queue: publisher closed")

// Publisher sends order events to the fanout exchange.  The connection is
// opened lazily and reopened after the broker drops it.
type Publisher struct {
	url      string
	exchange string
	log      *logger.Logger

	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed bool
}

func NewPublisher(url, exchange string, log *logger.Logger) *Publisher {
	return &Publisher{url: url, exchange: exchange, log: log}
}

// channel returns an open channel with the exchange declared.  Callers hold mu.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.closed {
		return nil, ErrPublisherClosed
	}
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if err := declareExchange(ch, p.exchange); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// Publish sends one event.  Failures are logged and returned; the caller
// decides whether they matter.
func (p *Publisher) Publish(ctx context.Context, ev notify.Event) error {
	msg, err := encode(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channel()
	if err != nil {
		p.log.Error("queue.publish", "broker unavailable", err, "event", ev.ID, "kind", string(ev.Kind))
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := ch.PublishWithContext(ctx, p.exchange, "", false, false, msg); err != nil {
		p.reset()
		p.log.Error("queue.publish", "publish failed", err, "event", ev.ID, "kind", string(ev.Kind))
		return fmt.Errorf("publish: %w", err)
	}
	p.log.Debug("queue.publish", "event published", "event", ev.ID, "kind", string(ev.Kind), "order", ev.OrderID)
	return nil
}

// Forward publishes every order event committed on this instance.  Relayed
// events are skipped so they do not bounce between instances.  The returned
// function stops forwarding.
func (p *Publisher) Forward(hub *notify.Hub) (func(), error) {
	return hub.Subscribe(notify.TopicOrders, func(ev notify.Event) {
		if ev.Kind == notify.KindResync {
			p.log.Warn("queue.forward", "forwarder lagged, some events were not published")
			return
		}
		_ = p.Publish(context.Background(), ev)
	}, notify.OnlyLocal(), notify.WithBuffer(1024))
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.reset()
	return nil
}

func declareExchange(ch *amqp.Channel, name string) error {
	if err := ch.ExchangeDeclare(name, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare %s: %w", name, err)
	}
	return nil
}
