package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/table-ordering/internal/logger"
)

const maxBackoff = 30 * time.Second

// errPoison marks a delivery that can never be processed.  It is rejected
// without requeue; every other handler error requeues once.
var errPoison = errors.New("poison message")

// consumer runs a reconnect loop around one queue.
type consumer struct {
	url    string
	action string
	log    *logger.Logger

	// setup declares the topology on a fresh channel and returns the
	// name of the queue to consume.
	setup  func(ch *amqp.Channel) (string, error)
	handle func(ctx context.Context, d amqp.Delivery) error
}

// run blocks until ctx is done, redialling with exponential backoff
// whenever the connection or the delivery stream breaks.
func (c *consumer) run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err == nil {
			backoff = time.Second
			err = c.consume(ctx, conn)
			_ = conn.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn(c.action, "consume loop ended, reconnecting", "err", err.Error())
		} else {
			c.log.Warn(c.action, "failed to dial broker", "err", err.Error(), "retry_in", backoff.String())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}

func (c *consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn(c.action, "set QoS failed", "err", err.Error())
	}
	queue, err := c.setup(ch)
	if err != nil {
		return err
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.log.Info(c.action, "consuming", "queue", queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handle(ctx, d); err != nil {
				requeue := !errors.Is(err, errPoison) && !d.Redelivered
				c.log.Error(c.action, "handle message failed", err, "message_id", d.MessageId, "requeue", requeue)
				_ = d.Nack(false, requeue)
				continue
			}
			_ = d.Ack(false)
		}
	}
}
