package queue

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/table-ordering/internal/logger"
)

// Kitchen consumes the durable ticket queue and appends one line per order
// event to a log file that the kitchen printer tails.
type Kitchen struct {
	path string
	mu   sync.Mutex
	c    consumer
}

func NewKitchen(url, exchange, queue, path string, log *logger.Logger) *Kitchen {
	k := &Kitchen{path: path}
	k.c = consumer{
		url:    url,
		action: "queue.kitchen",
		log:    log,
		setup: func(ch *amqp.Channel) (string, error) {
			if err := declareExchange(ch, exchange); err != nil {
				return "", err
			}
			if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
				return "", fmt.Errorf("queue declare: %w", err)
			}
			if err := ch.QueueBind(queue, "", exchange, false, nil); err != nil {
				return "", fmt.Errorf("queue bind: %w", err)
			}
			return queue, nil
		},
		handle: func(_ context.Context, d amqp.Delivery) error {
			return k.handle(d.Body)
		},
	}
	return k
}

// Run blocks until ctx is cancelled.
func (k *Kitchen) Run(ctx context.Context) error { return k.c.run(ctx) }

func (k *Kitchen) handle(body []byte) error {
	ev, err := decode(body)
	if err != nil {
		return fmt.Errorf("%w: %v", errPoison, err)
	}
	if !ev.IsOrderEvent() {
		return nil
	}
	return k.write(TicketLine(ev))
}

func (k *Kitchen) write(line string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(k.path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(k.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
