// Package amqp publishes artifact notices to a durable RabbitMQ queue.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/civic-data-etl/internal/output"
	amqp "github.com/rabbitmq/amqp091-go"
)

// channel is the subset of *amqp.Channel the notifier needs.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// dialFunc opens a channel and returns a func that releases it together with
// its connection.
type dialFunc func(url string) (channel, func() error, error)

// Notifier implements pipeline.Notifier. A connection is opened per Notify
// call since a run publishes once.
type Notifier struct {
	url    string
	queue  string
	dial   dialFunc
	logger *slog.Logger
}

// NewNotifier creates a notifier for queue on the broker at url.
func NewNotifier(url, queue string, logger *slog.Logger) *Notifier {
	return &Notifier{url: url, queue: queue, dial: dialRabbit, logger: logger}
}

// Name identifies the notifier in logs and metrics.
func (n *Notifier) Name() string {
	return "amqp"
}

// Notify declares the durable queue and publishes one persistent message per
// notice.
func (n *Notifier) Notify(ctx context.Context, notices []output.Notice) error {
	if len(notices) == 0 {
		return nil
	}
	ch, release, err := n.dial(n.url)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}
	defer func() {
		if err := release(); err != nil {
			n.logger.Warn("amqp close failed", "error", err)
		}
	}()

	if _, err := ch.QueueDeclare(n.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", n.queue, err)
	}

	for _, notice := range notices {
		body, err := json.Marshal(notice)
		if err != nil {
			return fmt.Errorf("serialize notice: %w", err)
		}
		err = ch.PublishWithContext(ctx, "", n.queue, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Type:         output.NoticeType,
			MessageId:    notice.RunID + "/" + notice.Name,
			Timestamp:    notice.PublishedAt,
			Body:         body,
		})
		if err != nil {
			return fmt.Errorf("publish %s: %w", notice.Name, err)
		}
	}
	n.logger.Debug("artifact notices published", "queue", n.queue, "count", len(notices))
	return nil
}

// Close is a no-op; connections do not outlive Notify.
func (n *Notifier) Close() error {
	return nil
}

func dialRabbit(url string) (channel, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	release := func() error {
		ch.Close()
		return conn.Close()
	}
	return ch, release, nil
}
