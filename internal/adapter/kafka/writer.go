package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/civic-data-etl/internal/config"
	"github.com/couchcryptid/civic-data-etl/internal/output"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the notifier needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes artifact notices to a Kafka topic.
// It implements pipeline.Notifier.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured notice topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Name identifies the notifier in logs and metrics.
func (w *Writer) Name() string {
	return "kafka"
}

// Notify serializes and publishes all notices in a single WriteMessages call.
func (w *Writer) Notify(ctx context.Context, notices []output.Notice) error {
	if len(notices) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(notices))
	for i := range notices {
		msg, err := serializeToMessage(notices[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d notices: %w", len(msgs), err)
	}
	w.logger.Debug("artifact notices published", "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Notice into a Kafka message keyed by
// artifact name.
func serializeToMessage(n output.Notice) (kafkago.Message, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize notice: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(n.Name),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(output.NoticeType)},
			{Key: "run_id", Value: []byte(n.RunID)},
			{Key: "published_at", Value: []byte(n.PublishedAt.Format(time.RFC3339))},
		},
	}, nil
}
