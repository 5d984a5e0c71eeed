package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/raincell-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Notifier publishes run-completed events to a Kafka topic.
// It implements pipeline.Notifier.
type Notifier struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewNotifier creates a Kafka producer for the notification topic. timeout
// bounds each publish.
func NewNotifier(brokers []string, topic string, timeout time.Duration, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		WriteTimeout: timeout,
	}
	return &Notifier{writer: w, logger: logger}
}

// Notify publishes a single run-completed event keyed by its run key.
func (n *Notifier) Notify(ctx context.Context, event domain.RunCompleted) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish run %s: %w", event.RunKey, err)
	}
	n.logger.Debug("run notification published", "run_key", event.RunKey, "topic", n.writer.Topic)
	return nil
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

// serializeToMessage marshals a RunCompleted event into a Kafka message.
func serializeToMessage(event domain.RunCompleted) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize run event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.RunKey),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_key", Value: []byte(event.RunKey)},
			{Key: "generated_at", Value: []byte(event.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
