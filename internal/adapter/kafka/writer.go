// Package kafka publishes inserted-measurement events to the optional
// downstream feed. The feed is advisory: the ingest pipeline is correct
// without it, so publish failures never fail a run.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/oogsj/coastwatch/internal/ingest"
)

// Writer produces batch-insertion events to a Kafka topic. It implements
// ingest.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a producer for the event topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes and writes one event, keyed by task name so consumers
// see per-task ordering.
func (w *Writer) Publish(ctx context.Context, ev ingest.Event) error {
	msg, err := buildMessage(ev)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

func buildMessage(ev ingest.Event) (kafkago.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(ev.Task),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "occurred_at", Value: []byte(ev.OccurredAt.Format(time.RFC3339))},
		},
	}, nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}
