// Package kafka publishes alert transitions to a Kafka topic.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/inmet-alerts/internal/config"
	"github.com/couchcryptid/inmet-alerts/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	headerTransition = "transition"
	headerRegion     = "region"
	headerEmittedAt  = "emitted_at"
)

// messageWriter is the subset of *kafkago.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces one message per transition.
// It implements pipeline.EventSink.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured transitions topic.
// Messages are hashed by key so every transition of an alert lands on the
// same partition in emission order.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish writes a batch of transitions in a single WriteMessages call.
func (w *Writer) Publish(ctx context.Context, events []domain.TransitionEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write transitions: %w", err)
	}
	w.logger.Debug("published transitions", "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func serializeToMessage(event domain.TransitionEvent) (kafkago.Message, error) {
	data, err := domain.SerializeTransition(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize transition %s: %w", event.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(event.Key),
		Value: data,
		Time:  event.At,
		Headers: []kafkago.Header{
			{Key: headerTransition, Value: []byte(event.Kind)},
			{Key: headerRegion, Value: []byte(event.Region)},
			{Key: headerEmittedAt, Value: []byte(event.At.UTC().Format(time.RFC3339))},
		},
	}, nil
}
