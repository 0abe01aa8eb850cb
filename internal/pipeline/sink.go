package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/inmet-alerts/internal/domain"
	"github.com/couchcryptid/inmet-alerts/internal/observability"
)

// LogSink writes every transition to the log.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(ctx context.Context, events []domain.TransitionEvent) error {
	for _, e := range events {
		r := e.Record()
		attrs := []any{
			"event_id", e.ID,
			"region", e.Region,
			"kind", e.Kind,
			"identity_key", e.Key,
			"description", r.Description,
			"severity", r.Severity.String(),
		}
		if e.Reason != "" {
			attrs = append(attrs, "reason", e.Reason)
		}
		s.logger.InfoContext(ctx, "alert transition", attrs...)
	}
	return nil
}

// NamedSink labels a sink for logs and metrics.
type NamedSink struct {
	Name string
	Sink EventSink
}

// MultiSink publishes every batch to all of its sinks. A failing sink does not
// stop the others; its error is counted, logged and returned joined.
type MultiSink struct {
	sinks   []NamedSink
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewMultiSink creates a MultiSink over sinks.
func NewMultiSink(logger *slog.Logger, metrics *observability.Metrics, sinks ...NamedSink) *MultiSink {
	return &MultiSink{sinks: sinks, logger: logger, metrics: metrics}
}

func (m *MultiSink) Publish(ctx context.Context, events []domain.TransitionEvent) error {
	if len(events) == 0 {
		return nil
	}

	var errs []error
	for _, s := range m.sinks {
		if err := s.Sink.Publish(ctx, events); err != nil {
			m.metrics.SinkErrors.WithLabelValues(s.Name).Inc()
			m.logger.Error("sink publish failed", "sink", s.Name, "error", err, "events", len(events))
			errs = append(errs, fmt.Errorf("sink %s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}
