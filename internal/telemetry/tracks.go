package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Tracker records product analytics events. Implementations must not block.
type Tracker interface {
	RecordEvent(name string, props map[string]any)
}

// Tracks records analytics events as OpenTelemetry counters and span events
type Tracks struct {
	logger  *slog.Logger
	tracer  trace.Tracer
	counter metric.Int64Counter
}

// NewTracks creates a Tracker backed by the given tracer and meter
func NewTracks(logger *slog.Logger, tracer trace.Tracer, meter metric.Meter) (*Tracks, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	counter, err := meter.Int64Counter(
		"ai_assistant.events",
		metric.WithDescription("Analytics events recorded by the assistant"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create events counter: %w", err)
	}

	return &Tracks{
		logger:  logger,
		tracer:  tracer,
		counter: counter,
	}, nil
}

// RecordEvent counts the event and attaches it to a short span
func (t *Tracks) RecordEvent(name string, props map[string]any) {
	attrs := make([]attribute.KeyValue, 0, len(props)+1)
	attrs = append(attrs, attribute.String("event.name", name))
	attrs = append(attrs, Attributes(props)...)

	ctx := context.Background()
	t.counter.Add(ctx, 1, metric.WithAttributes(attrs...))

	_, span := t.tracer.Start(ctx, "tracks_event")
	span.AddEvent(name, trace.WithAttributes(attrs...))
	span.End()

	t.logger.Debug("recorded event", "event", name, "props", props)
}

// Attributes converts event properties to OpenTelemetry attributes
func Attributes(props map[string]any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(props))
	for key, value := range props {
		switch v := value.(type) {
		case string:
			attrs = append(attrs, attribute.String(key, v))
		case int:
			attrs = append(attrs, attribute.Int(key, v))
		case int64:
			attrs = append(attrs, attribute.Int64(key, v))
		case float64:
			attrs = append(attrs, attribute.Float64(key, v))
		case bool:
			attrs = append(attrs, attribute.Bool(key, v))
		default:
			attrs = append(attrs, attribute.String(key, fmt.Sprint(v)))
		}
	}
	return attrs
}
