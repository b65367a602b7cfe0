package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"botgate/internal/counter"
)

// InstrumentedStore wraps a counter.Store with OpenTelemetry tracing and
// metrics instrumentation. The counter round trip is the only suspension
// point on the request path, so its latency is the number worth watching.
type InstrumentedStore struct {
	inner    counter.Store
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewInstrumentedStore creates a store wrapper that records trace spans,
// operation latency histograms, and error counters for every increment.
func NewInstrumentedStore(inner counter.Store) (*InstrumentedStore, error) {
	tracer := otel.Tracer("botgate/counter")
	meter := otel.Meter("botgate/counter")

	duration, err := meter.Float64Histogram(
		"counter.increment.duration",
		metric.WithDescription("Duration of counter store increments in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"counter.increment.errors",
		metric.WithDescription("Number of counter store increment errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStore{
		inner:    inner,
		tracer:   tracer,
		duration: duration,
		errors:   errCounter,
	}, nil
}

// Increment delegates to the inner store, wrapping the call in a span and
// recording latency and errors.
func (s *InstrumentedStore) Increment(ctx context.Context, key string, window time.Duration, limit int) (counter.Result, error) {
	ctx, span := s.tracer.Start(ctx, "counter.Increment",
		trace.WithAttributes(
			attribute.String("counter.key", key),
			attribute.Int("counter.limit", limit),
		),
	)
	start := time.Now()

	result, err := s.inner.Increment(ctx, key, window, limit)

	elapsed := time.Since(start).Seconds()
	s.duration.Record(ctx, elapsed)
	if err != nil {
		s.errors.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Bool("counter.allowed", result.Allowed))
		span.SetStatus(codes.Ok, "")
	}
	span.End()

	return result, err
}

// Close closes the inner store.
func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}
