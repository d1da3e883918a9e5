package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records event bus metrics.
// Use NewMetricsRecorder() for OTel metrics, NewPrometheusMetrics for
// Prometheus, or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordPost records an event accepted by Post.
	RecordPost(ctx context.Context, eventType string)

	// RecordDelivery records one handler invocation with its duration and error status.
	RecordDelivery(ctx context.Context, eventType, mode string, duration time.Duration, err error)

	// RecordNoSubscriber records an event that matched no subscription.
	RecordNoSubscriber(ctx context.Context, eventType string)

	// RecordSubscriptions records a change in active subscriptions; delta is
	// negative on unregistration.
	RecordSubscriptions(ctx context.Context, subscriberType string, delta int)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	posts           metric.Int64Counter
	deliveries      metric.Int64Counter
	deliveryLatency metric.Float64Histogram
	failures        metric.Int64Counter
	unmatched       metric.Int64Counter
	subscriptions   metric.Int64UpDownCounter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("eventbus")

	posts, err := meter.Int64Counter("eventbus.events.posted",
		metric.WithDescription("Number of posted events"),
	)
	if err != nil {
		return nil, err
	}

	deliveries, err := meter.Int64Counter("eventbus.deliveries",
		metric.WithDescription("Number of handler invocations"),
	)
	if err != nil {
		return nil, err
	}

	deliveryLatency, err := meter.Float64Histogram("eventbus.delivery.latency_ms",
		metric.WithDescription("Handler invocation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter("eventbus.delivery.failures",
		metric.WithDescription("Number of failed handler invocations"),
	)
	if err != nil {
		return nil, err
	}

	unmatched, err := meter.Int64Counter("eventbus.events.unmatched",
		metric.WithDescription("Number of events without subscribers"),
	)
	if err != nil {
		return nil, err
	}

	subscriptions, err := meter.Int64UpDownCounter("eventbus.subscriptions.active",
		metric.WithDescription("Number of active subscriptions"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		posts:           posts,
		deliveries:      deliveries,
		deliveryLatency: deliveryLatency,
		failures:        failures,
		unmatched:       unmatched,
		subscriptions:   subscriptions,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordPost records a posted event.
func (m *otelMetrics) RecordPost(ctx context.Context, eventType string) {
	m.posts.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

// RecordDelivery records a handler invocation.
func (m *otelMetrics) RecordDelivery(ctx context.Context, eventType, mode string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("mode", mode),
	)

	m.deliveries.Add(ctx, 1, attrs)
	m.deliveryLatency.Record(ctx, float64(duration)/float64(time.Millisecond), attrs)

	if err != nil {
		m.failures.Add(ctx, 1, attrs)
	}
}

// RecordNoSubscriber records an unmatched event.
func (m *otelMetrics) RecordNoSubscriber(ctx context.Context, eventType string) {
	m.unmatched.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

// RecordSubscriptions records a change in active subscriptions.
func (m *otelMetrics) RecordSubscriptions(ctx context.Context, subscriberType string, delta int) {
	m.subscriptions.Add(ctx, int64(delta), metric.WithAttributes(attribute.String("subscriber_type", subscriberType)))
}
