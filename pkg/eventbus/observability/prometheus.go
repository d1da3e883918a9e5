package observability

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics implements MetricsRecorder with Prometheus collectors.
type PrometheusMetrics struct {
	Posts           *prometheus.CounterVec
	Deliveries      *prometheus.CounterVec
	DeliveryLatency *prometheus.HistogramVec
	Failures        *prometheus.CounterVec
	Unmatched       *prometheus.CounterVec
	Subscriptions   *prometheus.GaugeVec
}

var _ MetricsRecorder = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics registers the bus collectors with reg. A nil reg
// selects prometheus.DefaultRegisterer. Registering twice on the same
// registerer panics.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		Posts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventbus_events_posted_total",
			Help: "Total number of posted events by event type",
		}, []string{"event_type"}),
		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventbus_deliveries_total",
			Help: "Total number of handler invocations by event type and thread mode",
		}, []string{"event_type", "mode"}),
		DeliveryLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eventbus_delivery_duration_seconds",
			Help:    "Handler invocation latency",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"event_type", "mode"}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventbus_delivery_failures_total",
			Help: "Total number of failed handler invocations by event type and thread mode",
		}, []string{"event_type", "mode"}),
		Unmatched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventbus_events_unmatched_total",
			Help: "Total number of events without subscribers by event type",
		}, []string{"event_type"}),
		Subscriptions: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "eventbus_subscriptions_active",
			Help: "Number of active subscriptions by subscriber type",
		}, []string{"subscriber_type"}),
	}
}

var (
	defaultPrometheus     *PrometheusMetrics
	defaultPrometheusOnce sync.Once
)

// DefaultPrometheusMetrics returns collectors registered once with
// prometheus.DefaultRegisterer, so several buses can share them.
func DefaultPrometheusMetrics() *PrometheusMetrics {
	defaultPrometheusOnce.Do(func() {
		defaultPrometheus = NewPrometheusMetrics(nil)
	})
	return defaultPrometheus
}

// RecordPost records a posted event.
func (p *PrometheusMetrics) RecordPost(_ context.Context, eventType string) {
	p.Posts.WithLabelValues(eventType).Inc()
}

// RecordDelivery records a handler invocation.
func (p *PrometheusMetrics) RecordDelivery(_ context.Context, eventType, mode string, duration time.Duration, err error) {
	p.Deliveries.WithLabelValues(eventType, mode).Inc()
	p.DeliveryLatency.WithLabelValues(eventType, mode).Observe(duration.Seconds())
	if err != nil {
		p.Failures.WithLabelValues(eventType, mode).Inc()
	}
}

// RecordNoSubscriber records an unmatched event.
func (p *PrometheusMetrics) RecordNoSubscriber(_ context.Context, eventType string) {
	p.Unmatched.WithLabelValues(eventType).Inc()
}

// RecordSubscriptions records a change in active subscriptions.
func (p *PrometheusMetrics) RecordSubscriptions(_ context.Context, subscriberType string, delta int) {
	p.Subscriptions.WithLabelValues(subscriberType).Add(float64(delta))
}
