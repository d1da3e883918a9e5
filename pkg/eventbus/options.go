package eventbus

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/randalmurphal/eventbus/pkg/eventbus/config"
	"github.com/randalmurphal/eventbus/pkg/eventbus/discovery"
	"github.com/randalmurphal/eventbus/pkg/eventbus/observability"
	"github.com/randalmurphal/eventbus/pkg/eventbus/poster"
)

// busConfig holds the settings a Bus is built from.
type busConfig struct {
	hierarchy           bool
	strict              bool
	ignoreIndex         bool
	indexes             []discovery.Index
	logNoSubscriber     bool
	logHandlerFailure   bool
	throwHandlerFailure bool
	emitFailureEvent    bool
	emitNoSubscriber    bool

	pool           poster.WorkerPool
	poolLimit      int
	loop           poster.MainLoop
	mainTimeSlice  time.Duration
	backgroundIdle time.Duration

	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
}

// defaultBusConfig returns the default bus configuration.
func defaultBusConfig() busConfig {
	return busConfig{
		hierarchy:         true,
		logNoSubscriber:   true,
		logHandlerFailure: true,
		emitFailureEvent:  true,
		emitNoSubscriber:  true,
		poolLimit:         poster.DefaultPoolLimit,
		mainTimeSlice:     poster.DefaultTimeSlice,
		backgroundIdle:    poster.DefaultIdleTimeout,
		metrics:           observability.NoopMetrics{},
		spans:             observability.NoopSpanManager{},
	}
}

// Option configures a Bus.
type Option func(*busConfig)

// WithEventTypeHierarchy enables delivery to handlers of embedded ancestor
// types and implemented interfaces.
// Default: true
//
// With hierarchy disabled only handlers declared for the exact dynamic type
// of a posted event receive it, which avoids the type closure lookup.
func WithEventTypeHierarchy(enabled bool) Option {
	return func(c *busConfig) {
		c.hierarchy = enabled
	}
}

// WithStrictHandlerVerification makes Register fail with *SignatureError on
// methods that look like handlers but have the wrong shape.
// Default: false (such methods are skipped)
func WithStrictHandlerVerification(enabled bool) Option {
	return func(c *busConfig) {
		c.strict = enabled
	}
}

// WithIgnoreGeneratedDescriptors forces reflection even when an index
// provides a precomputed table.
// Default: false
func WithIgnoreGeneratedDescriptors(enabled bool) Option {
	return func(c *busConfig) {
		c.ignoreIndex = enabled
	}
}

// WithIndex adds a source of precomputed handler tables. Indexes are
// consulted in the order they were added.
//
// Example:
//
//	bus := eventbus.New(eventbus.WithIndex(ui.HandlerIndex))
func WithIndex(idx discovery.Index) Option {
	return func(c *busConfig) {
		if idx != nil {
			c.indexes = append(c.indexes, idx)
		}
	}
}

// WithLogOnNoSubscriber logs events that reach no handler.
// Default: true
func WithLogOnNoSubscriber(enabled bool) Option {
	return func(c *busConfig) {
		c.logNoSubscriber = enabled
	}
}

// WithLogOnHandlerFailure logs handler errors and panics.
// Default: true
func WithLogOnHandlerFailure(enabled bool) Option {
	return func(c *busConfig) {
		c.logHandlerFailure = enabled
	}
}

// WithThrowOnHandlerFailure re-panics with a *HandlerInvocationError on the
// goroutine that invoked the failing handler.
// Default: false
//
// Intended for tests; for immediate handlers the panic surfaces from Post.
func WithThrowOnHandlerFailure(enabled bool) Option {
	return func(c *busConfig) {
		c.throwHandlerFailure = enabled
	}
}

// WithEmitFailureEvent posts a *FailureEvent for each handler failure.
// Default: true
func WithEmitFailureEvent(enabled bool) Option {
	return func(c *busConfig) {
		c.emitFailureEvent = enabled
	}
}

// WithEmitNoSubscriberEvent posts a *NoSubscriberEvent for events that
// reach no handler.
// Default: true
func WithEmitNoSubscriberEvent(enabled bool) Option {
	return func(c *busConfig) {
		c.emitNoSubscriber = enabled
	}
}

// WithWorkerPool sets the pool running Async handlers. The caller owns the
// pool; Close does not shut it down.
// Default: a poster.BoundedPool owned by the bus
func WithWorkerPool(pool poster.WorkerPool) Option {
	return func(c *busConfig) {
		if pool != nil {
			c.pool = pool
		}
	}
}

// WithAsyncPoolLimit bounds the default Async pool. Ignored when
// WithWorkerPool is set.
// Default: 64
func WithAsyncPoolLimit(n int) Option {
	return func(c *busConfig) {
		if n > 0 {
			c.poolLimit = n
		}
	}
}

// WithMainLoop sets the primary loop used by Main, MainOrdered and
// Background handlers. Without one, Main and MainOrdered handlers run like
// Posting handlers and Background handlers run on the posting goroutine.
//
// Example:
//
//	loop := poster.NewLooper()
//	go loop.Run(ctx)
//	bus := eventbus.New(eventbus.WithMainLoop(loop))
func WithMainLoop(loop poster.MainLoop) Option {
	return func(c *busConfig) {
		c.loop = loop
	}
}

// WithMainTimeSlice sets how long the main poster drains before yielding
// the loop to other work.
// Default: 10ms
func WithMainTimeSlice(d time.Duration) Option {
	return func(c *busConfig) {
		if d > 0 {
			c.mainTimeSlice = d
		}
	}
}

// WithBackgroundIdleTimeout sets how long the background worker waits for
// work before exiting.
// Default: 1s
func WithBackgroundIdleTimeout(d time.Duration) Option {
	return func(c *busConfig) {
		if d > 0 {
			c.backgroundIdle = d
		}
	}
}

// WithLogger sets the logger for registration, dispatch and failure logging.
// Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(c *busConfig) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
// Default: observability.NoopMetrics{}
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *busConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithSpans sets the span manager.
// Default: observability.NoopSpanManager{}
func WithSpans(s observability.SpanManager) Option {
	return func(c *busConfig) {
		if s != nil {
			c.spans = s
		}
	}
}

// Configuration keys understood by OptionsFromConfig.
const (
	keyEventTypeHierarchy        = "event_type_hierarchy"
	keyStrictHandlerVerification = "strict_handler_verification"
	keyIgnoreGenerated           = "ignore_generated_descriptors"
	keyLogNoSubscriber           = "log_no_subscriber"
	keyLogHandlerFailure         = "log_handler_failure"
	keyThrowHandlerFailure       = "throw_handler_failure"
	keyEmitFailureEvent          = "emit_failure_event"
	keyEmitNoSubscriberEvent     = "emit_no_subscriber_event"
	keyAsyncPoolLimit            = "async_pool_limit"
	keyMainTimeSlice             = "main_time_slice"
	keyBackgroundIdleTimeout     = "background_idle_timeout"
	keyMetrics                   = "metrics"
	keyTracing                   = "tracing"
)

// OptionsFromConfig translates a configuration section into options.
// Unknown keys are rejected.
//
// Example YAML:
//
//	eventbus:
//	  event_type_hierarchy: true
//	  async_pool_limit: 16
//	  main_time_slice: 5ms
//	  metrics: prometheus
//	  tracing: true
func OptionsFromConfig(cfg config.Config) ([]Option, error) {
	if unknown := cfg.Unknown(
		keyEventTypeHierarchy, keyStrictHandlerVerification, keyIgnoreGenerated,
		keyLogNoSubscriber, keyLogHandlerFailure, keyThrowHandlerFailure,
		keyEmitFailureEvent, keyEmitNoSubscriberEvent, keyAsyncPoolLimit,
		keyMainTimeSlice, keyBackgroundIdleTimeout, keyMetrics, keyTracing,
	); len(unknown) > 0 {
		return nil, fmt.Errorf("unknown event bus settings: %s", strings.Join(unknown, ", "))
	}

	def := defaultBusConfig()
	opts := []Option{
		WithEventTypeHierarchy(cfg.Bool(keyEventTypeHierarchy, def.hierarchy)),
		WithStrictHandlerVerification(cfg.Bool(keyStrictHandlerVerification, def.strict)),
		WithIgnoreGeneratedDescriptors(cfg.Bool(keyIgnoreGenerated, def.ignoreIndex)),
		WithLogOnNoSubscriber(cfg.Bool(keyLogNoSubscriber, def.logNoSubscriber)),
		WithLogOnHandlerFailure(cfg.Bool(keyLogHandlerFailure, def.logHandlerFailure)),
		WithThrowOnHandlerFailure(cfg.Bool(keyThrowHandlerFailure, def.throwHandlerFailure)),
		WithEmitFailureEvent(cfg.Bool(keyEmitFailureEvent, def.emitFailureEvent)),
		WithEmitNoSubscriberEvent(cfg.Bool(keyEmitNoSubscriberEvent, def.emitNoSubscriber)),
		WithAsyncPoolLimit(cfg.Int(keyAsyncPoolLimit, def.poolLimit)),
		WithMainTimeSlice(cfg.Duration(keyMainTimeSlice, def.mainTimeSlice)),
		WithBackgroundIdleTimeout(cfg.Duration(keyBackgroundIdleTimeout, def.backgroundIdle)),
	}

	switch backend := cfg.String(keyMetrics, "none"); backend {
	case "none", "":
	case "otel":
		opts = append(opts, WithMetrics(observability.NewMetricsRecorder()))
	case "prometheus":
		opts = append(opts, WithMetrics(observability.DefaultPrometheusMetrics()))
	default:
		return nil, fmt.Errorf("unknown metrics backend %q", backend)
	}

	if cfg.Bool(keyTracing, false) {
		opts = append(opts, WithSpans(observability.NewSpanManager()))
	}
	return opts, nil
}

// LoadOptions reads the "eventbus" section of a YAML or JSON file and
// translates it with OptionsFromConfig. A file holding only bus settings may
// omit the section key.
func LoadOptions(path string) ([]Option, error) {
	cfg, err := config.LoadSection(path, "eventbus")
	if err != nil {
		return nil, fmt.Errorf("load event bus config: %w", err)
	}
	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return opts, nil
}
