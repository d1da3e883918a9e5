// Package observability provides logging, metrics and tracing hooks for the
// event bus.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry or Prometheus
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds delivery context to a logger.
//
// Example:
//
//	enriched := EnrichLogger(logger, "*app.Message", "(*app.Screen).OnMessage")
//	enriched.Warn("slow handler") // includes event_type and handler
func EnrichLogger(logger *slog.Logger, eventType, handler string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("event_type", eventType),
		slog.String("handler", handler),
	)
}

// LogRegistered logs a successful registration.
func LogRegistered(logger *slog.Logger, subscriberType string, handlers int) {
	if logger == nil {
		return
	}
	logger.Debug("subscriber registered",
		slog.String("subscriber_type", subscriberType),
		slog.Int("handlers", handlers),
	)
}

// LogUnregistered logs a successful unregistration.
func LogUnregistered(logger *slog.Logger, subscriberType string, handlers int) {
	if logger == nil {
		return
	}
	logger.Debug("subscriber unregistered",
		slog.String("subscriber_type", subscriberType),
		slog.Int("handlers", handlers),
	)
}

// LogUnknownSubscriber logs an attempt to unregister a subscriber that was
// never registered (non-fatal).
func LogUnknownSubscriber(logger *slog.Logger, subscriberType string) {
	if logger == nil {
		return
	}
	logger.Warn("subscriber to unregister was not registered before",
		slog.String("subscriber_type", subscriberType),
	)
}

// LogNoSubscriber logs an event that matched no subscription.
func LogNoSubscriber(logger *slog.Logger, eventType string) {
	if logger == nil {
		return
	}
	logger.Info("no subscribers registered for event",
		slog.String("event_type", eventType),
	)
}

// LogHandlerFailure logs a failed handler invocation.
func LogHandlerFailure(logger *slog.Logger, eventType, handler string, err error) {
	if logger == nil {
		return
	}
	logger.Error("handler failed",
		slog.String("event_type", eventType),
		slog.String("handler", handler),
		slog.String("error", err.Error()),
	)
}

// LogFailureEventFailure logs a handler that failed while handling a failure
// event. Such failures are never re-posted.
func LogFailureEventFailure(logger *slog.Logger, handler string, causingEventType string, err error) {
	if logger == nil {
		return
	}
	logger.Error("failure event handler failed",
		slog.String("handler", handler),
		slog.String("causing_event_type", causingEventType),
		slog.String("error", err.Error()),
	)
}

// LogQueueDispatchError logs a main loop that refused to schedule a drain.
func LogQueueDispatchError(logger *slog.Logger, err error) {
	if logger == nil {
		return
	}
	logger.Error("main loop dispatch failed",
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	elapsed := done()
func TimedOperation() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}

// LogDeadLetter logs a failure written to a dead letter store.
func LogDeadLetter(logger *slog.Logger, id, eventType, handler string) {
	if logger == nil {
		return
	}
	logger.Debug("dead letter recorded",
		slog.String("id", id),
		slog.String("event_type", eventType),
		slog.String("handler", handler),
	)
}
