package deadletter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/randalmurphal/eventbus/pkg/eventbus"
	"github.com/randalmurphal/eventbus/pkg/eventbus/discovery"
	"github.com/randalmurphal/eventbus/pkg/eventbus/observability"
)

// Recorder is a subscriber that writes every FailureEvent it receives to a Store.
//
//	rec := deadletter.NewRecorder(store, logger)
//	if err := bus.Register(rec); err != nil { ... }
type Recorder struct {
	store  Store
	logger *slog.Logger
}

// NewRecorder creates a Recorder writing to store. A nil logger disables logging.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// SubscriberConfig moves store writes off the posting goroutine.
func (*Recorder) SubscriberConfig() discovery.Config {
	return discovery.Config{"OnFailure": {Mode: discovery.Background}}
}

// OnFailure records e. A returned error is logged by the bus and never
// produces another FailureEvent.
func (r *Recorder) OnFailure(_ context.Context, e *eventbus.FailureEvent) error {
	rec := FromFailure(e)
	if err := r.store.Record(rec); err != nil {
		return fmt.Errorf("record failure %s: %w", rec.ID, err)
	}
	observability.LogDeadLetter(r.logger, rec.ID, rec.EventType, rec.Handler)
	return nil
}

// Store returns the underlying store.
func (r *Recorder) Store() Store { return r.store }

// FromFailure converts a FailureEvent into a Record.
func FromFailure(e *eventbus.FailureEvent) Record {
	rec := Record{
		ID:   e.ID,
		Time: e.Time.UTC(),
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}
	if e.CausingEvent != nil {
		rec.EventType = fmt.Sprintf("%T", e.CausingEvent)
	}
	if e.CausingSubscriber != nil {
		rec.SubscriberType = fmt.Sprintf("%T", e.CausingSubscriber)
	}
	if e.Err != nil {
		rec.Handler = e.Err.Handler
		rec.Error = e.Err.Error()
		if e.Err.Err != nil {
			rec.Error = e.Err.Err.Error()
		}
		var pe *eventbus.PanicError
		rec.Panicked = errors.As(e.Err, &pe)
	}
	return rec
}
