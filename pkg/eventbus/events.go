package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// FailureEvent is posted when a handler returns an error or panics and
// WithEmitFailureEvent is enabled. A failure inside a FailureEvent handler is
// logged but never produces another FailureEvent.
type FailureEvent struct {
	// ID uniquely identifies the failure.
	ID string
	// Bus is the bus the failing handler is registered on.
	Bus *Bus
	// Err describes the failure.
	Err *HandlerInvocationError
	// CausingEvent is the event the handler was delivering.
	CausingEvent any
	// CausingSubscriber is the subscriber owning the handler.
	CausingSubscriber any
	// Time is when the failure was observed.
	Time time.Time
}

func newFailureEvent(b *Bus, err *HandlerInvocationError, event, subscriber any) *FailureEvent {
	return &FailureEvent{
		ID:                uuid.NewString(),
		Bus:               b,
		Err:               err,
		CausingEvent:      event,
		CausingSubscriber: subscriber,
		Time:              time.Now(),
	}
}

// NoSubscriberEvent is posted when an event reaches no handler and
// WithEmitNoSubscriberEvent is enabled. It is never re-posted when it
// reaches no handler itself.
type NoSubscriberEvent struct {
	Bus   *Bus
	Event any
}
