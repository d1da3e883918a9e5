package eventbus

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/randalmurphal/eventbus/pkg/eventbus/discovery"
	"github.com/randalmurphal/eventbus/pkg/eventbus/poster"
)

// Sentinel errors for registration and posting.
var (
	// ErrInvalidSubscriber indicates a nil or non-comparable subscriber value.
	ErrInvalidSubscriber = errors.New("subscriber must be a non-nil comparable value")

	// ErrNilEvent indicates Post was called with a nil event.
	ErrNilEvent = errors.New("event cannot be nil")

	// ErrBusClosed indicates the bus was closed.
	ErrBusClosed = errors.New("event bus is closed")

	// ErrDefaultInitialized indicates InitDefault ran after the default bus
	// had already been created.
	ErrDefaultInitialized = errors.New("default event bus already exists")
)

// Discovery and queueing errors live next to the code raising them.
type (
	// DiscoveryError reports a subscriber type without handlers.
	DiscoveryError = discovery.DiscoveryError
	// SignatureError reports a malformed handler under strict verification.
	SignatureError = discovery.SignatureError
	// QueueDispatchError reports a failure to hand work to the main loop.
	QueueDispatchError = poster.QueueDispatchError
)

// DuplicateSubscriptionError indicates a subscriber already holds an active
// subscription for an exact event type.
type DuplicateSubscriptionError struct {
	SubscriberType reflect.Type
	EventType      reflect.Type
}

// Error implements the error interface.
func (e *DuplicateSubscriptionError) Error() string {
	return fmt.Sprintf("subscriber %s already registered to event %s", e.SubscriberType, e.EventType)
}

// IllegalCancellationError indicates CancelEventDelivery was called outside
// an immediate handler of the event being cancelled.
type IllegalCancellationError struct {
	Reason string
}

// Error implements the error interface.
func (e *IllegalCancellationError) Error() string {
	return "illegal event cancellation: " + e.Reason
}

// HandlerInvocationError wraps a failure raised by a handler.
type HandlerInvocationError struct {
	// SubscriberType is the dynamic type of the subscriber.
	SubscriberType reflect.Type
	// Handler is the handler method name.
	Handler string
	// EventType is the type of the delivered event.
	EventType reflect.Type
	// Err is the returned error or a *PanicError.
	Err error
}

// Error implements the error interface.
func (e *HandlerInvocationError) Error() string {
	return fmt.Sprintf("invoking %s.%s for %s: %v", e.SubscriberType, e.Handler, e.EventType, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *HandlerInvocationError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic recovered from a handler.
type PanicError struct {
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace at panic time.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
