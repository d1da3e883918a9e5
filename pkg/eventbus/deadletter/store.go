// Package deadletter records handler failures reported by the event bus.
//
// A Recorder subscribes to *eventbus.FailureEvent and writes a description of
// each failure to a Store. Event payloads are not stored; only their type
// names and the failure text are.
package deadletter

import (
	"errors"
	"time"
)

// Store persists failure records.
// Implementations must be safe for concurrent use.
type Store interface {
	// Record stores rec. Recording an ID that already exists is a no-op.
	Record(rec Record) error

	// Get returns the record with id.
	// Returns ErrNotFound if it doesn't exist.
	Get(id string) (Record, error)

	// List returns up to limit records, most recent first.
	// A non-positive limit returns every record.
	List(limit int) ([]Record, error)

	// Count returns the number of stored records.
	Count() (int, error)

	// Delete removes a record.
	// Returns nil if it doesn't exist.
	Delete(id string) error

	// Clear removes every record.
	Clear() error

	// Close releases any resources (connections, files).
	Close() error
}

// Record describes one handler failure.
type Record struct {
	// ID is the FailureEvent ID.
	ID string
	// EventType is the type name of the event being delivered.
	EventType string
	// SubscriberType is the type name of the failing subscriber.
	SubscriberType string
	// Handler is the failing handler method.
	Handler string
	// Error is the failure text.
	Error string
	// Panicked reports whether the handler panicked instead of returning an error.
	Panicked bool
	// Time is when the failure was observed, in UTC.
	Time time.Time
}

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates a record doesn't exist.
	ErrNotFound = errors.New("dead letter not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("dead letter store closed")
)
