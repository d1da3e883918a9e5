package poster

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrLoopStopped is returned when scheduling on a stopped Looper.
	ErrLoopStopped = errors.New("loop stopped")

	// ErrPoolClosed is returned when submitting to a closed pool.
	ErrPoolClosed = errors.New("worker pool closed")

	// ErrPosterClosed is returned when enqueueing on a closed poster.
	ErrPosterClosed = errors.New("poster closed")
)

// QueueDispatchError reports that the primary loop refused to schedule a
// drain. It is not retried.
type QueueDispatchError struct {
	Err error
}

// Error implements the error interface.
func (e *QueueDispatchError) Error() string {
	return fmt.Sprintf("could not schedule delivery on the main loop: %v", e.Err)
}

// Unwrap returns the scheduling error.
func (e *QueueDispatchError) Unwrap() error {
	return e.Err
}
