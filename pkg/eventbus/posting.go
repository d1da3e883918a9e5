package eventbus

import (
	"context"
	"reflect"
	"sync"

	"github.com/randalmurphal/eventbus/pkg/eventbus/discovery"
)

// postingState is the per-producer queue and delivery bookkeeping. It
// travels in the context, so handlers invoked immediately share the state of
// the Post that invoked them.
type postingState struct {
	mu        sync.Mutex
	queue     []any
	posting   bool
	cancelled bool
	current   *subscription
	event     any
}

// stateKey scopes posting state to one bus.
type stateKey struct {
	bus *Bus
}

// ProducerContext returns ctx carrying a posting state for b. Posts made
// with the returned context share one FIFO queue. Post attaches a state on
// its own when ctx has none, so calling this is only needed to group
// several producers' posts behind each other.
func (b *Bus) ProducerContext(ctx context.Context) context.Context {
	ctx, _ = b.postingState(ctx)
	return ctx
}

func (b *Bus) postingState(ctx context.Context) (context.Context, *postingState) {
	if st, ok := ctx.Value(stateKey{bus: b}).(*postingState); ok {
		return ctx, st
	}
	st := &postingState{}
	return context.WithValue(ctx, stateKey{bus: b}, st), st
}

// begin marks sub as delivering event.
func (st *postingState) begin(sub *subscription, event any) {
	st.mu.Lock()
	st.current = sub
	st.event = event
	st.cancelled = false
	st.mu.Unlock()
}

// end clears the delivery and reports whether it was cancelled.
func (st *postingState) end() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	cancelled := st.cancelled
	st.current = nil
	st.event = nil
	st.cancelled = false
	return cancelled
}

// CancelEventDelivery stops delivery of event to the remaining handlers.
// Only a Posting handler may cancel, and only the event it is handling,
// using the context it was invoked with. Handlers of lower priority and all
// remaining types of the event's closure are skipped.
func (b *Bus) CancelEventDelivery(ctx context.Context, event any) error {
	if event == nil {
		return &IllegalCancellationError{Reason: "event may not be nil"}
	}
	st, ok := ctx.Value(stateKey{bus: b}).(*postingState)
	if !ok {
		return &IllegalCancellationError{Reason: "may only be called from a handler on the posting goroutine"}
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	switch {
	case !st.posting || st.current == nil:
		return &IllegalCancellationError{Reason: "may only be called from a handler on the posting goroutine"}
	case !sameEvent(st.event, event):
		return &IllegalCancellationError{Reason: "only the event currently being handled may be cancelled"}
	case st.current.desc.Mode() != discovery.Posting:
		return &IllegalCancellationError{Reason: "only Posting handlers may cancel delivery"}
	}
	st.cancelled = true
	return nil
}

// sameEvent compares events by identity for pointers and by value for other
// comparable values. Non-comparable values never match.
func sameEvent(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() || !va.Comparable() || !vb.Comparable() {
		return false
	}
	return va.Equal(vb)
}
