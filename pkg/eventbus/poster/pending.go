package poster

import (
	"context"
	"sync"
)

// Target receives queued deliveries. The event bus subscription implements it.
type Target interface {
	// Active reports whether the target still accepts deliveries.
	Active() bool
	// Deliver runs the handler. Failures are handled by the target.
	Deliver(ctx context.Context, event any)
}

// Pending is a queued delivery.
type Pending struct {
	Target Target
	Event  any
	next   *Pending
}

// MaxPooledPending bounds the free list of Pending records.
const MaxPooledPending = 10000

var (
	pendingPoolMu sync.Mutex
	pendingPool   = make([]*Pending, 0, 64)
)

// ObtainPending returns a record for target and event, reusing a released
// one when available.
func ObtainPending(target Target, event any) *Pending {
	pendingPoolMu.Lock()
	if n := len(pendingPool); n > 0 {
		p := pendingPool[n-1]
		pendingPool[n-1] = nil
		pendingPool = pendingPool[:n-1]
		pendingPoolMu.Unlock()
		p.Target = target
		p.Event = event
		return p
	}
	pendingPoolMu.Unlock()
	return &Pending{Target: target, Event: event}
}

// ReleasePending clears p and returns it to the free list.
func ReleasePending(p *Pending) {
	p.Target = nil
	p.Event = nil
	p.next = nil

	pendingPoolMu.Lock()
	defer pendingPoolMu.Unlock()
	if len(pendingPool) < MaxPooledPending {
		pendingPool = append(pendingPool, p)
	}
}

// pooledPending returns the free list length.
func pooledPending() int {
	pendingPoolMu.Lock()
	defer pendingPoolMu.Unlock()
	return len(pendingPool)
}

// Invoke releases p and delivers its event if the target is still active.
func Invoke(ctx context.Context, p *Pending) {
	target, event := p.Target, p.Event
	ReleasePending(p)
	if target.Active() {
		target.Deliver(ctx, event)
	}
}
