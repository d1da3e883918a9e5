package poster

import (
	"context"
	"sync"
	"time"
)

// DefaultTimeSlice is how long a MainPoster drains before yielding the loop.
const DefaultTimeSlice = 10 * time.Millisecond

// MainPoster queues deliveries for the primary loop.
type MainPoster struct {
	loop    MainLoop
	queue   *Queue
	slice   time.Duration
	onError func(error)

	mu     sync.Mutex
	active bool
}

// NewMainPoster creates a poster draining on loop. A non-positive slice
// selects DefaultTimeSlice. onError receives rescheduling failures that
// happen on the loop, where no caller can see them; it may be nil.
func NewMainPoster(loop MainLoop, slice time.Duration, onError func(error)) *MainPoster {
	if slice <= 0 {
		slice = DefaultTimeSlice
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &MainPoster{
		loop:    loop,
		queue:   NewQueue(),
		slice:   slice,
		onError: onError,
	}
}

// Loop returns the loop the poster drains on.
func (m *MainPoster) Loop() MainLoop {
	return m.loop
}

// Enqueue queues event for target and schedules a drain if none is pending.
func (m *MainPoster) Enqueue(target Target, event any) error {
	p := ObtainPending(target, event)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue.Enqueue(p)
	if m.active {
		return nil
	}
	if err := m.loop.Schedule(m.drain); err != nil {
		return &QueueDispatchError{Err: err}
	}
	m.active = true
	return nil
}

// Len returns the number of queued deliveries.
func (m *MainPoster) Len() int {
	return m.queue.Len()
}

func (m *MainPoster) drain(ctx context.Context) {
	settled := false
	defer func() {
		if !settled {
			m.mu.Lock()
			m.active = false
			m.mu.Unlock()
		}
	}()

	started := time.Now()
	for {
		p := m.queue.Poll()
		if p == nil {
			m.mu.Lock()
			p = m.queue.Poll()
			if p == nil {
				m.active = false
				settled = true
				m.mu.Unlock()
				return
			}
			m.mu.Unlock()
		}

		Invoke(ctx, p)

		if time.Since(started) >= m.slice {
			if err := m.loop.Schedule(m.drain); err != nil {
				m.onError(&QueueDispatchError{Err: err})
				return
			}
			settled = true
			return
		}
	}
}
