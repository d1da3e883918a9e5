package poster

import (
	"context"
	"sync"
	"time"
)

// DefaultIdleTimeout is how long the background worker waits for work
// before exiting.
const DefaultIdleTimeout = time.Second

// BackgroundPoster runs deliveries sequentially on one worker goroutine.
type BackgroundPoster struct {
	queue *Queue
	idle  time.Duration

	mu      sync.Mutex
	running bool
	closed  bool
	wg      sync.WaitGroup
}

// NewBackgroundPoster creates a poster whose worker exits after idle without
// work. A non-positive idle selects DefaultIdleTimeout.
func NewBackgroundPoster(idle time.Duration) *BackgroundPoster {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &BackgroundPoster{
		queue: NewQueue(),
		idle:  idle,
	}
}

// Enqueue queues event for target, starting the worker if needed.
func (b *BackgroundPoster) Enqueue(target Target, event any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrPosterClosed
	}
	b.queue.Enqueue(ObtainPending(target, event))
	if !b.running {
		b.running = true
		b.wg.Add(1)
		go b.run()
	}
	return nil
}

// Running reports whether the worker goroutine is alive.
func (b *BackgroundPoster) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Close rejects new deliveries, lets the worker finish the queue and waits
// for it to exit.
func (b *BackgroundPoster) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.queue.Wake()
	b.wg.Wait()
}

func (b *BackgroundPoster) run() {
	defer b.wg.Done()

	ctx := context.Background()
	for {
		p := b.queue.PollWait(b.idle)
		if p == nil {
			b.mu.Lock()
			if p = b.queue.Poll(); p == nil {
				b.running = false
				b.mu.Unlock()
				return
			}
			b.mu.Unlock()
		}
		Invoke(ctx, p)
	}
}
