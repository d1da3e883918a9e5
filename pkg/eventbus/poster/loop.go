package poster

import (
	"context"
	"sync"
)

// MainLoop is the primary execution context.
type MainLoop interface {
	// IsCurrent reports whether ctx belongs to work running on the loop.
	IsCurrent(ctx context.Context) bool
	// Schedule queues fn to run on the loop. fn receives a context for
	// which IsCurrent reports true.
	Schedule(fn func(ctx context.Context)) error
}

type loopKey struct{}

// Looper is a cooperative FIFO loop run by a single goroutine.
type Looper struct {
	mu      sync.Mutex
	tasks   []func(ctx context.Context)
	stopped bool

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

// NewLooper creates a loop. Call Run to start processing.
func NewLooper() *Looper {
	return &Looper{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Schedule implements MainLoop.
func (l *Looper) Schedule(fn func(ctx context.Context)) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrLoopStopped
	}
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// IsCurrent implements MainLoop.
func (l *Looper) IsCurrent(ctx context.Context) bool {
	owner, _ := ctx.Value(loopKey{}).(*Looper)
	return owner == l
}

// Context marks ctx as running on the loop. Use it for code that owns the
// loop goroutine outside of scheduled tasks.
func (l *Looper) Context(ctx context.Context) context.Context {
	return context.WithValue(ctx, loopKey{}, l)
}

// Run processes tasks in order until Stop is called or ctx is done. Tasks
// still queued at that point are dropped.
func (l *Looper) Run(ctx context.Context) error {
	loopCtx := l.Context(ctx)
	for {
		if fn := l.next(); fn != nil {
			fn(loopCtx)
			continue
		}
		select {
		case <-l.wake:
		case <-l.done:
			return nil
		case <-ctx.Done():
			l.Stop()
			return ctx.Err()
		}
	}
}

// Stop makes Run return after the task in progress and rejects further
// Schedule calls.
func (l *Looper) Stop() {
	l.once.Do(func() {
		l.mu.Lock()
		l.stopped = true
		l.tasks = nil
		l.mu.Unlock()
		close(l.done)
	})
}

// Pending returns the number of tasks waiting to run.
func (l *Looper) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

func (l *Looper) next() func(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped || len(l.tasks) == 0 {
		return nil
	}
	fn := l.tasks[0]
	l.tasks[0] = nil
	l.tasks = l.tasks[1:]
	return fn
}
