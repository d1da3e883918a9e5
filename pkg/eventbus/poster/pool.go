package poster

import (
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultPoolLimit is the number of goroutines the default pool runs at once.
const DefaultPoolLimit = 64

// BoundedPool runs at most limit tasks at a time on an errgroup with that
// limit. Submit never blocks for long; tasks beyond the limit wait in a FIFO
// backlog that running workers drain before they retire.
type BoundedPool struct {
	group errgroup.Group
	limit int

	mu      sync.Mutex
	running int
	backlog []func()
	closed  bool
}

// NewBoundedPool creates a pool. A non-positive limit removes the bound.
func NewBoundedPool(limit int) *BoundedPool {
	p := &BoundedPool{limit: limit}
	if limit > 0 {
		p.group.SetLimit(limit)
	}
	return p
}

// Submit implements WorkerPool.
func (p *BoundedPool) Submit(task func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}

	switch {
	case p.group.TryGo(p.worker(task)):
	case p.running < p.limit:
		// A worker has retired but its slot is not released yet.
		p.group.Go(p.worker(task))
	default:
		p.backlog = append(p.backlog, task)
		return nil
	}
	p.running++
	return nil
}

// worker runs task, then backlog entries until none are left.
func (p *BoundedPool) worker(task func()) func() error {
	return func() error {
		for t := task; t != nil; t = p.next() {
			t()
		}
		return nil
	}
}

// next pops the backlog, or retires the calling worker when it is empty.
func (p *BoundedPool) next() func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.backlog) == 0 {
		p.running--
		return nil
	}
	t := p.backlog[0]
	p.backlog[0] = nil
	p.backlog = p.backlog[1:]
	return t
}

// Running returns the number of goroutines currently working.
func (p *BoundedPool) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Close rejects new tasks and waits until every accepted task has run.
func (p *BoundedPool) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.group.Wait()
}
