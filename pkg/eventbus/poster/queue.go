package poster

import (
	"sync"
	"time"
)

// Queue is a FIFO of Pending records.
type Queue struct {
	mu   sync.Mutex
	head *Pending
	tail *Pending
	size int

	// wake holds at most one token and is signalled on every enqueue.
	wake chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Enqueue appends p.
func (q *Queue) Enqueue(p *Pending) {
	if p == nil {
		panic("poster: nil pending record")
	}
	q.mu.Lock()
	if q.tail != nil {
		q.tail.next = p
	} else {
		q.head = p
	}
	q.tail = p
	q.size++
	q.mu.Unlock()

	q.Wake()
}

// Wake releases one waiter in PollWait without adding a record.
func (q *Queue) Wake() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Poll removes and returns the head, or nil when the queue is empty.
func (q *Queue) Poll() *Pending {
	q.mu.Lock()
	defer q.mu.Unlock()
	p := q.head
	if p == nil {
		return nil
	}
	q.head = p.next
	if q.head == nil {
		q.tail = nil
	}
	p.next = nil
	q.size--
	return p
}

// PollWait is Poll, but waits up to timeout for a record when the queue is
// empty. It returns nil on timeout or when woken with nothing queued.
func (q *Queue) PollWait(timeout time.Duration) *Pending {
	if p := q.Poll(); p != nil {
		return p
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-q.wake:
	case <-timer.C:
	}
	return q.Poll()
}

// Len returns the number of queued records.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}
