package poster

import "context"

// WorkerPool runs submitted tasks concurrently.
type WorkerPool interface {
	Submit(task func()) error
}

// AsyncPoster hands every delivery to a WorkerPool.
type AsyncPoster struct {
	pool WorkerPool
}

// NewAsyncPoster creates a poster submitting to pool.
func NewAsyncPoster(pool WorkerPool) *AsyncPoster {
	return &AsyncPoster{pool: pool}
}

// Pool returns the pool deliveries are submitted to.
func (a *AsyncPoster) Pool() WorkerPool {
	return a.pool
}

// Enqueue submits one delivery of event to target.
func (a *AsyncPoster) Enqueue(target Target, event any) error {
	p := ObtainPending(target, event)
	err := a.pool.Submit(func() {
		Invoke(context.Background(), p)
	})
	if err != nil {
		ReleasePending(p)
		return err
	}
	return nil
}
