// Package poster moves queued deliveries onto the execution context a
// handler asked for.
//
// # Records and queues
//
// A Pending record pairs a Target with the event it should receive. Records
// come from a bounded free list (ObtainPending, ReleasePending) and travel
// through a Queue, a mutex-guarded FIFO. Invoke releases the record before
// delivering and skips targets that went inactive while queued.
//
// # Posters
//
//   - MainPoster queues onto a MainLoop and drains there in soft time
//     slices, rescheduling itself when a slice runs out.
//   - BackgroundPoster runs deliveries one at a time on a single worker
//     goroutine that starts on demand and exits after an idle period.
//   - AsyncPoster hands each delivery to a WorkerPool.
//
// Whether a delivery is queued at all is decided by the caller; posters only
// implement the queued half.
//
// # Loops and pools
//
// Looper is a cooperative single-goroutine FIFO loop that satisfies MainLoop.
// BoundedPool is the default WorkerPool, built on errgroup, with an
// unbounded backlog behind a fixed number of running goroutines.
package poster
