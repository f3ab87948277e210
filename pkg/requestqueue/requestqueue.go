package requestqueue

import (
	"sync"

	"github.com/chargepal/fleetctl/pkg/planstore"
)

// Callback is one queued mutation, invoked with the tick's
// *planstore.Tx when the queue is drained.
type Callback func(tx *planstore.Tx) error

// Queue is a mutex-guarded, FIFO queue of callbacks enqueued by RPC
// handlers and drained once per tick by the tick loop.
type Queue struct {
	mu    sync.Mutex
	items []Callback
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue appends cb to the queue. Safe to call concurrently with
// Drain and with other Enqueue calls.
func (q *Queue) Enqueue(cb Callback) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, cb)
}

// Drain removes every queued callback and runs each against tx in
// enqueue order, stopping at the first error. Callbacks not yet run
// when an error occurs are dropped — per spec.md §5 ordering, a
// failed drain still lets the tick's transaction commit the progress
// made so far.
func (q *Queue) Drain(tx *planstore.Tx) error {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()

	for _, cb := range items {
		if err := cb(tx); err != nil {
			return err
		}
	}
	return nil
}

// Len reports the number of callbacks currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
