package relay

import (
	"context"
	"errors"
	"sync"

	"github.com/eapache/queue"
)

// ErrQueueClosed is returned when pushing to, or draining, a closed queue.
var ErrQueueClosed = errors.New("queue closed")

// Queue is an unbounded FIFO safe for concurrent producers and consumers.
// Push never blocks, so it can be called while the caller holds other locks.
type Queue[T any] struct {
	mu     sync.Mutex
	items  *queue.Queue
	notify chan struct{}
	closed bool
}

// NewQueue creates an empty open queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		items:  queue.New(),
		notify: make(chan struct{}, 1),
	}
}

// Push appends v to the tail of the queue.
func (q *Queue[T]) Push(v T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.items.Add(v)
	q.mu.Unlock()

	q.wake()
	return nil
}

// Receive removes and returns the head of the queue, waiting until an item is
// available, the queue is closed, or ctx is done. Items pushed before Close are
// still delivered; ErrQueueClosed is only returned once the queue is drained.
func (q *Queue[T]) Receive(ctx context.Context) (T, error) {
	var zero T

	for {
		q.mu.Lock()
		if q.items.Length() > 0 {
			v := q.items.Remove().(T)
			remaining := q.items.Length()
			q.mu.Unlock()

			// pass the wakeup on so a second consumer is not stranded
			if remaining > 0 {
				q.wake()
			}
			return v, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			q.wake()
			return zero, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-q.notify:
		}
	}
}

// Close marks the queue closed and wakes any waiting receivers. Calling Close
// more than once is a no-op.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.wake()
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

func (q *Queue[T]) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
