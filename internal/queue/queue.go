// Package queue implements the bounded, multi-producer/multi-consumer
// envelope queues that sit between the Engine, the Dispatcher, and the
// worker processes (InputQueue and OutputQueue).
package queue

import (
	"context"
	"sync/atomic"
	"time"
)

// Queue is a bounded MPMC queue of serialized envelopes. It is safe for
// concurrent use by multiple producers and consumers.
type Queue struct {
	ch        chan []byte
	enqueued  int64
	dequeued  int64
	dropped   int64
}

// New creates a queue bounded at capacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan []byte, capacity)}
}

// TryEnqueue attempts a non-blocking push. It reports false if the queue
// is currently full, incrementing the dropped counter.
func (q *Queue) TryEnqueue(envelope []byte) bool {
	select {
	case q.ch <- envelope:
		atomic.AddInt64(&q.enqueued, 1)
		return true
	default:
		atomic.AddInt64(&q.dropped, 1)
		return false
	}
}

// Enqueue pushes envelope, blocking up to timeout if the queue is full.
// It reports false if the deadline elapsed before room was available.
func (q *Queue) Enqueue(ctx context.Context, envelope []byte, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case q.ch <- envelope:
		atomic.AddInt64(&q.enqueued, 1)
		return true
	case <-ctx.Done():
		atomic.AddInt64(&q.dropped, 1)
		return false
	}
}

// TryDequeue attempts a non-blocking pop.
func (q *Queue) TryDequeue() ([]byte, bool) {
	select {
	case envelope := <-q.ch:
		atomic.AddInt64(&q.dequeued, 1)
		return envelope, true
	default:
		return nil, false
	}
}

// Dequeue pops an envelope, blocking up to timeout. It is the realization
// of the dispatcher's and the Engine's short-poll draining loop.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case envelope := <-q.ch:
		atomic.AddInt64(&q.dequeued, 1)
		return envelope, true
	case <-ctx.Done():
		return nil, false
	}
}

// Len reports the number of envelopes currently queued.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Stats is a point-in-time snapshot of a queue's counters.
type Stats struct {
	Enqueued int64
	Dequeued int64
	Dropped  int64
	Depth    int
}

// Stats returns the current enqueue/dequeue/drop counters and depth.
func (q *Queue) Stats() Stats {
	return Stats{
		Enqueued: atomic.LoadInt64(&q.enqueued),
		Dequeued: atomic.LoadInt64(&q.dequeued),
		Dropped:  atomic.LoadInt64(&q.dropped),
		Depth:    q.Len(),
	}
}
