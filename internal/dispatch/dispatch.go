// Package dispatch implements the Dispatcher: a fixed set of symmetric,
// stateless parent-side threads draining the InputQueue and handing
// tasks to the ProcessPool.
package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hollowcore/taskengine/internal/platform/metrics"
	"github.com/hollowcore/taskengine/internal/processpool"
	"github.com/hollowcore/taskengine/internal/queue"
	"github.com/hollowcore/taskengine/internal/task"
	"github.com/hollowcore/taskengine/internal/taskengine/errs"
)

// Dispatcher runs threadCount goroutines, each independently polling
// the input queue with a short timeout and checking the shutdown flag
// on every timeout. Ordering between threads is unordered by design;
// ordering within a single thread's draws is FIFO.
type Dispatcher struct {
	threadCount int
	pollTimeout time.Duration
	input       *queue.Queue
	output      *queue.Queue
	pool        *processpool.Pool
	metrics     *metrics.Metrics

	shuttingDown atomic.Bool
	wg           sync.WaitGroup

	dispatchedTotal atomic.Int64
}

// New creates a Dispatcher of threadCount threads over input, routing
// accepted tasks into pool. Tasks that no worker in their class group
// will accept are reified into a WORKER_UNREACHABLE FAILED Result on
// output. m may be nil.
func New(threadCount int, pollTimeout time.Duration, input, output *queue.Queue, pool *processpool.Pool, m *metrics.Metrics) *Dispatcher {
	if threadCount <= 0 {
		threadCount = 4
	}
	if pollTimeout <= 0 {
		pollTimeout = time.Second
	}
	return &Dispatcher{
		threadCount: threadCount,
		pollTimeout: pollTimeout,
		input:       input,
		output:      output,
		pool:        pool,
		metrics:     m,
	}
}

// Start launches the dispatcher's threads.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.threadCount; i++ {
		d.wg.Add(1)
		go d.runThread(ctx)
	}
}

func (d *Dispatcher) runThread(ctx context.Context) {
	defer d.wg.Done()

	for {
		envelope, ok := d.input.Dequeue(ctx, d.pollTimeout)
		if !ok {
			if d.shuttingDown.Load() && d.input.Len() == 0 {
				return
			}
			continue
		}

		env, err := task.UnmarshalEnvelope(envelope)
		if err != nil {
			// A malformed envelope cannot be routed; there is no
			// task id to reify a FAILED result against, so it is
			// dropped at this boundary per the serialization
			// failure policy in the error taxonomy.
			continue
		}

		t := task.FromEnvelope(env)

		start := time.Now()
		submitted := d.pool.Submit(ctx, t)
		if d.metrics != nil {
			d.metrics.DispatchDuration.Observe(time.Since(start).Seconds())
		}

		if submitted {
			d.dispatchedTotal.Add(1)
			continue
		}

		d.failUnreachable(t)
	}
}

// failUnreachable reifies a task that every worker in its class group
// rejected into a WORKER_UNREACHABLE FAILED Result pushed onto the
// OutputQueue, so the submitter's get_result observes a definite
// outcome instead of the task sitting pending forever.
func (d *Dispatcher) failUnreachable(t *task.Task) {
	result := task.NewFailedResult(t.ID, time.Time{}, errs.ErrWorkerUnreachable.Error(), map[string]interface{}{
		"kind": "worker_unreachable",
	})
	data, err := result.ToEnvelope().Marshal()
	if err != nil {
		return
	}
	d.output.TryEnqueue(data)
}

// Shutdown sets the shutdown flag and waits for all dispatcher threads
// to drain the input queue and exit, up to grace.
func (d *Dispatcher) Shutdown(grace time.Duration) bool {
	d.shuttingDown.Store(true)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(grace):
		return false
	}
}

// DispatchedTotal returns the number of tasks successfully handed to
// the process pool.
func (d *Dispatcher) DispatchedTotal() int64 {
	return d.dispatchedTotal.Load()
}
