// Package threadpool implements the fixed-size pool of executor threads
// that lives inside a single worker process.
package threadpool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hollowcore/taskengine/internal/executor"
	"github.com/hollowcore/taskengine/internal/task"
)

// Pool is a fixed pool of T threads draining a local bounded channel of
// task envelopes. Each thread invokes the Executor and publishes the
// Result onto the shared sink.
type Pool struct {
	size         int
	tasks        chan *task.Task
	executor     *executor.Executor
	sink         ResultSink
	workerID     string
	activeCount  int32
	pollInterval time.Duration

	wg     sync.WaitGroup
	stopCh chan struct{}
}

// ResultSink receives Results produced by the pool's threads. It models
// the push side of the shared OutputQueue.
type ResultSink interface {
	Publish(result *task.Result) bool
}

// New creates a thread pool of the given size, bound to workerID for
// ExecutionContext construction, draining into queueSize-deep local
// channel.
func New(workerID string, size, queueSize int, exec *executor.Executor, sink ResultSink) *Pool {
	if size <= 0 {
		size = 1
	}
	if queueSize <= 0 {
		queueSize = size * 4
	}
	return &Pool{
		size:         size,
		tasks:        make(chan *task.Task, queueSize),
		executor:     exec,
		sink:         sink,
		workerID:     workerID,
		pollInterval: 200 * time.Millisecond,
		stopCh:       make(chan struct{}),
	}
}

// Start launches the pool's threads.
func (p *Pool) Start() {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.runThread()
	}
}

func (p *Pool) runThread() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		case t, ok := <-p.tasks:
			if !ok {
				return
			}
			p.execute(t)
		}
	}
}

func (p *Pool) execute(t *task.Task) {
	atomic.AddInt32(&p.activeCount, 1)
	defer atomic.AddInt32(&p.activeCount, -1)

	ctx := &task.ExecutionContext{TaskID: t.ID, WorkerID: p.workerID}
	result := p.executor.Execute(t, ctx)

	if !p.sink.Publish(result) {
		fallback := task.NewFailedResult(t.ID, result.StartedAt, "output queue unavailable", map[string]interface{}{
			"kind": "output_queue_publish_failed",
		})
		p.sink.Publish(fallback)
	}
}

// Submit enqueues t onto the pool's local channel. It returns false if
// the channel is full and the caller should treat this as backpressure.
func (p *Pool) Submit(t *task.Task) bool {
	select {
	case p.tasks <- t:
		return true
	default:
		return false
	}
}

// ActiveCount is a cheap snapshot of the number of threads currently
// executing a task.
func (p *Pool) ActiveCount() int {
	return int(atomic.LoadInt32(&p.activeCount))
}

// Drain signals the pool's threads to stop pulling new tasks once the
// local channel empties, and waits up to grace for them to finish,
// returning false if the grace period elapsed first.
func (p *Pool) Drain(grace time.Duration) bool {
	close(p.tasks)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(grace):
		close(p.stopCh)
		return false
	}
}
