// Package workerproc implements the WorkerProcess abstraction: a
// goroutine-isolated worker unit hosting a ThreadPool, reachable only
// through a command channel and a status reply channel — the in-process
// stand-in for the spec's child-process command/status pipes.
package workerproc

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hollowcore/taskengine/internal/task"
	"github.com/hollowcore/taskengine/internal/threadpool"
)

// commandKind identifies the kind of envelope sent on the command channel.
type commandKind int

const (
	cmdExecute commandKind = iota
	cmdStatus
	cmdStop
)

type command struct {
	kind   commandKind
	task   *task.Task
	graceful bool
	grace  time.Duration
	reply  chan Status
	done   chan struct{}
}

// Status is the reply carried on the status channel.
type Status struct {
	ActiveThreads int
}

// State is the lifecycle state of a WorkerProcess.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateShuttingDown
	StateTerminated
)

// WorkerProcess hosts one ThreadPool and communicates with the parent
// exclusively through its command channel; the status channel is
// realized as a reply channel carried in each status command, matching
// the single-producer/single-consumer discipline of the spec's pipes.
type WorkerProcess struct {
	ID    string
	pool  *threadpool.Pool
	cmdCh chan command

	state atomic.Int32
}

// New creates a WorkerProcess hosting pool, identified by id.
func New(id string, pool *threadpool.Pool) *WorkerProcess {
	return &WorkerProcess{
		ID:    id,
		pool:  pool,
		cmdCh: make(chan command, 8),
	}
}

// Start launches the worker's ThreadPool and its single dedicated
// command-loop goroutine.
func (w *WorkerProcess) Start() {
	w.pool.Start()
	w.state.Store(int32(StateIdle))
	go w.loop()
}

func (w *WorkerProcess) loop() {
	for cmd := range w.cmdCh {
		switch cmd.kind {
		case cmdExecute:
			w.state.Store(int32(StateRunning))
			// A full local channel is backpressure: hold the command
			// loop until a thread frees a slot rather than drop the task.
			for !w.pool.Submit(cmd.task) {
				time.Sleep(time.Millisecond)
			}
		case cmdStatus:
			cmd.reply <- Status{ActiveThreads: w.pool.ActiveCount()}
		case cmdStop:
			w.state.Store(int32(StateShuttingDown))
			grace := cmd.grace
			if !cmd.graceful {
				grace = 0
			}
			w.pool.Drain(grace)
			w.state.Store(int32(StateTerminated))
			close(cmd.done)
			return
		}
	}
}

// Submit writes an EXECUTE envelope onto the command channel. It
// reports false if the command channel itself is saturated — a signal
// that this worker is unreachable for new work.
func (w *WorkerProcess) Submit(t *task.Task) bool {
	select {
	case w.cmdCh <- command{kind: cmdExecute, task: t}:
		return true
	default:
		return false
	}
}

// ActiveThreadCount writes a STATUS envelope and polls the reply with a
// bounded timeout, returning the observed count or (0, false) on
// timeout/error — the safe pessimistic fallback the ProcessPool relies
// on for least-loaded routing.
func (w *WorkerProcess) ActiveThreadCount(ctx context.Context, timeout time.Duration) (int, bool) {
	reply := make(chan Status, 1)

	select {
	case w.cmdCh <- command{kind: cmdStatus, reply: reply}:
	default:
		return 0, false
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case status := <-reply:
		return status.ActiveThreads, true
	case <-ctx.Done():
		return 0, false
	}
}

// Stop writes a STOP envelope and blocks until the worker has drained
// and terminated, up to grace; it reports false if grace elapsed first.
// A non-graceful stop does not wait for queued tasks: the pool's threads
// stop taking them at once. A task already executing is not interrupted.
func (w *WorkerProcess) Stop(graceful bool, grace time.Duration) bool {
	done := make(chan struct{})

	select {
	case w.cmdCh <- command{kind: cmdStop, graceful: graceful, grace: grace, done: done}:
	default:
		return false
	}

	select {
	case <-done:
		return true
	case <-time.After(grace):
		return false
	}
}

// State reports the worker's current lifecycle state. Safe for
// concurrent use with the command-loop goroutine.
func (w *WorkerProcess) State() State {
	return State(w.state.Load())
}
