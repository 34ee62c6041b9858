// Package processpool implements the ProcessPool: two groups of
// WorkerProcesses (CPU and I/O) with least-loaded routing based on a
// live, IPC-style status poll of each worker in the target group.
package processpool

import (
	"context"
	"time"

	"github.com/hollowcore/taskengine/internal/task"
	"github.com/hollowcore/taskengine/internal/workerproc"
)

// Pool holds the two immutable worker groups and routes tasks to the
// least-loaded worker in the group matching a task's class.
type Pool struct {
	cpuWorkers []*workerproc.WorkerProcess
	ioWorkers  []*workerproc.WorkerProcess

	statusTimeout time.Duration
}

// New creates a ProcessPool from already-started worker slices.
func New(cpuWorkers, ioWorkers []*workerproc.WorkerProcess, statusTimeout time.Duration) *Pool {
	if statusTimeout <= 0 {
		statusTimeout = 100 * time.Millisecond
	}
	return &Pool{cpuWorkers: cpuWorkers, ioWorkers: ioWorkers, statusTimeout: statusTimeout}
}

func (p *Pool) group(class task.Class) []*workerproc.WorkerProcess {
	if class == task.ClassCPU {
		return p.cpuWorkers
	}
	return p.ioWorkers
}

// Submit selects the worker in t's class group with the minimum
// reported active-thread count (ties broken by lowest index) and
// dispatches to it. It reports false if the group is empty or every
// worker in it rejected the dispatch.
func (p *Pool) Submit(ctx context.Context, t *task.Task) bool {
	group := p.group(t.Class)
	if len(group) == 0 {
		return false
	}

	best := p.leastLoaded(ctx, group)
	if group[best].Submit(t) {
		return true
	}

	// The chosen worker's command channel was saturated; fail over to
	// the next worker in index order rather than dropping the task.
	for i, w := range group {
		if i == best {
			continue
		}
		if w.Submit(t) {
			return true
		}
	}
	return false
}

// leastLoaded queries every worker in group for its active-thread count
// and returns the index of the minimum, with a safe-pessimistic
// fallback of 0 for any worker whose poll times out — an unresponsive
// worker should receive work so that liveness problems surface rather
// than being silently routed around.
func (p *Pool) leastLoaded(ctx context.Context, group []*workerproc.WorkerProcess) int {
	bestIdx := 0
	bestLoad := -1

	for i, w := range group {
		load, ok := w.ActiveThreadCount(ctx, p.statusTimeout)
		if !ok {
			load = 0
		}
		if bestLoad == -1 || load < bestLoad {
			bestLoad = load
			bestIdx = i
		}
	}
	return bestIdx
}

// GroupSizes returns (cpuWorkerCount, ioWorkerCount), used by status and
// health reporting.
func (p *Pool) GroupSizes() (int, int) {
	return len(p.cpuWorkers), len(p.ioWorkers)
}

// Reachable reports how many of the given class's workers answered a
// status poll within the configured timeout, for health checks.
func (p *Pool) Reachable(ctx context.Context, class task.Class) (reachable, total int) {
	group := p.group(class)
	total = len(group)
	for _, w := range group {
		if _, ok := w.ActiveThreadCount(ctx, p.statusTimeout); ok {
			reachable++
		}
	}
	return reachable, total
}

// WorkerLoad is a point-in-time status poll result for one worker
// process, used for metrics reporting.
type WorkerLoad struct {
	Class   task.Class
	ID      string
	Active  int
	Healthy bool
}

// Snapshot polls every worker in both groups for its active-thread
// count, for periodic metrics sampling. A worker whose poll times out
// is reported with Healthy=false and Active=0.
func (p *Pool) Snapshot(ctx context.Context) []WorkerLoad {
	loads := make([]WorkerLoad, 0, len(p.cpuWorkers)+len(p.ioWorkers))
	for _, w := range p.cpuWorkers {
		active, ok := w.ActiveThreadCount(ctx, p.statusTimeout)
		loads = append(loads, WorkerLoad{Class: task.ClassCPU, ID: w.ID, Active: active, Healthy: ok})
	}
	for _, w := range p.ioWorkers {
		active, ok := w.ActiveThreadCount(ctx, p.statusTimeout)
		loads = append(loads, WorkerLoad{Class: task.ClassIO, ID: w.ID, Active: active, Healthy: ok})
	}
	return loads
}

// Stop stops every worker in both groups, graceful or forced, up to the
// given per-worker grace interval.
func (p *Pool) Stop(graceful bool, grace time.Duration) {
	for _, w := range p.cpuWorkers {
		w.Stop(graceful, grace)
	}
	for _, w := range p.ioWorkers {
		w.Stop(graceful, grace)
	}
}
