package processpool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowcore/taskengine/internal/executor"
	"github.com/hollowcore/taskengine/internal/task"
	"github.com/hollowcore/taskengine/internal/threadpool"
	"github.com/hollowcore/taskengine/internal/workerproc"
)

type countingSink struct {
	mu     sync.Mutex
	counts map[string]int
}

func newCountingSink() *countingSink {
	return &countingSink{counts: make(map[string]int)}
}

func (s *countingSink) Publish(result *task.Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return true
}

func newBlockingWorker(id string, release <-chan struct{}, started *int32Counter) *workerproc.WorkerProcess {
	reg := executor.NewRegistry()
	reg.RegisterMain("demo/block", func(params map[string]interface{}, ctx *task.ExecutionContext) (map[string]interface{}, error) {
		started.inc()
		<-release
		return map[string]interface{}{}, nil
	})
	pool := threadpool.New(id, 10, 20, executor.New(reg), newCountingSink())
	w := workerproc.New(id, pool)
	w.Start()
	return w
}

type int32Counter struct {
	mu sync.Mutex
	n  int
}

func (c *int32Counter) inc() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
}

func (c *int32Counter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func TestSubmitRoutesByClass(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	started := &int32Counter{}

	cpuWorker := newBlockingWorker("cpu-0", release, started)
	ioWorker := newBlockingWorker("io-0", release, started)

	pool := New([]*workerproc.WorkerProcess{cpuWorker}, []*workerproc.WorkerProcess{ioWorker}, 100*time.Millisecond)

	ok := pool.Submit(context.Background(), &task.Task{ID: "t1", Class: task.ClassIO, ScriptPath: "demo/block"})
	require.True(t, ok)

	require.Eventually(t, func() bool {
		n, _ := ioWorker.ActiveThreadCount(context.Background(), 100*time.Millisecond)
		return n == 1
	}, time.Second, 10*time.Millisecond)

	n, _ := cpuWorker.ActiveThreadCount(context.Background(), 100*time.Millisecond)
	assert.Equal(t, 0, n, "an I/O-class task must never land on the CPU group")
}

func TestSubmitPicksLeastLoadedWorker(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	started := &int32Counter{}

	busyWorker := newBlockingWorker("io-0", release, started)
	idleWorker := newBlockingWorker("io-1", release, started)

	// Load io-0 first so it is no longer the least loaded.
	require.True(t, busyWorker.Submit(&task.Task{ID: "pre", ScriptPath: "demo/block"}))
	require.Eventually(t, func() bool {
		n, _ := busyWorker.ActiveThreadCount(context.Background(), 100*time.Millisecond)
		return n == 1
	}, time.Second, 10*time.Millisecond)

	pool := New(nil, []*workerproc.WorkerProcess{busyWorker, idleWorker}, 100*time.Millisecond)

	ok := pool.Submit(context.Background(), &task.Task{ID: "t1", Class: task.ClassIO, ScriptPath: "demo/block"})
	require.True(t, ok)

	require.Eventually(t, func() bool {
		n, _ := idleWorker.ActiveThreadCount(context.Background(), 100*time.Millisecond)
		return n == 1
	}, time.Second, 10*time.Millisecond)
}

func TestReachableCountsRespondingWorkers(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	started := &int32Counter{}

	w := newBlockingWorker("io-0", release, started)
	pool := New(nil, []*workerproc.WorkerProcess{w}, 100*time.Millisecond)

	reachable, total := pool.Reachable(context.Background(), task.ClassIO)
	assert.Equal(t, 1, reachable)
	assert.Equal(t, 1, total)
}
