package workerproc

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
)

type fakeSink struct {
	mu      sync.Mutex
	results []*task.Result
}

func (s *fakeSink) Publish(result *task.Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return true
}

func newBlockingWorker(release <-chan struct{}) *WorkerProcess {
	reg := executor.NewRegistry()
	reg.RegisterMain("demo/block", func(params map[string]interface{}, ctx *task.ExecutionContext) (map[string]interface{}, error) {
		<-release
		return map[string]interface{}{}, nil
	})
	pool := threadpool.New("io-0", 1, 2, executor.New(reg), &fakeSink{})
	return New("io-0", pool)
}

func TestWorkerProcessStatusReflectsActiveThreads(t *testing.T) {
	release := make(chan struct{})
	w := newBlockingWorker(release)
	w.Start()
	defer func() {
		close(release)
		w.Stop(true, time.Second)
	}()

	count, ok := w.ActiveThreadCount(context.Background(), 100*time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, 0, count)

	require.True(t, w.Submit(&task.Task{ID: "t", ScriptPath: "demo/block"}))

	require.Eventually(t, func() bool {
		count, ok := w.ActiveThreadCount(context.Background(), 100*time.Millisecond)
		return ok && count == 1
	}, time.Second, 10*time.Millisecond)
}

func TestWorkerProcessStopDrainsAndTerminates(t *testing.T) {
	release := make(chan struct{})
	close(release) // nothing to block on
	w := newBlockingWorker(release)
	w.Start()

	ok := w.Stop(true, time.Second)
	assert.True(t, ok)
	assert.Equal(t, StateTerminated, w.State())
}
