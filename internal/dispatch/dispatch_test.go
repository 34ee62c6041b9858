package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowcore/taskengine/internal/executor"
	"github.com/hollowcore/taskengine/internal/processpool"
	"github.com/hollowcore/taskengine/internal/queue"
	"github.com/hollowcore/taskengine/internal/task"
	"github.com/hollowcore/taskengine/internal/threadpool"
	"github.com/hollowcore/taskengine/internal/workerproc"
)

type noopSink struct{}

func (noopSink) Publish(*task.Result) bool { return true }

func newEchoWorker(id string) *workerproc.WorkerProcess {
	reg := executor.NewRegistry()
	reg.RegisterMain("demo/echo", func(params map[string]interface{}, ctx *task.ExecutionContext) (map[string]interface{}, error) {
		return params, nil
	})
	pool := threadpool.New(id, 2, 8, executor.New(reg), noopSink{})
	w := workerproc.New(id, pool)
	w.Start()
	return w
}

func TestDispatcherDrainsInputQueueToProcessPool(t *testing.T) {
	input := queue.New(10)
	output := queue.New(10)
	worker := newEchoWorker("cpu-0")
	pool := processpool.New([]*workerproc.WorkerProcess{worker}, nil, 100*time.Millisecond)

	d := New(2, 20*time.Millisecond, input, output, pool, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	for i := 0; i < 5; i++ {
		env := (&task.Task{ID: "t", ScriptPath: "demo/echo", Class: task.ClassCPU}).ToEnvelope()
		data, err := env.Marshal()
		require.NoError(t, err)
		require.True(t, input.TryEnqueue(data))
	}

	require.Eventually(t, func() bool { return d.DispatchedTotal() == 5 }, time.Second, 10*time.Millisecond)
}

func TestDispatcherShutdownDrainsThenReturns(t *testing.T) {
	input := queue.New(10)
	output := queue.New(10)
	worker := newEchoWorker("cpu-0")
	pool := processpool.New([]*workerproc.WorkerProcess{worker}, nil, 100*time.Millisecond)

	d := New(1, 10*time.Millisecond, input, output, pool, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	ok := d.Shutdown(time.Second)
	assert.True(t, ok)
}

func TestDispatcherReifiesWorkerUnreachableWhenNoWorkerAccepts(t *testing.T) {
	input := queue.New(10)
	output := queue.New(10)
	worker := newEchoWorker("cpu-0")
	// Only a CPU worker exists; an I/O-class task finds an empty group
	// and every dispatch attempt fails.
	pool := processpool.New([]*workerproc.WorkerProcess{worker}, nil, 100*time.Millisecond)

	d := New(1, 10*time.Millisecond, input, output, pool, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	env := (&task.Task{ID: "io-task", ScriptPath: "demo/echo", Class: task.ClassIO}).ToEnvelope()
	data, err := env.Marshal()
	require.NoError(t, err)
	require.True(t, input.TryEnqueue(data))

	var resultData []byte
	require.Eventually(t, func() bool {
		d, ok := output.TryDequeue()
		if ok {
			resultData = d
		}
		return ok
	}, time.Second, 10*time.Millisecond)

	resultEnv, err := task.UnmarshalResultEnvelope(resultData)
	require.NoError(t, err)
	result := resultEnv.ToResult()
	assert.Equal(t, "io-task", result.TaskID)
	assert.Equal(t, task.StatusFailed, result.Status)
	assert.Contains(t, result.Error, "WORKER_UNREACHABLE")
}
