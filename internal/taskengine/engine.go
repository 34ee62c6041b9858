// Package taskengine provides the public façade for the task-execution
// engine: submission, result collection, status, health, and graceful
// shutdown across the dispatcher, process pool, and result cache.
package taskengine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/hollowcore/taskengine/internal/dispatch"
	"github.com/hollowcore/taskengine/internal/executor"
	"github.com/hollowcore/taskengine/internal/platform/config"
	"github.com/hollowcore/taskengine/internal/platform/health"
	"github.com/hollowcore/taskengine/internal/platform/logger"
	"github.com/hollowcore/taskengine/internal/platform/metrics"
	"github.com/hollowcore/taskengine/internal/processpool"
	"github.com/hollowcore/taskengine/internal/queue"
	"github.com/hollowcore/taskengine/internal/resultcache"
	"github.com/hollowcore/taskengine/internal/task"
	"github.com/hollowcore/taskengine/internal/taskengine/errs"
	"github.com/hollowcore/taskengine/internal/threadpool"
	"github.com/hollowcore/taskengine/internal/workerproc"
)

var errQueueStillFull = errors.New("input queue still full")

// Engine is the public façade over the scheduling and dispatch
// substrate. It is safe for concurrent use by multiple goroutines.
type Engine struct {
	cfg      *config.Config
	log      logger.Logger
	metrics  *metrics.Metrics
	registry *executor.Registry

	mu    sync.RWMutex
	state RunState

	input  *queue.Queue
	output *queue.Queue
	cache  *resultcache.Cache
	pending *task.PendingSet
	pool   *processpool.Pool
	dispatcher *dispatch.Dispatcher
	health *health.Handler

	cpuWorkers []*workerproc.WorkerProcess
	ioWorkers  []*workerproc.WorkerProcess

	ctx    context.Context
	cancel context.CancelFunc
	sampleWG sync.WaitGroup
}

// New creates an Engine from cfg. registry supplies the script entry
// points the Executor resolves at execution time; log and m may be nil.
func New(cfg *config.Config, log logger.Logger, m *metrics.Metrics, registry *executor.Registry) *Engine {
	return &Engine{
		cfg:      cfg,
		log:      log,
		metrics:  m,
		registry: registry,
		state:    RunStateStopped,
	}
}

// Start is an idempotent transition from Stopped to Running. It fails
// if the engine is already running.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == RunStateRunning {
		return errs.ErrAlreadyRunning
	}

	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.input = queue.New(e.cfg.Queues.InputSize)
	e.output = queue.New(e.cfg.Queues.OutputSize)
	e.cache = resultcache.New(e.cfg.Cache.ShardCount, e.cfg.Cache.MaxPerShard)
	e.pending = task.NewPendingSet()

	sink := &outputSink{output: e.output}

	e.cpuWorkers = e.buildWorkers(task.ClassCPU, e.cfg.Pools.CPUBoundCount, e.cfg.Pools.CPUBoundTaskLimit, sink)
	e.ioWorkers = e.buildWorkers(task.ClassIO, e.cfg.Pools.IOBoundCount, e.cfg.Pools.IOBoundTaskLimit, sink)

	e.pool = processpool.New(e.cpuWorkers, e.ioWorkers, e.cfg.Dispatch.WorkerStatusTimeout)
	e.dispatcher = dispatch.New(e.cfg.Dispatch.QueueThreadCount, e.cfg.Dispatch.QueuePollTimeout, e.input, e.output, e.pool, e.metrics)
	e.dispatcher.Start(e.ctx)

	e.health = health.NewHandler(e.cfg.Service.Name, e.cfg.Version)
	e.wireHealthChecks()

	e.state = RunStateRunning

	if e.metrics != nil {
		e.sampleWG.Add(1)
		go e.sampleMetrics(e.ctx)
	}

	if e.log != nil {
		e.log.Info("engine started",
			"cpu_workers", len(e.cpuWorkers),
			"io_workers", len(e.ioWorkers),
		)
	}
	return nil
}

func (e *Engine) buildWorkers(class task.Class, count, taskLimit int, sink *outputSink) []*workerproc.WorkerProcess {
	prefix := "cpu"
	if class == task.ClassIO {
		prefix = "io"
	}

	workers := make([]*workerproc.WorkerProcess, 0, count)
	for i := 0; i < count; i++ {
		id := fmt.Sprintf("%s-%d", prefix, i)
		exec := executor.New(e.registry)
		pool := threadpool.New(id, taskLimit, taskLimit*4, exec, sink)
		wp := workerproc.New(id, pool)
		wp.Start()
		workers = append(workers, wp)
	}
	return workers
}

// Shutdown signals shutdown, waits for dispatcher threads and process
// pool workers up to the configured grace interval. A worker whose
// threads have not finished by then stops taking queued tasks; a script
// that is already executing is not interrupted or killed. Calling
// Shutdown when already stopped is a no-op.
func (e *Engine) Shutdown(graceful bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != RunStateRunning {
		return nil
	}

	grace := e.cfg.Dispatch.ShutdownTimeout
	e.dispatcher.Shutdown(grace)
	e.pool.Stop(graceful, grace)
	e.cancel()
	e.sampleWG.Wait()

	e.state = RunStateStopped

	if e.log != nil {
		e.log.Info("engine stopped", "graceful", graceful)
	}
	return nil
}

// SubmitTask rejects if the engine is Stopped. It registers the task id
// in the pending set, serializes the task, and pushes the envelope to
// the InputQueue, retrying up to max_queue_full_retries times with a
// bounded exponential backoff before failing with ErrQueueFull.
func (e *Engine) SubmitTask(t *task.Task) (string, error) {
	e.mu.RLock()
	state := e.state
	e.mu.RUnlock()

	if state != RunStateRunning {
		return "", errs.ErrEngineNotRunning
	}

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.CreatedAt = time.Now()

	e.pending.Add(t)

	data, err := t.ToEnvelope().Marshal()
	if err != nil {
		e.pending.Remove(t.ID)
		return "", errs.ErrSerializationFailed
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	bounded := backoff.WithMaxRetries(b, uint64(e.cfg.Queues.MaxQueueFullRetries))

	accepted := false
	_ = backoff.Retry(func() error {
		if e.input.TryEnqueue(data) {
			accepted = true
			return nil
		}
		return errQueueStillFull
	}, bounded)

	if !accepted {
		e.pending.Remove(t.ID)
		return "", errs.ErrQueueFull
	}

	return t.ID, nil
}

// GetResult first checks the ShardedResultCache, then drains the
// OutputQueue with short polls until the matching task id is seen or
// timeout elapses. A timeout returns (nil, nil), not an error. The
// cache is rechecked whenever a poll comes back empty, not just at
// entry, so a concurrent collector that routed this id's Result into
// the cache (see the mismatch branch below) is still observed once the
// OutputQueue goes quiet rather than starving this call until its own
// timeout.
func (e *Engine) GetResult(ctx context.Context, taskID string, timeout time.Duration) (*task.Result, error) {
	e.mu.RLock()
	state := e.state
	e.mu.RUnlock()

	if state != RunStateRunning {
		return nil, errs.ErrEngineNotRunning
	}

	if result, ok := e.cacheGet(taskID, true); ok {
		return result, nil
	}

	poll := e.cfg.Dispatch.QueuePollTimeout
	deadline := time.Now().Add(timeout)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			if e.log != nil {
				e.log.Debug("get_result deadline elapsed", "task_id", taskID, "reason", errs.ErrTimeout.Error())
			}
			return nil, nil
		}

		interval := poll
		if remaining < interval {
			interval = remaining
		}

		data, ok := e.output.Dequeue(ctx, interval)
		if !ok {
			if result, ok := e.cacheGet(taskID, false); ok {
				return result, nil
			}
			continue
		}

		env, err := task.UnmarshalResultEnvelope(data)
		if err != nil {
			continue
		}

		result := env.ToResult()
		e.recordCompletion(result)

		if result.TaskID == taskID {
			e.pending.Remove(taskID)
			return result, nil
		}

		evicted := e.cache.Put(result)
		if evicted && e.metrics != nil {
			e.metrics.CacheEvictions.Inc()
		}
	}
}

// cacheGet looks up taskID in the result cache, removing it from the
// pending set on a hit. trackMetrics suppresses the hit/miss counters
// for recheck passes inside GetResult's poll loop, which are not a
// fresh collection attempt.
func (e *Engine) cacheGet(taskID string, trackMetrics bool) (*task.Result, bool) {
	result, ok := e.cache.Get(taskID)
	if trackMetrics && e.metrics != nil {
		if ok {
			e.metrics.CacheHits.Inc()
		} else {
			e.metrics.CacheMisses.Inc()
		}
	}
	if ok {
		e.pending.Remove(taskID)
	}
	return result, ok
}

// recordCompletion reports a Result's class/status/duration to metrics
// exactly once, at the point the Result is first observed off the
// OutputQueue (whether delivered directly or routed into the cache) —
// never again on a later cache hit for the same id.
func (e *Engine) recordCompletion(result *task.Result) {
	if e.metrics == nil {
		return
	}

	class := "unknown"
	if t, ok := e.pending.Peek(result.TaskID); ok {
		class = string(t.Class)
	}

	e.metrics.TasksTotal.WithLabelValues(class, string(result.Status)).Inc()
	if !result.StartedAt.IsZero() {
		e.metrics.TaskDuration.WithLabelValues(class).Observe(result.CompletedAt.Sub(result.StartedAt).Seconds())
	}
}

// GetStatus aggregates component status objects. Safe to call
// concurrently with submission and collection.
func (e *Engine) GetStatus() SystemStatus {
	e.mu.RLock()
	state := e.state
	e.mu.RUnlock()

	status := SystemStatus{State: state}
	if state != RunStateRunning {
		return status
	}

	cpu, io := e.pool.GroupSizes()
	status.PendingCount = e.pending.Len()
	status.InputQueue = e.input.Stats()
	status.OutputQueue = e.output.Stats()
	status.CacheSize = e.cache.Size()
	status.Dispatched = e.dispatcher.DispatchedTotal()
	status.CPUWorkers = cpu
	status.IOWorkers = io
	status.Components = e.componentStatuses()
	return status
}

// GetComponentStatus returns the status of a single named component.
func (e *Engine) GetComponentStatus(name string) (ComponentStatus, bool) {
	for _, c := range e.componentStatuses() {
		if c.Name == name {
			return c, true
		}
	}
	return ComponentStatus{}, false
}

func (e *Engine) componentStatuses() []ComponentStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.state != RunStateRunning {
		return nil
	}

	cpu, io := e.pool.GroupSizes()
	return []ComponentStatus{
		{Name: "input_queue", Healthy: true, Detail: map[string]interface{}{"stats": e.input.Stats()}},
		{Name: "output_queue", Healthy: true, Detail: map[string]interface{}{"stats": e.output.Stats()}},
		{Name: "result_cache", Healthy: true, Detail: map[string]interface{}{"size": e.cache.Size()}},
		{Name: "dispatcher", Healthy: true, Detail: map[string]interface{}{"dispatched_total": e.dispatcher.DispatchedTotal()}},
		{Name: "process_pool", Healthy: true, Detail: map[string]interface{}{"cpu_workers": cpu, "io_workers": io}},
	}
}

// GetHealth runs the registered self-checks (queue saturation, worker
// reachability) and returns the aggregate verdict.
func (e *Engine) GetHealth(ctx context.Context) SystemHealth {
	e.mu.RLock()
	state := e.state
	h := e.health
	e.mu.RUnlock()

	if state != RunStateRunning {
		return SystemHealth{State: HealthUnhealthy, Checks: map[string]string{"engine": "not running"}}
	}

	resp := h.Check(ctx)
	result := SystemHealth{State: HealthHealthy, Checks: make(map[string]string, len(resp.Checks))}
	if resp.Status == health.StatusUnhealthy {
		result.State = HealthUnhealthy
	}
	for name, c := range resp.Checks {
		result.Checks[name] = string(c.Status)
	}
	return result
}

func (e *Engine) wireHealthChecks() {
	e.health.AddCheck("input_queue_saturation", health.QueueSaturationChecker(func() (int, int) {
		return e.input.Len(), e.cfg.Queues.InputSize
	}, 0.95))
	e.health.AddCheck("cpu_workers_reachable", health.WorkerReachabilityChecker(func(ctx context.Context) (int, int) {
		return e.pool.Reachable(ctx, task.ClassCPU)
	}))
	e.health.AddCheck("io_workers_reachable", health.WorkerReachabilityChecker(func(ctx context.Context) (int, int) {
		return e.pool.Reachable(ctx, task.ClassIO)
	}))
}

// sampleMetrics periodically samples every engine component's
// cumulative counters into Prometheus: queue depth and enqueue/dequeue/
// drop totals (derived as deltas against the previous tick, since
// queue.Queue itself only exposes a running Stats() snapshot),
// dispatched-task total, per-worker active-thread gauges and status-poll
// timeouts (via a live ProcessPool.Snapshot poll), cache shard sizes,
// and goroutine count.
func (e *Engine) sampleMetrics(ctx context.Context) {
	defer e.sampleWG.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var prevInput, prevOutput queue.Stats
	var prevDispatched int64

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			inputStats := e.input.Stats()
			outputStats := e.output.Stats()

			e.metrics.QueueDepth.WithLabelValues("input").Set(float64(inputStats.Depth))
			e.metrics.QueueDepth.WithLabelValues("output").Set(float64(outputStats.Depth))
			e.metrics.QueueEnqueuedTotal.WithLabelValues("input").Add(float64(inputStats.Enqueued - prevInput.Enqueued))
			e.metrics.QueueDequeuedTotal.WithLabelValues("input").Add(float64(inputStats.Dequeued - prevInput.Dequeued))
			e.metrics.QueueDroppedTotal.WithLabelValues("input").Add(float64(inputStats.Dropped - prevInput.Dropped))
			e.metrics.QueueEnqueuedTotal.WithLabelValues("output").Add(float64(outputStats.Enqueued - prevOutput.Enqueued))
			e.metrics.QueueDequeuedTotal.WithLabelValues("output").Add(float64(outputStats.Dequeued - prevOutput.Dequeued))
			e.metrics.QueueDroppedTotal.WithLabelValues("output").Add(float64(outputStats.Dropped - prevOutput.Dropped))
			prevInput, prevOutput = inputStats, outputStats

			dispatched := e.dispatcher.DispatchedTotal()
			e.metrics.DispatchedTotal.Add(float64(dispatched - prevDispatched))
			prevDispatched = dispatched

			for i, size := range e.cache.ShardSizes() {
				e.metrics.CacheSize.WithLabelValues(fmt.Sprintf("%d", i)).Set(float64(size))
			}

			snapCtx, cancel := context.WithTimeout(ctx, e.cfg.Dispatch.WorkerStatusTimeout)
			for _, load := range e.pool.Snapshot(snapCtx) {
				e.metrics.ActiveThreads.WithLabelValues(string(load.Class), load.ID).Set(float64(load.Active))
				if !load.Healthy {
					e.metrics.WorkerStatusTimeout.WithLabelValues(string(load.Class), load.ID).Inc()
				}
			}
			cancel()

			e.metrics.SystemGoroutines.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Run opens the engine, invokes fn, and gracefully shuts the engine
// down on return — the scoped-resource form where enter starts and
// exit shuts down gracefully.
func Run(cfg *config.Config, log logger.Logger, m *metrics.Metrics, registry *executor.Registry, fn func(*Engine) error) error {
	e := New(cfg, log, m, registry)
	if err := e.Start(); err != nil {
		return err
	}
	defer e.Shutdown(true)
	return fn(e)
}
