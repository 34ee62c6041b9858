// Package metrics exposes Prometheus instrumentation for the task engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Queue metrics
	QueueEnqueuedTotal *prometheus.CounterVec
	QueueDequeuedTotal *prometheus.CounterVec
	QueueDroppedTotal  *prometheus.CounterVec
	QueueDepth         *prometheus.GaugeVec

	// Dispatch metrics
	DispatchedTotal     prometheus.Counter
	DispatchDuration    prometheus.Histogram
	WorkerStatusTimeout *prometheus.CounterVec

	// Worker/pool metrics
	ActiveThreads *prometheus.GaugeVec
	TasksTotal    *prometheus.CounterVec
	TaskDuration  *prometheus.HistogramVec

	// Result cache metrics
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheEvictions prometheus.Counter
	CacheSize      *prometheus.GaugeVec

	// System metrics
	SystemGoroutines prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics under namespace.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		QueueEnqueuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queue_enqueued_total",
				Help:      "Total number of envelopes enqueued",
			},
			[]string{"queue"},
		),
		QueueDequeuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queue_dequeued_total",
				Help:      "Total number of envelopes dequeued",
			},
			[]string{"queue"},
		),
		QueueDroppedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queue_dropped_total",
				Help:      "Total number of envelopes rejected because the queue was full",
			},
			[]string{"queue"},
		),
		QueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_depth",
				Help:      "Current number of envelopes queued",
			},
			[]string{"queue"},
		),

		DispatchedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatched_total",
				Help:      "Total number of tasks handed to the process pool",
			},
		),
		DispatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Time to route a task to a worker process, including the load poll",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
		WorkerStatusTimeout: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "worker_status_timeout_total",
				Help:      "Total number of worker status polls that hit the timeout",
			},
			[]string{"class", "worker_id"},
		),

		ActiveThreads: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_threads",
				Help:      "Active executor threads per worker process",
			},
			[]string{"class", "worker_id"},
		),
		TasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_total",
				Help:      "Total number of tasks completed, by class and status",
			},
			[]string{"class", "status"},
		),
		TaskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Task execution duration in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"class"},
		),

		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "result_cache_hits_total",
				Help:      "Total number of get_result calls served from the cache",
			},
		),
		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "result_cache_misses_total",
				Help:      "Total number of get_result calls that missed the cache",
			},
		),
		CacheEvictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "result_cache_evictions_total",
				Help:      "Total number of LRU evictions from the result cache",
			},
		),
		CacheSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "result_cache_shard_size",
				Help:      "Current number of entries held in a cache shard",
			},
			[]string{"shard"},
		),

		SystemGoroutines: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "system_goroutines",
				Help:      "Number of goroutines",
			},
		),
	}

	m.Register()

	return m
}

// Register registers all metrics with Prometheus.
func (m *Metrics) Register() {
	prometheus.MustRegister(
		m.QueueEnqueuedTotal,
		m.QueueDequeuedTotal,
		m.QueueDroppedTotal,
		m.QueueDepth,
		m.DispatchedTotal,
		m.DispatchDuration,
		m.WorkerStatusTimeout,
		m.ActiveThreads,
		m.TasksTotal,
		m.TaskDuration,
		m.CacheHits,
		m.CacheMisses,
		m.CacheEvictions,
		m.CacheSize,
		m.SystemGoroutines,
	)
}

// Handler returns the Prometheus scrape HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
