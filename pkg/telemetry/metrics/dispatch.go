package metrics

import (
	"time"

	"proxima-hq/proxima/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics tracks the dispatch layer: connection pools, pipelining
// queues, and request batching.
//
// Metrics:
//   - proxima_pool_connections: connections by upstream and state gauge
//   - proxima_pool_acquire_timeouts_total: acquires failed on timeout
//   - proxima_pipeline_active_requests: in-flight pipelined requests gauge
//   - proxima_pipeline_queue_depth: queued requests gauge
//   - proxima_pipeline_queue_wait_seconds: time spent waiting for a slot
//   - proxima_pipeline_backpressure_total: rejections from a full queue
//   - proxima_batch_size: dispatched batch size histogram
//   - proxima_batches_total: total batches dispatched
//   - proxima_batch_wait_seconds: time requests spent in the batch window
//   - proxima_batch_fallbacks_total: batch queue overflows served individually
//   - proxima_batch_queue_depth: waiting batchable requests gauge
type DispatchMetrics struct {
	poolConnections     *prometheus.GaugeVec
	poolAcquireTimeouts *prometheus.CounterVec

	pipelineActive       *prometheus.GaugeVec
	pipelineQueueDepth   *prometheus.GaugeVec
	pipelineQueueWait    *prometheus.HistogramVec
	pipelineBackpressure *prometheus.CounterVec

	batchSize       *prometheus.HistogramVec
	batchesTotal    *prometheus.CounterVec
	batchWait       *prometheus.HistogramVec
	batchFallbacks  *prometheus.CounterVec
	batchQueueDepth *prometheus.GaugeVec
}

// NewDispatchMetrics creates and registers dispatch metrics with the
// provided registry.
func NewDispatchMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *DispatchMetrics {
	dm := &DispatchMetrics{
		poolConnections: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "pool_connections",
				Help:      "Connection pool occupancy by state",
			},
			[]string{"upstream", "state"},
		),

		poolAcquireTimeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "pool_acquire_timeouts_total",
				Help:      "Total connection acquires that failed on timeout",
			},
			[]string{"upstream"},
		),

		pipelineActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "pipeline_active_requests",
				Help:      "In-flight pipelined requests",
			},
			[]string{"upstream"},
		),

		pipelineQueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "pipeline_queue_depth",
				Help:      "Requests waiting for a pipeline slot",
			},
			[]string{"upstream"},
		),

		pipelineQueueWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "pipeline_queue_wait_seconds",
				Help:      "Time requests spent waiting for a pipeline slot",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"upstream"},
		),

		pipelineBackpressure: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "pipeline_backpressure_total",
				Help:      "Requests rejected because the pipeline queue was full",
			},
			[]string{"upstream"},
		),

		batchSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "batch_size",
				Help:      "Number of requests per dispatched batch",
				Buckets:   cfg.BatchSizeBuckets,
			},
			[]string{"upstream"},
		),

		batchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "batches_total",
				Help:      "Total batches dispatched",
			},
			[]string{"upstream"},
		),

		batchWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "batch_wait_seconds",
				Help:      "Time requests spent waiting in the batch window",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
			},
			[]string{"upstream"},
		),

		batchFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "batch_fallbacks_total",
				Help:      "Batchable requests served individually due to queue overflow",
			},
			[]string{"upstream"},
		),

		batchQueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "batch_queue_depth",
				Help:      "Requests waiting for a batch window",
			},
			[]string{"upstream"},
		),
	}

	registry.MustRegister(
		dm.poolConnections,
		dm.poolAcquireTimeouts,
		dm.pipelineActive,
		dm.pipelineQueueDepth,
		dm.pipelineQueueWait,
		dm.pipelineBackpressure,
		dm.batchSize,
		dm.batchesTotal,
		dm.batchWait,
		dm.batchFallbacks,
		dm.batchQueueDepth,
	)

	return dm
}

// RecordBatch records a dispatched batch.
func (dm *DispatchMetrics) RecordBatch(upstream string, size int, wait time.Duration) {
	dm.batchesTotal.WithLabelValues(upstream).Inc()
	dm.batchSize.WithLabelValues(upstream).Observe(float64(size))
	dm.batchWait.WithLabelValues(upstream).Observe(wait.Seconds())
}

// RecordBatchFallback records a batch queue overflow served individually.
func (dm *DispatchMetrics) RecordBatchFallback(upstream string) {
	dm.batchFallbacks.WithLabelValues(upstream).Inc()
}

// RecordQueueWait records a pipeline queue wait.
func (dm *DispatchMetrics) RecordQueueWait(upstream string, wait time.Duration) {
	dm.pipelineQueueWait.WithLabelValues(upstream).Observe(wait.Seconds())
}

// RecordAcquireTimeout records a pool acquire timeout.
func (dm *DispatchMetrics) RecordAcquireTimeout(upstream string) {
	dm.poolAcquireTimeouts.WithLabelValues(upstream).Inc()
}

// RecordBackpressure records a pipeline queue rejection.
func (dm *DispatchMetrics) RecordBackpressure(upstream string) {
	dm.pipelineBackpressure.WithLabelValues(upstream).Inc()
}

// UpdatePoolGauges sets the pool occupancy gauges.
func (dm *DispatchMetrics) UpdatePoolGauges(upstream string, active, idle, waiting int) {
	dm.poolConnections.WithLabelValues(upstream, "active").Set(float64(active))
	dm.poolConnections.WithLabelValues(upstream, "idle").Set(float64(idle))
	dm.poolConnections.WithLabelValues(upstream, "waiting").Set(float64(waiting))
}

// UpdatePipelineGauges sets the pipeline occupancy gauges.
func (dm *DispatchMetrics) UpdatePipelineGauges(upstream string, activeRequests, queueDepth int) {
	dm.pipelineActive.WithLabelValues(upstream).Set(float64(activeRequests))
	dm.pipelineQueueDepth.WithLabelValues(upstream).Set(float64(queueDepth))
}

// UpdateBatchQueueDepth sets the batch queue depth gauge.
func (dm *DispatchMetrics) UpdateBatchQueueDepth(upstream string, depth int) {
	dm.batchQueueDepth.WithLabelValues(upstream).Set(float64(depth))
}
