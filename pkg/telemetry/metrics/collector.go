package metrics

import (
	"time"

	"proxima-hq/proxima/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector is the orchestrator for all Prometheus metrics in Proxima.
// It manages metric registration and provides a unified interface for
// recording metrics across all components.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	// Request metrics
	requestMetrics *RequestMetrics

	// Dispatch layer metrics (pools, pipelines, batching)
	dispatchMetrics *DispatchMetrics
}

// NewCollector creates a new metrics collector with the specified
// configuration and a private Prometheus registry.
//
// Example:
//
//	cfg := &config.MetricsConfig{
//		Enabled:   true,
//		Namespace: "proxima",
//	}
//	collector := metrics.NewCollector(cfg)
func NewCollector(cfg *config.MetricsConfig) *Collector {
	if cfg.Namespace == "" {
		cfg.Namespace = "proxima"
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		cfg.RequestDurationBuckets = config.DefaultRequestDurationBuckets()
	}
	if len(cfg.BatchSizeBuckets) == 0 {
		cfg.BatchSizeBuckets = config.DefaultBatchSizeBuckets()
	}

	registry := prometheus.NewRegistry()

	return &Collector{
		config:          cfg,
		registry:        registry,
		requestMetrics:  NewRequestMetrics(cfg, registry),
		dispatchMetrics: NewDispatchMetrics(cfg, registry),
	}
}

// RecordRequest records metrics for a completed request.
//
// Parameters:
//   - upstream: upstream name (e.g., "openai", "anthropic")
//   - status: request status ("success", "error", "rejected")
//   - duration: total request duration
//   - tokens: total token count, 0 if unknown
func (c *Collector) RecordRequest(upstream, status string, duration time.Duration, tokens int) {
	if !c.config.Enabled {
		return
	}
	c.requestMetrics.RecordRequest(upstream, status, duration, tokens)
}

// RecordBatch records metrics for a dispatched batch.
func (c *Collector) RecordBatch(upstream string, size int, wait time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.dispatchMetrics.RecordBatch(upstream, size, wait)
}

// RecordBatchFallback records a request that fell back from the batch queue
// to individual dispatch.
func (c *Collector) RecordBatchFallback(upstream string) {
	if !c.config.Enabled {
		return
	}
	c.dispatchMetrics.RecordBatchFallback(upstream)
}

// RecordQueueWait records how long a request waited for a pipeline slot.
func (c *Collector) RecordQueueWait(upstream string, wait time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.dispatchMetrics.RecordQueueWait(upstream, wait)
}

// RecordAcquireTimeout records a pool acquire that failed on timeout.
func (c *Collector) RecordAcquireTimeout(upstream string) {
	if !c.config.Enabled {
		return
	}
	c.dispatchMetrics.RecordAcquireTimeout(upstream)
}

// RecordBackpressure records a request rejected because the pipeline queue
// was full.
func (c *Collector) RecordBackpressure(upstream string) {
	if !c.config.Enabled {
		return
	}
	c.dispatchMetrics.RecordBackpressure(upstream)
}

// UpdatePoolGauges refreshes the connection pool gauges for an upstream from
// a stats snapshot.
func (c *Collector) UpdatePoolGauges(upstream string, active, idle, waiting int) {
	if !c.config.Enabled {
		return
	}
	c.dispatchMetrics.UpdatePoolGauges(upstream, active, idle, waiting)
}

// UpdatePipelineGauges refreshes the pipelining gauges for an upstream from
// a stats snapshot.
func (c *Collector) UpdatePipelineGauges(upstream string, activeRequests, queueDepth int) {
	if !c.config.Enabled {
		return
	}
	c.dispatchMetrics.UpdatePipelineGauges(upstream, activeRequests, queueDepth)
}

// UpdateBatchQueueDepth refreshes the batch queue depth gauge.
func (c *Collector) UpdateBatchQueueDepth(upstream string, depth int) {
	if !c.config.Enabled {
		return
	}
	c.dispatchMetrics.UpdateBatchQueueDepth(upstream, depth)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
