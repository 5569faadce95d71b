// Package metrics provides Prometheus metrics collection for Proxima.
//
// Collector owns a private prometheus.Registry and the metric groups for
// request handling and the dispatch layer (connection pools, pipelining,
// batching). The server records request outcomes as they complete and
// refreshes dispatch gauges from component stats snapshots.
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics)
//	collector.RecordRequest("openai", "success", 1200*time.Millisecond, 1500)
//	http.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
package metrics
