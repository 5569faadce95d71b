// Package telemetry provides observability for Proxima.
//
// # Components
//
//   - logging: structured logging built on log/slog
//   - metrics: Prometheus metrics collection and the /metrics handler
//
// # Usage
//
//	logger, _ := logging.New(logging.Config{Level: "info", Format: "json"})
//	logger.Info("request dispatched", "upstream", "openai", "duration_ms", 123)
//
//	collector := metrics.NewCollector(metrics.Config{Namespace: "proxima"})
//	collector.RecordRequest("openai", "success", time.Second)
//
// Both components are cheap enough to leave enabled in production; disabled
// log levels short-circuit before any allocation.
package telemetry
