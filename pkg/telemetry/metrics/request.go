package metrics

import (
	"time"

	"proxima-hq/proxima/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics tracks metrics related to request processing.
//
// Metrics:
//   - proxima_requests_total: total request count by upstream and status
//   - proxima_request_duration_seconds: request duration histogram
//   - proxima_request_tokens_total: total tokens processed
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec
}

// NewRequestMetrics creates and registers request metrics with the provided
// registry.
func NewRequestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "requests_total",
				Help:      "Total number of requests processed",
			},
			[]string{"upstream", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of requests in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"upstream"},
		),

		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "request_tokens_total",
				Help:      "Total number of tokens processed",
			},
			[]string{"upstream"},
		),
	}

	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.tokensTotal,
	)

	return rm
}

// RecordRequest records metrics for a completed request.
func (rm *RequestMetrics) RecordRequest(upstream, status string, duration time.Duration, tokens int) {
	rm.requestsTotal.WithLabelValues(upstream, status).Inc()
	rm.requestDuration.WithLabelValues(upstream).Observe(duration.Seconds())

	if tokens > 0 {
		rm.tokensTotal.WithLabelValues(upstream).Add(float64(tokens))
	}
}
