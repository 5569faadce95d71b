package pool

import (
	"time"

	"proxima-hq/proxima/pkg/dispatch"
)

// Stats is a point-in-time snapshot of pool state and counters.
type Stats struct {
	// BaseAddress is the upstream address the pool serves.
	BaseAddress string `json:"base_address"`

	// ActiveConnections is the number of checked-out connections.
	ActiveConnections int `json:"active_connections"`

	// IdleConnections is the number of connections in the idle set.
	IdleConnections int `json:"idle_connections"`

	// TotalConnections is the current pool size.
	TotalConnections int `json:"total_connections"`

	// MaxConnections is the configured pool cap.
	MaxConnections int `json:"max_connections"`

	// WaitingAcquirers is the current wait-list depth.
	WaitingAcquirers int `json:"waiting_acquirers"`

	// TotalRequests counts every Request call, successful or not.
	TotalRequests int64 `json:"total_requests"`

	// SuccessfulRequests counts Request calls whose executor succeeded.
	SuccessfulRequests int64 `json:"successful_requests"`

	// FailedRequests counts acquire failures and executor failures.
	FailedRequests int64 `json:"failed_requests"`

	// AcquireTimeouts counts waiters that were not served in time.
	AcquireTimeouts int64 `json:"acquire_timeouts"`

	// Utilization is ActiveConnections divided by MaxConnections.
	Utilization float64 `json:"utilization"`

	// RequestLatency summarizes executor durations (avg, p50, p95, p99).
	RequestLatency dispatch.LatencySnapshot `json:"request_latency"`

	// AverageWaitTime is the mean time acquirers spent waiting.
	AverageWaitTime time.Duration `json:"average_wait_time"`
}

// Stats returns a consistent snapshot of the pool's state and counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	s := Stats{
		BaseAddress:        p.cfg.BaseAddress,
		ActiveConnections:  p.active,
		IdleConnections:    len(p.idle),
		TotalConnections:   len(p.conns),
		MaxConnections:     p.cfg.MaxConnections,
		WaitingAcquirers:   len(p.waiters),
		TotalRequests:      p.totalRequests,
		SuccessfulRequests: p.successfulRequests,
		FailedRequests:     p.failedRequests,
		AcquireTimeouts:    p.acquireTimeouts,
	}
	p.mu.Unlock()

	if s.MaxConnections > 0 {
		s.Utilization = float64(s.ActiveConnections) / float64(s.MaxConnections)
	}
	s.RequestLatency = p.durations.Snapshot()
	s.AverageWaitTime = p.waitTimes.Average()
	return s
}

// Size returns the current number of connections owned by the pool.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Closed reports whether Shutdown has been called.
func (p *Pool) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
