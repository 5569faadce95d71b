package pipeline

import (
	"proxima-hq/proxima/pkg/dispatch"
)

// statsCounters holds the manager's internal counters, guarded by the
// manager mutex except for the lock-free latency tracker.
type statsCounters struct {
	total              map[dispatch.Priority]int64
	pipelinedRequests  int64
	peakConcurrency    int
	backpressureEvents int64
	queueTimeouts      int64
	queueWait          *dispatch.LatencyTracker
}

func newStatsCounters() statsCounters {
	return statsCounters{
		total:     make(map[dispatch.Priority]int64),
		queueWait: dispatch.NewLatencyTracker(),
	}
}

// Stats is a point-in-time snapshot of pipeline state and counters.
type Stats struct {
	// TotalByPriority counts submitted requests per priority.
	TotalByPriority map[string]int64 `json:"total_by_priority"`

	// ActiveRequests is the number of currently dispatched requests.
	ActiveRequests int `json:"active_requests"`

	// QueueDepth is the current admission queue depth.
	QueueDepth int `json:"queue_depth"`

	// MaxQueueSize is the configured queue bound.
	MaxQueueSize int `json:"max_queue_size"`

	// PipelinedRequests counts admissions that shared a connection with at
	// least one other in-flight request.
	PipelinedRequests int64 `json:"pipelined_requests"`

	// PeakConcurrency is the running maximum of in-flight requests
	// observed on any single connection.
	PeakConcurrency int `json:"peak_concurrency"`

	// BackpressureEvents counts queue-full rejections.
	BackpressureEvents int64 `json:"backpressure_events"`

	// QueueTimeouts counts entries that expired before dispatch.
	QueueTimeouts int64 `json:"queue_timeouts"`

	// QueueWait summarizes enqueue-to-dispatch waits (zero for entries
	// admitted immediately).
	QueueWait dispatch.LatencySnapshot `json:"queue_wait"`
}

// Stats returns a consistent snapshot of the manager's counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	byPriority := make(map[string]int64, len(m.stats.total))
	for prio, n := range m.stats.total {
		byPriority[prio.String()] = n
	}
	s := Stats{
		TotalByPriority:    byPriority,
		ActiveRequests:     m.activeTotal,
		QueueDepth:         len(m.queue),
		MaxQueueSize:       m.cfg.MaxQueueSize,
		PipelinedRequests:  m.stats.pipelinedRequests,
		PeakConcurrency:    m.stats.peakConcurrency,
		BackpressureEvents: m.stats.backpressureEvents,
		QueueTimeouts:      m.stats.queueTimeouts,
	}
	m.mu.Unlock()

	s.QueueWait = m.stats.queueWait.Snapshot()
	return s
}
