package batch

import (
	"time"

	"proxima-hq/proxima/pkg/dispatch"
)

// Stats is a point-in-time snapshot of batch manager counters.
type Stats struct {
	// Enabled reports whether the batching path is active.
	Enabled bool `json:"enabled"`

	// TotalRequests counts every SubmitRequest call accepted.
	TotalRequests int64 `json:"total_requests"`

	// BatchedRequests counts requests that completed via a batch.
	BatchedRequests int64 `json:"batched_requests"`

	// ImmediateRequests counts single-entry executions (unbatchable
	// requests and queue-full fallbacks).
	ImmediateRequests int64 `json:"immediate_requests"`

	// TotalBatches counts executor calls made by the batching path.
	TotalBatches int64 `json:"total_batches"`

	// AverageBatchSize is BatchedRequests / TotalBatches.
	AverageBatchSize float64 `json:"average_batch_size"`

	// MaxBatchSize is the largest batch executed.
	MaxBatchSize int `json:"max_batch_size"`

	// BatchRate is BatchedRequests / TotalRequests.
	BatchRate float64 `json:"batch_rate"`

	// Wait summarizes time requests spent waiting for their batch.
	Wait dispatch.LatencySnapshot `json:"wait"`

	// TimeSaved is the cumulative estimate of avoided upstream
	// round-trips: (N-1) x BatchWindow per successful batch of size N.
	TimeSaved time.Duration `json:"time_saved"`

	// Queue is the underlying batch queue snapshot.
	Queue QueueStats `json:"queue"`
}

// Stats returns a consistent snapshot of the manager's counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	s := Stats{
		Enabled:           m.enabled,
		TotalRequests:     m.stats.totalRequests,
		BatchedRequests:   m.stats.batchedRequests,
		ImmediateRequests: m.stats.immediateRequests,
		TotalBatches:      m.stats.totalBatches,
		MaxBatchSize:      m.stats.maxBatchSize,
		TimeSaved:         m.stats.timeSaved,
	}
	m.mu.Unlock()

	if s.TotalBatches > 0 {
		s.AverageBatchSize = float64(s.BatchedRequests) / float64(s.TotalBatches)
	}
	if s.TotalRequests > 0 {
		s.BatchRate = float64(s.BatchedRequests) / float64(s.TotalRequests)
	}
	s.Wait = m.stats.wait.Snapshot()
	s.Queue = m.queue.Stats()
	return s
}
