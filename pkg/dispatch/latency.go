package dispatch

import (
	"sort"
	"sync"
	"time"
)

// defaultSampleCapacity bounds the memory held per tracker. A full ring
// keeps the most recent samples, which is what operators care about.
const defaultSampleCapacity = 1024

// LatencyTracker records durations in a bounded ring buffer and reports
// average and percentile snapshots. It is thread-safe.
//
// Percentiles are computed over the retained window (the most recent
// samples), not over the full process lifetime. Count and Sum cover the
// full lifetime.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	filled  bool

	count int64
	sum   time.Duration
}

// NewLatencyTracker creates a tracker with the default sample window.
func NewLatencyTracker() *LatencyTracker {
	return NewLatencyTrackerWithCapacity(defaultSampleCapacity)
}

// NewLatencyTrackerWithCapacity creates a tracker retaining up to capacity
// samples for percentile computation.
func NewLatencyTrackerWithCapacity(capacity int) *LatencyTracker {
	if capacity <= 0 {
		capacity = defaultSampleCapacity
	}
	return &LatencyTracker{
		samples: make([]time.Duration, capacity),
	}
}

// Record adds one duration sample.
func (t *LatencyTracker) Record(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.samples[t.next] = d
	t.next++
	if t.next == len(t.samples) {
		t.next = 0
		t.filled = true
	}
	t.count++
	t.sum += d
}

// Count returns the total number of recorded samples.
func (t *LatencyTracker) Count() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Average returns the mean over all recorded samples, or zero if none.
func (t *LatencyTracker) Average() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count == 0 {
		return 0
	}
	return t.sum / time.Duration(t.count)
}

// Snapshot returns average, p50, p95 and p99 over the retained window.
// All values are zero when no samples have been recorded.
func (t *LatencyTracker) Snapshot() LatencySnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.next
	if t.filled {
		n = len(t.samples)
	}
	if n == 0 {
		return LatencySnapshot{}
	}

	window := make([]time.Duration, n)
	copy(window, t.samples[:n])
	sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })

	return LatencySnapshot{
		Average: t.sum / time.Duration(t.count),
		P50:     window[percentileIndex(n, 50)],
		P95:     window[percentileIndex(n, 95)],
		P99:     window[percentileIndex(n, 99)],
	}
}

// LatencySnapshot is a point-in-time summary of a LatencyTracker.
type LatencySnapshot struct {
	Average time.Duration `json:"average"`
	P50     time.Duration `json:"p50"`
	P95     time.Duration `json:"p95"`
	P99     time.Duration `json:"p99"`
}

// percentileIndex maps a percentile to an index into a sorted slice of
// length n using the nearest-rank method.
func percentileIndex(n, pct int) int {
	idx := (n*pct + 99) / 100
	if idx > 0 {
		idx--
	}
	return idx
}
