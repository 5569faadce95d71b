package dispatch

import (
	"testing"
	"time"
)

func TestLatencyTracker_Empty(t *testing.T) {
	tr := NewLatencyTracker()

	snap := tr.Snapshot()
	if snap.Average != 0 || snap.P50 != 0 || snap.P95 != 0 || snap.P99 != 0 {
		t.Errorf("expected zero snapshot for empty tracker, got %+v", snap)
	}
	if tr.Count() != 0 {
		t.Errorf("expected count 0, got %d", tr.Count())
	}
}

func TestLatencyTracker_Percentiles(t *testing.T) {
	tr := NewLatencyTracker()

	// 1ms..100ms
	for i := 1; i <= 100; i++ {
		tr.Record(time.Duration(i) * time.Millisecond)
	}

	snap := tr.Snapshot()
	if snap.P50 != 50*time.Millisecond {
		t.Errorf("expected p50=50ms, got %v", snap.P50)
	}
	if snap.P95 != 95*time.Millisecond {
		t.Errorf("expected p95=95ms, got %v", snap.P95)
	}
	if snap.P99 != 99*time.Millisecond {
		t.Errorf("expected p99=99ms, got %v", snap.P99)
	}
}

func TestLatencyTracker_Average(t *testing.T) {
	tr := NewLatencyTracker()
	tr.Record(10 * time.Millisecond)
	tr.Record(20 * time.Millisecond)
	tr.Record(30 * time.Millisecond)

	if avg := tr.Average(); avg != 20*time.Millisecond {
		t.Errorf("expected average 20ms, got %v", avg)
	}
	if tr.Count() != 3 {
		t.Errorf("expected count 3, got %d", tr.Count())
	}
}

func TestLatencyTracker_RingWrap(t *testing.T) {
	tr := NewLatencyTrackerWithCapacity(4)

	// Overfill the ring; the window keeps only the most recent 4 samples.
	for i := 1; i <= 10; i++ {
		tr.Record(time.Duration(i) * time.Millisecond)
	}

	if tr.Count() != 10 {
		t.Errorf("expected lifetime count 10, got %d", tr.Count())
	}

	snap := tr.Snapshot()
	// Window holds 7,8,9,10ms; p99 is the max of the window.
	if snap.P99 != 10*time.Millisecond {
		t.Errorf("expected window p99=10ms, got %v", snap.P99)
	}
	if snap.P50 < 7*time.Millisecond {
		t.Errorf("expected window p50 >= 7ms, got %v", snap.P50)
	}
}

func TestLatencyTracker_SingleSample(t *testing.T) {
	tr := NewLatencyTracker()
	tr.Record(42 * time.Millisecond)

	snap := tr.Snapshot()
	if snap.P50 != 42*time.Millisecond || snap.P99 != 42*time.Millisecond {
		t.Errorf("expected all percentiles 42ms for single sample, got %+v", snap)
	}
}
