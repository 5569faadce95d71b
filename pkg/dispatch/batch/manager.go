package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"proxima-hq/proxima/pkg/dispatch"
)

// Default configuration values applied by New when left zero.
const (
	DefaultBatchWindow  = 50 * time.Millisecond
	DefaultMaxBatchSize = 10
	DefaultMaxQueueSize = 1000
)

// Config contains configuration for a batch manager.
type Config struct {
	// Enabled turns batching on. When false every request executes
	// immediately as a single-entry call.
	Enabled bool

	// BatchWindow is how long the first arrival into an empty queue waits
	// for companions before the queue is flushed.
	BatchWindow time.Duration

	// MaxBatchSize caps the number of requests per executor call. Larger
	// groups are split across multiple calls.
	MaxBatchSize int

	// MaxQueueSize bounds the batch queue; rejected requests fall back to
	// immediate execution.
	MaxQueueSize int

	// EnableMetrics controls whether wait distributions are tracked.
	EnableMetrics bool
}

// Manager decides batch-vs-immediate execution per request, owns the batch
// window timer, invokes the injected executor, and fans results back to
// callers in input order.
type Manager struct {
	cfg    Config
	exec   dispatch.BatchExecutor
	queue  *Queue
	logger *slog.Logger

	mu         sync.Mutex
	enabled    bool
	timer      *time.Timer
	timerArmed bool
	shutdown   bool

	stats managerCounters
}

type managerCounters struct {
	totalRequests     int64
	batchedRequests   int64
	immediateRequests int64
	totalBatches      int64
	maxBatchSize      int
	timeSaved         time.Duration
	wait              *dispatch.LatencyTracker
}

// New creates a batch manager that executes through exec.
func New(cfg Config, exec dispatch.BatchExecutor) (*Manager, error) {
	if exec == nil {
		return nil, fmt.Errorf("batch: executor is required")
	}
	if cfg.BatchWindow <= 0 {
		cfg.BatchWindow = DefaultBatchWindow
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = DefaultMaxQueueSize
	}

	return &Manager{
		cfg:     cfg,
		exec:    exec,
		queue:   NewQueue(cfg.MaxQueueSize),
		logger:  slog.Default().With("component", "dispatch.batch"),
		enabled: cfg.Enabled,
		stats:   managerCounters{wait: dispatch.NewLatencyTracker()},
	}, nil
}

// SubmitRequest routes one request through the batching path when it is
// batchable, and otherwise (or on queue-full fallback) executes it
// immediately. It blocks until the request completes.
func (m *Manager) SubmitRequest(ctx context.Context, method, path string, headers map[string]string, body []byte) (*dispatch.Response, error) {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil, &dispatch.ShutdownError{Component: "batch manager"}
	}
	m.stats.totalRequests++
	enabled := m.enabled
	m.mu.Unlock()

	req := &dispatch.RequestOptions{Method: method, Path: path, Headers: headers, Body: body}

	var params *Params
	batchable := false
	if enabled && method == http.MethodPost && len(body) > 0 {
		params, batchable = ParseParams(body)
	}
	if !batchable {
		return m.executeImmediate(ctx, req)
	}

	p := newPending(uuid.NewString(), req, params)
	admitted, err := m.admit(p)
	if err != nil {
		return nil, err
	}
	if !admitted {
		// Queue full, or batching was disabled while this request was being
		// parsed: administrative failure of the batching path, not of the
		// request. Fall back to a single-entry call.
		return m.executeImmediate(ctx, req)
	}

	select {
	case res := <-p.done:
		var full *dispatch.QueueFullError
		if res.err != nil && errors.As(res.err, &full) {
			return m.executeImmediate(ctx, req)
		}
		return res.resp, res.err
	case <-ctx.Done():
		// Batch-queued requests carry no individual timeout; a cancelled
		// caller simply stops waiting. The handle is buffered, so the
		// eventual flush settles it without blocking.
		return nil, ctx.Err()
	}
}

// executeImmediate runs req as a single-entry executor call.
func (m *Manager) executeImmediate(ctx context.Context, req *dispatch.RequestOptions) (*dispatch.Response, error) {
	m.mu.Lock()
	m.stats.immediateRequests++
	m.mu.Unlock()

	start := time.Now()
	resps, err := m.exec(ctx, []*dispatch.RequestOptions{req})
	if err != nil {
		return nil, &dispatch.ExecutorError{Cause: err}
	}
	if len(resps) != 1 {
		return nil, &dispatch.ExecutorError{
			Cause: fmt.Errorf("executor returned %d results for 1 request", len(resps)),
		}
	}

	resp := resps[0]
	resp.Batched = false
	resp.BatchSize = 1
	resp.TotalTime = time.Since(start)
	return resp, nil
}

// admit enqueues p and arms the window timer in one critical section.
// Holding m.mu across both steps means a concurrent Shutdown or
// SetEnabled(false) either runs first and turns the submission away here, or
// runs after and finds the entry in the queue for its flush; the entry can
// never land in a queue no flush will visit.
func (m *Manager) admit(p *Pending) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return false, &dispatch.ShutdownError{Component: "batch manager"}
	}
	if !m.enabled || !m.queue.Enqueue(p) {
		return false, nil
	}
	m.armTimerLocked()
	return true, nil
}

// armTimer schedules a flush BatchWindow from now unless one is already
// scheduled.
func (m *Manager) armTimer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.armTimerLocked()
}

// armTimerLocked requires m.mu. Only the first arrival into an empty window
// arms the timer (fixed deadline), so flush latency is bounded under
// sustained arrival.
func (m *Manager) armTimerLocked() {
	if m.timerArmed || m.shutdown || !m.enabled {
		return
	}
	m.timerArmed = true
	m.timer = time.AfterFunc(m.cfg.BatchWindow, m.onWindowElapsed)
}

// onWindowElapsed runs on the timer goroutine when the batch window closes.
func (m *Manager) onWindowElapsed() {
	m.mu.Lock()
	m.timerArmed = false
	m.mu.Unlock()

	m.Flush(context.Background())

	// Arrivals during the flush opened a new logical window without a
	// timer. Arm one so they are not stranded.
	if m.queue.Size() > 0 {
		m.armTimer()
	}
}

// Flush drains the queue: every current batch group is executed in chunks
// of at most MaxBatchSize, oldest members first. It can be called
// out-of-band to force a drain.
func (m *Manager) Flush(ctx context.Context) {
	groups := m.queue.Groups()
	if len(groups) == 0 {
		return
	}
	flushTime := time.Now()

	for _, g := range groups {
		remaining := g.Requests
		for len(remaining) > 0 {
			n := len(remaining)
			if n > m.cfg.MaxBatchSize {
				n = m.cfg.MaxBatchSize
			}
			chunk := remaining[:n]
			remaining = remaining[n:]

			ids := make([]string, len(chunk))
			for i, p := range chunk {
				ids[i] = p.ID
			}
			taken := m.queue.DequeueMultiple(ids)
			if len(taken) == 0 {
				continue
			}
			m.executeBatch(ctx, taken, flushTime)
		}
	}
}

// executeBatch runs one executor call for a claimed chunk and fans the
// positional results back to the members' completion handles. An executor
// failure fails every member identically.
func (m *Manager) executeBatch(ctx context.Context, members []*Pending, flushTime time.Time) {
	reqs := make([]*dispatch.RequestOptions, len(members))
	for i, p := range members {
		reqs[i] = p.Req
	}

	resps, err := m.exec(ctx, reqs)
	if err == nil && len(resps) != len(reqs) {
		err = fmt.Errorf("executor returned %d results for %d requests", len(resps), len(reqs))
	}
	if err != nil {
		m.logger.Warn("batch execution failed", "size", len(members), "error", err)
		for _, p := range members {
			p.settle(nil, &dispatch.ExecutorError{Cause: err})
		}
		return
	}

	for i, p := range members {
		resp := resps[i]
		resp.Batched = true
		resp.BatchSize = len(members)
		resp.BatchWait = flushTime.Sub(p.Enqueued)
		resp.TotalTime = time.Since(p.Enqueued)
		if m.cfg.EnableMetrics {
			m.stats.wait.Record(resp.BatchWait)
		}
		p.settle(resp, nil)
	}

	m.mu.Lock()
	m.stats.batchedRequests += int64(len(members))
	m.stats.totalBatches++
	if len(members) > m.stats.maxBatchSize {
		m.stats.maxBatchSize = len(members)
	}
	// Estimate only: each coalesced member beyond the first avoided one
	// upstream round-trip of roughly BatchWindow.
	m.stats.timeSaved += time.Duration(len(members)-1) * m.cfg.BatchWindow
	m.mu.Unlock()
}

// SetEnabled toggles batching. Disabling cancels the window timer and
// immediately flushes whatever is queued, so no caller is stranded.
func (m *Manager) SetEnabled(enabled bool) {
	m.mu.Lock()
	m.enabled = enabled
	if !enabled && m.timerArmed {
		m.timer.Stop()
		m.timerArmed = false
	}
	m.mu.Unlock()

	if !enabled {
		m.Flush(context.Background())
	}
}

// Enabled reports whether the batching path is active.
func (m *Manager) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// Shutdown cancels the timer, performs one final flush, then rejects
// anything still unclaimed. Subsequent SubmitRequest calls fail
// immediately.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return
	}
	m.shutdown = true
	if m.timerArmed {
		m.timer.Stop()
		m.timerArmed = false
	}
	m.mu.Unlock()

	m.Flush(ctx)
	cleared := m.queue.Clear(&dispatch.ShutdownError{Component: "batch manager"})
	if cleared > 0 {
		m.logger.Warn("batch shutdown cleared unflushed entries", "count", cleared)
	}
}

// QueueStats returns the underlying batch queue's counters.
func (m *Manager) QueueStats() QueueStats {
	return m.queue.Stats()
}
