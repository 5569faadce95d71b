package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"proxima-hq/proxima/pkg/dispatch"
	"proxima-hq/proxima/pkg/dispatch/pool"
)

// Default configuration values applied by New when left zero.
const (
	DefaultMaxConcurrentPerConnection = 4
	DefaultMaxQueueSize               = 100
	DefaultQueueTimeout               = 30 * time.Second
)

// Config contains configuration for a pipelining manager.
type Config struct {
	// MaxConcurrentPerConnection caps in-flight requests per connection.
	MaxConcurrentPerConnection int

	// MaxQueueSize bounds the admission queue; entries beyond it are
	// rejected with a queue-full error.
	MaxQueueSize int

	// EnablePrioritization orders the queue by priority. When false the
	// queue is plain FIFO.
	EnablePrioritization bool

	// QueueTimeout is the per-entry time limit from enqueue to dispatch.
	QueueTimeout time.Duration

	// EnableMetrics controls whether queue-wait distributions are tracked.
	EnableMetrics bool
}

// entry is one queued admission. Its result channel is settled exactly
// once: on dispatch completion, queue timeout, or shutdown rejection.
type entry struct {
	conn     *pool.Connection
	req      *dispatch.RequestOptions
	priority dispatch.Priority
	enqueued time.Time
	seq      uint64
	timer    *time.Timer
	done     chan entryResult
	settled  bool
}

type entryResult struct {
	resp *dispatch.Response
	err  error
}

// Manager admits requests onto shared connections under a bounded,
// priority-ordered queue. One mutex serializes all admission decisions for
// the instance.
type Manager struct {
	cfg    Config
	exec   pool.Executor
	logger *slog.Logger

	mu          sync.Mutex
	active      map[string]int
	activeTotal int
	queue       []*entry
	seq         uint64
	shuttingDown bool

	stats statsCounters
}

// New creates a pipelining manager that runs requests through exec.
func New(cfg Config, exec pool.Executor) (*Manager, error) {
	if exec == nil {
		return nil, fmt.Errorf("pipeline: executor is required")
	}
	if cfg.MaxConcurrentPerConnection <= 0 {
		cfg.MaxConcurrentPerConnection = DefaultMaxConcurrentPerConnection
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = DefaultMaxQueueSize
	}
	if cfg.QueueTimeout <= 0 {
		cfg.QueueTimeout = DefaultQueueTimeout
	}

	return &Manager{
		cfg:    cfg,
		exec:   exec,
		logger: slog.Default().With("component", "dispatch.pipeline"),
		active: make(map[string]int),
		stats:  newStatsCounters(),
	}, nil
}

// Execute runs req on conn, sharing the connection with up to
// MaxConcurrentPerConnection-1 other requests. When the connection is at
// capacity the request queues under prio; a full queue rejects immediately.
// Execute blocks until the request completes, times out in the queue, or
// the manager shuts down.
func (m *Manager) Execute(ctx context.Context, conn *pool.Connection, req *dispatch.RequestOptions, prio dispatch.Priority) (*dispatch.Response, error) {
	if !prio.Valid() {
		prio = dispatch.PriorityNormal
	}

	m.mu.Lock()

	if m.shuttingDown {
		m.mu.Unlock()
		return nil, &dispatch.ShutdownError{Component: "pipelining manager"}
	}

	m.stats.total[prio]++

	// Admit immediately when the connection has spare capacity.
	if m.active[conn.ID] < m.cfg.MaxConcurrentPerConnection {
		m.admit(conn)
		m.mu.Unlock()

		m.recordQueueWait(0)
		resp, err := m.run(ctx, conn, req)
		m.complete(conn)
		return resp, err
	}

	// Backpressure: reject when the queue is at capacity.
	if len(m.queue) >= m.cfg.MaxQueueSize {
		m.stats.backpressureEvents++
		m.mu.Unlock()
		return nil, &dispatch.QueueFullError{Queue: "pipeline", Capacity: m.cfg.MaxQueueSize}
	}

	e := &entry{
		conn:     conn,
		req:      req,
		priority: prio,
		enqueued: time.Now(),
		seq:      m.nextSeq(),
		done:     make(chan entryResult, 1),
	}
	e.timer = time.AfterFunc(m.cfg.QueueTimeout, func() { m.expire(e) })
	m.queue = append(m.queue, e)
	m.mu.Unlock()

	select {
	case res := <-e.done:
		return res.resp, res.err
	case <-ctx.Done():
		m.abandon(e, ctx.Err())
		res := <-e.done
		return res.resp, res.err
	}
}

// run invokes the executor outside the lock. Executor failures are wrapped
// in ExecutorError; they are final and never retried here.
func (m *Manager) run(ctx context.Context, conn *pool.Connection, req *dispatch.RequestOptions) (*dispatch.Response, error) {
	start := time.Now()
	resp, err := m.exec(ctx, conn, req)
	if err != nil {
		return nil, &dispatch.ExecutorError{Cause: err}
	}
	if resp.Duration == 0 {
		resp.Duration = time.Since(start)
	}
	return resp, nil
}

// admit reserves capacity on conn for one request. Caller holds m.mu.
func (m *Manager) admit(conn *pool.Connection) {
	m.active[conn.ID]++
	m.activeTotal++

	if m.active[conn.ID] > 1 {
		m.stats.pipelinedRequests++
	}
	if m.active[conn.ID] > m.stats.peakConcurrency {
		m.stats.peakConcurrency = m.active[conn.ID]
	}
}

// complete releases capacity on conn and dispatches the next eligible
// queued entry, if any.
func (m *Manager) complete(conn *pool.Connection) {
	m.mu.Lock()

	if n := m.active[conn.ID]; n <= 1 {
		delete(m.active, conn.ID)
	} else {
		m.active[conn.ID] = n - 1
	}
	m.activeTotal--

	next := m.takeEligible()
	if next == nil {
		m.mu.Unlock()
		return
	}
	m.admit(next.conn)
	m.mu.Unlock()

	m.recordQueueWait(time.Since(next.enqueued))

	go func() {
		// Queued entries have no caller context of their own once the
		// submitting goroutine is parked on the result channel; the
		// executor bounds its own work.
		resp, err := m.run(context.Background(), next.conn, next.req)
		next.done <- entryResult{resp: resp, err: err}
		m.complete(next.conn)
	}()
}

// takeEligible removes and returns the highest-priority queued entry whose
// target connection has spare capacity, or nil. Caller holds m.mu.
func (m *Manager) takeEligible() *entry {
	best := -1
	for i, e := range m.queue {
		if m.active[e.conn.ID] >= m.cfg.MaxConcurrentPerConnection {
			continue
		}
		if best == -1 || m.less(e, m.queue[best]) {
			best = i
		}
	}
	if best == -1 {
		return nil
	}
	e := m.queue[best]
	m.queue = append(m.queue[:best], m.queue[best+1:]...)
	e.timer.Stop()
	e.settled = true
	return e
}

// less orders entries by priority then enqueue sequence. With
// prioritization disabled only the sequence matters (plain FIFO).
func (m *Manager) less(a, b *entry) bool {
	if m.cfg.EnablePrioritization && a.priority != b.priority {
		return a.priority < b.priority
	}
	return a.seq < b.seq
}

// expire fails a queued entry that waited past QueueTimeout.
func (m *Manager) expire(e *entry) {
	m.mu.Lock()
	if e.settled || !m.removeQueued(e) {
		m.mu.Unlock()
		return
	}
	e.settled = true
	m.stats.queueTimeouts++
	m.mu.Unlock()

	e.done <- entryResult{err: &dispatch.QueueTimeoutError{
		Timeout:  m.cfg.QueueTimeout,
		Priority: e.priority,
	}}
}

// abandon fails a queued entry whose caller context ended. If the entry
// was already dispatched the result channel will carry the real outcome
// and the failure is dropped.
func (m *Manager) abandon(e *entry, cause error) {
	m.mu.Lock()
	if e.settled || !m.removeQueued(e) {
		m.mu.Unlock()
		return
	}
	e.settled = true
	e.timer.Stop()
	m.mu.Unlock()

	e.done <- entryResult{err: cause}
}

// removeQueued removes e from the queue, reporting whether it was present.
// Caller holds m.mu.
func (m *Manager) removeQueued(e *entry) bool {
	for i, q := range m.queue {
		if q == e {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveConnection drops capacity bookkeeping for a retired connection.
// Entries queued for other connections are untouched; entries targeting
// the removed connection are rejected, since no completion on it will ever
// dispatch them.
func (m *Manager) RemoveConnection(id string) {
	m.mu.Lock()
	delete(m.active, id)

	var orphaned []*entry
	kept := m.queue[:0]
	for _, e := range m.queue {
		if e.conn.ID == id {
			e.settled = true
			e.timer.Stop()
			orphaned = append(orphaned, e)
			continue
		}
		kept = append(kept, e)
	}
	m.queue = kept
	m.mu.Unlock()

	for _, e := range orphaned {
		e.done <- entryResult{err: &dispatch.ShutdownError{Component: "connection " + id}}
	}
}

// Shutdown rejects all queued entries and stops accepting new requests.
// In-flight requests are allowed to finish.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.shuttingDown {
		m.mu.Unlock()
		return
	}
	m.shuttingDown = true
	rejected := m.queue
	m.queue = nil
	for _, e := range rejected {
		e.settled = true
		e.timer.Stop()
	}
	m.mu.Unlock()

	for _, e := range rejected {
		e.done <- entryResult{err: &dispatch.ShutdownError{Component: "pipelining manager"}}
	}

	m.logger.Info("pipeline shutting down", "rejected", len(rejected), "in_flight", m.ActiveCount())
}

// IsShutdownComplete reports whether Shutdown was called and no requests
// remain active.
func (m *Manager) IsShutdownComplete() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shuttingDown && m.activeTotal == 0
}

// ActiveCount returns the total number of in-flight requests.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeTotal
}

// ActiveOn returns the number of in-flight requests on one connection.
func (m *Manager) ActiveOn(connID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[connID]
}

// QueueDepth returns the current admission queue depth.
func (m *Manager) QueueDepth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

func (m *Manager) nextSeq() uint64 {
	m.seq++
	return m.seq
}

func (m *Manager) recordQueueWait(d time.Duration) {
	if !m.cfg.EnableMetrics {
		return
	}
	m.stats.queueWait.Record(d)
}
