package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"proxima-hq/proxima/pkg/dispatch"
)

// DefaultAcquireTimeout bounds how long an acquirer waits for a connection
// when the pool is exhausted and no timeout was configured.
const DefaultAcquireTimeout = 5 * time.Second

// Executor performs the actual upstream call for one request on one
// connection. The pool itself does no networking.
type Executor func(ctx context.Context, conn *Connection, req *dispatch.RequestOptions) (*dispatch.Response, error)

// Config contains configuration for a connection pool.
type Config struct {
	// BaseAddress is the upstream base address all connections target.
	BaseAddress string

	// MinConnections is the number of connections created by WarmUp.
	MinConnections int

	// MaxConnections is the hard upper bound on pool size. Must be >= MinConnections.
	MaxConnections int

	// AcquireTimeout bounds how long an acquirer waits when the pool is
	// exhausted. Defaults to DefaultAcquireTimeout.
	AcquireTimeout time.Duration

	// EnableMetrics controls whether latency distributions are tracked.
	EnableMetrics bool
}

// waiter is one acquirer parked on the FIFO wait list. The channel is
// buffered so a release can hand off a connection without blocking.
type waiter struct {
	ch       chan *Connection
	enqueued time.Time
	served   bool
	gone     bool
}

// Pool is a bounded set of logical connections to one upstream address.
// All state is guarded by a single mutex; see the package documentation for
// the acquisition algorithm.
type Pool struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	conns   map[string]*Connection
	idle    []*Connection
	waiters []*waiter
	active  int
	closed  bool

	totalRequests      int64
	successfulRequests int64
	failedRequests     int64
	acquireTimeouts    int64
	durations          *dispatch.LatencyTracker
	waitTimes          *dispatch.LatencyTracker
}

// New creates a connection pool. Construction fails if MaxConnections is
// not positive, exceeds bounds, or is below MinConnections.
func New(cfg Config) (*Pool, error) {
	if cfg.BaseAddress == "" {
		return nil, fmt.Errorf("pool: base address is required")
	}
	if cfg.MinConnections < 0 {
		return nil, fmt.Errorf("pool: min_connections must be >= 0, got %d", cfg.MinConnections)
	}
	if cfg.MaxConnections <= 0 {
		return nil, fmt.Errorf("pool: max_connections must be > 0, got %d", cfg.MaxConnections)
	}
	if cfg.MaxConnections < cfg.MinConnections {
		return nil, fmt.Errorf("pool: max_connections (%d) must be >= min_connections (%d)",
			cfg.MaxConnections, cfg.MinConnections)
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultAcquireTimeout
	}

	return &Pool{
		cfg:       cfg,
		logger:    slog.Default().With("component", "dispatch.pool", "upstream", cfg.BaseAddress),
		conns:     make(map[string]*Connection),
		durations: dispatch.NewLatencyTracker(),
		waitTimes: dispatch.NewLatencyTracker(),
	}, nil
}

// WarmUp eagerly creates MinConnections idle connections. It is safe to
// call more than once; the pool never shrinks below connections already
// created.
func (p *Pool) WarmUp() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return &dispatch.ShutdownError{Component: "connection pool " + p.cfg.BaseAddress}
	}

	for len(p.conns) < p.cfg.MinConnections {
		conn := newConnection(p.cfg.BaseAddress)
		p.conns[conn.ID] = conn
		p.idle = append(p.idle, conn)
	}

	p.logger.Debug("pool warmed up", "connections", len(p.conns))
	return nil
}

// Acquire checks out a connection, waiting up to AcquireTimeout when the
// pool is exhausted. The caller must Release the connection when done.
func (p *Pool) Acquire(ctx context.Context) (*Connection, error) {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return nil, &dispatch.ShutdownError{Component: "connection pool " + p.cfg.BaseAddress}
	}

	// Fast path: idle connection available.
	if n := len(p.idle); n > 0 {
		conn := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.checkout(conn)
		p.mu.Unlock()
		p.recordWait(0)
		return conn, nil
	}

	// Grow the pool if below the cap.
	if len(p.conns) < p.cfg.MaxConnections {
		conn := newConnection(p.cfg.BaseAddress)
		p.conns[conn.ID] = conn
		p.checkout(conn)
		p.mu.Unlock()
		p.recordWait(0)
		return conn, nil
	}

	// Exhausted: join the FIFO wait list.
	w := &waiter{ch: make(chan *Connection, 1), enqueued: time.Now()}
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()

	select {
	case conn, ok := <-w.ch:
		if !ok {
			return nil, &dispatch.ShutdownError{Component: "connection pool " + p.cfg.BaseAddress}
		}
		p.recordWait(time.Since(w.enqueued))
		return conn, nil

	case <-timer.C:
		if conn := p.abandonWaiter(w, true); conn != nil {
			p.recordWait(time.Since(w.enqueued))
			return conn, nil
		}
		return nil, &dispatch.AcquireTimeoutError{Pool: p.cfg.BaseAddress, Timeout: p.cfg.AcquireTimeout}

	case <-ctx.Done():
		if conn := p.abandonWaiter(w, false); conn != nil {
			p.recordWait(time.Since(w.enqueued))
			return conn, nil
		}
		return nil, ctx.Err()
	}
}

// abandonWaiter removes w from the wait list. A release may have handed w a
// connection concurrently; in that case the connection is returned so the
// caller can use it instead of failing.
func (p *Pool) abandonWaiter(w *waiter, timedOut bool) *Connection {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w.served {
		// The handoff happens with the pool lock held, so a served
		// waiter's channel is already populated.
		return <-w.ch
	}

	w.gone = true
	for i, other := range p.waiters {
		if other == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			break
		}
	}
	if timedOut {
		p.acquireTimeouts++
	}
	return nil
}

// Release returns a connection to the pool. If a waiter exists the
// connection is handed to the longest-waiting one directly, skipping the
// idle set. Unhealthy connections, and all connections after shutdown, are
// discarded instead; a discard that would drop the pool below
// MinConnections creates a fresh replacement in its place.
func (p *Pool) Release(conn *Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active--

	if p.closed || !conn.Healthy() {
		conn.setInUse(false)
		delete(p.conns, conn.ID)
		if p.closed || len(p.conns) >= p.cfg.MinConnections {
			return
		}
		repl := newConnection(p.cfg.BaseAddress)
		p.conns[repl.ID] = repl
		for len(p.waiters) > 0 {
			w := p.waiters[0]
			p.waiters = p.waiters[1:]
			if w.gone {
				continue
			}
			w.served = true
			p.checkout(repl)
			w.ch <- repl
			return
		}
		p.idle = append(p.idle, repl)
		return
	}

	for len(p.waiters) > 0 {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		if w.gone {
			continue
		}
		w.served = true
		p.active++
		w.ch <- conn
		return
	}

	conn.setInUse(false)
	p.idle = append(p.idle, conn)
}

// Request acquires a connection, runs the executor against it, releases the
// connection, and records duration and outcome. Acquire and shutdown errors
// propagate unretried; executor failures are wrapped in ExecutorError.
func (p *Pool) Request(ctx context.Context, req *dispatch.RequestOptions, exec Executor) (*dispatch.Response, error) {
	conn, err := p.Acquire(ctx)
	if err != nil {
		// A closed pool stops counting; only live acquire failures are
		// outcomes.
		var shut *dispatch.ShutdownError
		if !errors.As(err, &shut) {
			p.recordOutcome(false, 0)
		}
		return nil, err
	}

	start := time.Now()
	resp, execErr := exec(ctx, conn, req)
	duration := time.Since(start)

	conn.touch()
	p.Release(conn)

	p.recordOutcome(execErr == nil, duration)

	if execErr != nil {
		return nil, &dispatch.ExecutorError{Cause: execErr}
	}
	if resp.Duration == 0 {
		resp.Duration = duration
	}
	return resp, nil
}

// RemoveConnection discards a connection by ID regardless of health. In-use
// connections are discarded once released.
func (p *Pool) RemoveConnection(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	conn, ok := p.conns[id]
	if !ok {
		return
	}
	conn.MarkUnhealthy()
	if !conn.InUse() {
		delete(p.conns, id)
		for i, idle := range p.idle {
			if idle.ID == id {
				p.idle = append(p.idle[:i], p.idle[i+1:]...)
				break
			}
		}
		if !p.closed && len(p.conns) < p.cfg.MinConnections {
			repl := newConnection(p.cfg.BaseAddress)
			p.conns[repl.ID] = repl
			p.idle = append(p.idle, repl)
		}
	}
}

// Shutdown marks the pool closed. Waiting acquirers fail immediately with a
// shutdown error; in-flight connections finish and are discarded on
// release. Subsequent Acquire and Request calls fail.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	for _, w := range p.waiters {
		if !w.gone && !w.served {
			w.gone = true
			close(w.ch)
		}
	}
	p.waiters = nil

	for _, conn := range p.idle {
		delete(p.conns, conn.ID)
	}
	p.idle = nil

	p.logger.Info("pool shut down", "in_flight", p.active)
}

// checkout marks a connection as checked out. Caller holds p.mu.
func (p *Pool) checkout(conn *Connection) {
	conn.setInUse(true)
	p.active++
}

func (p *Pool) recordWait(d time.Duration) {
	if !p.cfg.EnableMetrics {
		return
	}
	p.waitTimes.Record(d)
}

func (p *Pool) recordOutcome(success bool, d time.Duration) {
	p.mu.Lock()
	p.totalRequests++
	if success {
		p.successfulRequests++
	} else {
		p.failedRequests++
	}
	p.mu.Unlock()

	if p.cfg.EnableMetrics && d > 0 {
		p.durations.Record(d)
	}
}
