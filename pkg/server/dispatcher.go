package server

import (
	"context"
	"log/slog"
	"sync"

	"proxima-hq/proxima/pkg/config"
	"proxima-hq/proxima/pkg/dispatch"
	"proxima-hq/proxima/pkg/dispatch/batch"
	"proxima-hq/proxima/pkg/dispatch/pipeline"
	"proxima-hq/proxima/pkg/dispatch/pool"
	"proxima-hq/proxima/pkg/dispatch/registry"
	"proxima-hq/proxima/pkg/upstream"
)

// Dispatcher routes one upstream's traffic. Batchable requests coalesce in
// the batch manager; everything else admits onto pooled connections through
// the pipelining manager. Both paths terminate in the upstream client.
//
// Connections checked out of the pool are pinned: they stay leased to the
// dispatcher so several requests can share one connection concurrently, with
// the pipeline enforcing the per-connection cap. The pool grows one
// connection at a time when every pinned connection is at capacity.
type Dispatcher struct {
	name     string
	client   *upstream.Client
	pool     *pool.Pool
	pipeline *pipeline.Manager
	batch    *batch.Manager
	logger   *slog.Logger

	maxPerConn int

	mu     sync.Mutex
	pinned []*pool.Connection
}

// NewDispatcher builds the full dispatch chain for one upstream: HTTP
// client, connection pool, pipelining manager, and batch manager.
func NewDispatcher(name string, upCfg config.UpstreamConfig, batchCfg config.BatchingConfig) (*Dispatcher, error) {
	client, err := upstream.NewClient(upstream.Config{
		Name:    name,
		BaseURL: upCfg.BaseURL,
		APIKey:  upCfg.APIKey,
		Timeout: upCfg.Timeout,
	})
	if err != nil {
		return nil, err
	}

	p, err := pool.New(pool.Config{
		BaseAddress:    upCfg.BaseURL,
		MinConnections: upCfg.Pool.MinConnections,
		MaxConnections: upCfg.Pool.MaxConnections,
		AcquireTimeout: upCfg.Pool.AcquireTimeout,
		EnableMetrics:  upCfg.Pool.EnableMetrics,
	})
	if err != nil {
		client.Close()
		return nil, err
	}

	pl, err := pipeline.New(pipeline.Config{
		MaxConcurrentPerConnection: upCfg.Pipeline.MaxConcurrentPerConnection,
		MaxQueueSize:               upCfg.Pipeline.MaxQueueSize,
		EnablePrioritization:       upCfg.Pipeline.EnablePrioritization,
		QueueTimeout:               upCfg.Pipeline.QueueTimeout,
		EnableMetrics:              upCfg.Pipeline.EnableMetrics,
	}, client.Executor())
	if err != nil {
		p.Shutdown()
		client.Close()
		return nil, err
	}

	maxPerConn := upCfg.Pipeline.MaxConcurrentPerConnection
	if maxPerConn <= 0 {
		maxPerConn = pipeline.DefaultMaxConcurrentPerConnection
	}

	d := &Dispatcher{
		name:       name,
		client:     client,
		pool:       p,
		pipeline:   pl,
		logger:     slog.Default().With("component", "server.dispatcher", "upstream", name),
		maxPerConn: maxPerConn,
	}

	bm, err := batch.New(batch.Config{
		Enabled:       batchCfg.Enabled,
		BatchWindow:   batchCfg.Window,
		MaxBatchSize:  batchCfg.MaxBatchSize,
		MaxQueueSize:  batchCfg.MaxQueueSize,
		EnableMetrics: batchCfg.EnableMetrics,
	}, d.batchExecutor())
	if err != nil {
		pl.Shutdown()
		p.Shutdown()
		client.Close()
		return nil, err
	}
	d.batch = bm

	return d, nil
}

// Pair returns the dispatcher's pool and pipeline for registry lookup.
func (d *Dispatcher) Pair() *registry.Pair {
	return &registry.Pair{Pool: d.pool, Pipeline: d.pipeline}
}

// Batch returns the dispatcher's batch manager.
func (d *Dispatcher) Batch() *batch.Manager {
	return d.batch
}

// Client returns the dispatcher's upstream client.
func (d *Dispatcher) Client() *upstream.Client {
	return d.client
}

// WarmUp pre-creates the pool's minimum connection set.
func (d *Dispatcher) WarmUp() error {
	return d.pool.WarmUp()
}

// Submit routes one request through the batching path. Unbatchable requests
// and queue-full fallbacks execute as single-entry calls over the same
// dispatch chain.
func (d *Dispatcher) Submit(ctx context.Context, method, path string, headers map[string]string, body []byte) (*dispatch.Response, error) {
	return d.batch.SubmitRequest(ctx, method, path, headers, body)
}

// Dispatch admits one request onto a pooled connection at the given
// priority, bypassing the batching window.
func (d *Dispatcher) Dispatch(ctx context.Context, req *dispatch.RequestOptions, prio dispatch.Priority) (*dispatch.Response, error) {
	conn, err := d.pick(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := d.pipeline.Execute(ctx, conn, req, prio)
	d.afterExecute(conn)
	return resp, err
}

// batchExecutor returns the executor injected into the batch manager. The
// whole batch shares one connection slot; the pipeline multiplexes the
// member calls on it concurrently. Member failures become failed responses
// at their position so one bad request does not sink the batch.
func (d *Dispatcher) batchExecutor() dispatch.BatchExecutor {
	return func(ctx context.Context, reqs []*dispatch.RequestOptions) ([]*dispatch.Response, error) {
		conn, err := d.pick(ctx)
		if err != nil {
			return nil, err
		}

		responses := make([]*dispatch.Response, len(reqs))
		errs := make([]error, len(reqs))

		var wg sync.WaitGroup
		for i, req := range reqs {
			wg.Add(1)
			go func(i int, req *dispatch.RequestOptions) {
				defer wg.Done()
				resp, err := d.pipeline.Execute(ctx, conn, req, dispatch.PriorityNormal)
				if err != nil {
					errs[i] = err
					responses[i] = &dispatch.Response{Success: false, Body: []byte(err.Error())}
					return
				}
				responses[i] = resp
			}(i, req)
		}
		wg.Wait()
		d.afterExecute(conn)

		failures := 0
		var lastErr error
		for _, err := range errs {
			if err != nil {
				failures++
				lastErr = err
			}
		}
		if failures == len(reqs) && failures > 0 {
			return nil, lastErr
		}
		return responses, nil
	}
}

// pick returns the least-loaded healthy pinned connection, acquiring a new
// one while every pinned connection is at the pipeline's per-connection
// cap. When the pool is exhausted the least-loaded connection is shared
// anyway and the admission queue orders the overflow.
func (d *Dispatcher) pick(ctx context.Context) (*pool.Connection, error) {
	d.mu.Lock()
	var best *pool.Connection
	bestLoad := 0
	for _, c := range d.pinned {
		if !c.Healthy() {
			continue
		}
		load := d.pipeline.ActiveOn(c.ID)
		if best == nil || load < bestLoad {
			best, bestLoad = c, load
		}
	}
	if best != nil && bestLoad < d.maxPerConn {
		d.mu.Unlock()
		return best, nil
	}
	d.mu.Unlock()

	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		if best != nil {
			return best, nil
		}
		return nil, err
	}

	d.mu.Lock()
	d.pinned = append(d.pinned, conn)
	d.mu.Unlock()
	return conn, nil
}

// afterExecute drops a connection that went unhealthy during execution:
// its queued entries are rejected and the pool discards it on release.
func (d *Dispatcher) afterExecute(conn *pool.Connection) {
	if conn.Healthy() {
		return
	}

	d.mu.Lock()
	removed := false
	for i, c := range d.pinned {
		if c.ID == conn.ID {
			d.pinned = append(d.pinned[:i], d.pinned[i+1:]...)
			removed = true
			break
		}
	}
	d.mu.Unlock()

	if removed {
		d.logger.Warn("dropping unhealthy connection", "connection_id", conn.ID)
		d.pipeline.RemoveConnection(conn.ID)
		d.pool.Release(conn)
	}
}

// Drain shuts the dispatch chain down in order: batch manager first so
// queued batches flush, then the pipeline, then the pinned connections and
// the pool, and finally the HTTP client.
func (d *Dispatcher) Drain(ctx context.Context) {
	d.batch.Shutdown(ctx)
	d.pipeline.Shutdown()

	d.mu.Lock()
	pinned := d.pinned
	d.pinned = nil
	d.mu.Unlock()
	for _, conn := range pinned {
		d.pool.Release(conn)
	}

	d.pool.Shutdown()
	d.client.Close()
}
