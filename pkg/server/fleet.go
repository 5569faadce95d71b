package server

import (
	"context"
	"errors"
	"sort"
	"time"

	"proxima-hq/proxima/pkg/dispatch"
	"proxima-hq/proxima/pkg/dispatch/registry"
	"proxima-hq/proxima/pkg/server/handlers"
	"proxima-hq/proxima/pkg/storage"
)

// Dispatcher implements handlers.Fleet against the server's dispatcher set.
func (s *Server) Dispatcher(name string) (handlers.UpstreamDispatcher, error) {
	d, ok := s.dispatchers[name]
	if !ok {
		return nil, &registry.NotFoundError{Upstream: name}
	}
	return d, nil
}

// Default returns the upstream used when a request names none.
func (s *Server) Default() string {
	return s.defaultUpstream
}

// Names returns the configured upstream names, sorted.
func (s *Server) Names() []string {
	names := make([]string, 0, len(s.dispatchers))
	for name := range s.dispatchers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Healthy reports whether the named upstream's client is healthy.
func (s *Server) Healthy(name string) bool {
	d, ok := s.dispatchers[name]
	if !ok {
		return false
	}
	return d.client.IsHealthy()
}

// RecordCompletion implements handlers.Recorder: it updates the metrics
// collector and appends a usage record. The store write happens off the
// request path.
func (s *Server) RecordCompletion(ctx context.Context, upstreamName, model string, prio dispatch.Priority, resp *dispatch.Response, err error) {
	status := "success"
	var duration time.Duration
	var queueWait time.Duration
	tokens := 0
	batched := false
	batchSize := 0

	if err != nil || resp == nil || !resp.Success {
		status = "error"
	}
	if resp != nil {
		duration = resp.Duration
		queueWait = resp.BatchWait
		tokens = resp.TokensUsed
		batched = resp.Batched
		batchSize = resp.BatchSize
	}

	s.collector.RecordRequest(upstreamName, status, duration, tokens)
	if batched {
		s.collector.RecordBatch(upstreamName, batchSize, resp.BatchWait)
	}
	if err != nil {
		var acquireErr *dispatch.AcquireTimeoutError
		var fullErr *dispatch.QueueFullError
		switch {
		case errors.As(err, &acquireErr):
			s.collector.RecordAcquireTimeout(upstreamName)
		case errors.As(err, &fullErr):
			s.collector.RecordBackpressure(upstreamName)
		}
	}

	if s.store == nil {
		return
	}
	rec := &storage.UsageRecord{
		Upstream:   upstreamName,
		Model:      model,
		Status:     status,
		Priority:   prio.String(),
		Batched:    batched,
		BatchSize:  batchSize,
		TokensUsed: tokens,
		Duration:   duration,
		QueueWait:  queueWait,
	}
	go func() {
		insertCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.Insert(insertCtx, rec); err != nil {
			s.logger.Warn("failed to record usage", "upstream", upstreamName, "error", err)
		}
	}()
}

// statsSnapshot assembles the /stats payload from component counters and
// the usage store.
func (s *Server) statsSnapshot(ctx context.Context) (any, error) {
	type upstreamStats struct {
		Healthy  bool `json:"healthy"`
		Pool     any  `json:"pool"`
		Pipeline any  `json:"pipeline"`
		Batch    any  `json:"batch"`
	}

	upstreams := make(map[string]upstreamStats, len(s.dispatchers))
	for name, d := range s.dispatchers {
		upstreams[name] = upstreamStats{
			Healthy:  d.client.IsHealthy(),
			Pool:     d.pool.Stats(),
			Pipeline: d.pipeline.Stats(),
			Batch:    d.batch.Stats(),
		}
	}

	snapshot := map[string]any{
		"timestamp": time.Now().Unix(),
		"upstreams": upstreams,
	}

	if s.store != nil {
		summary, err := s.store.Summarize(ctx, time.Now().Add(-24*time.Hour))
		if err != nil {
			return nil, err
		}
		snapshot["usage_24h"] = summary
	}

	return snapshot, nil
}

// refreshGauges periodically pushes component state into the metrics
// collector until ctx is cancelled.
func (s *Server) refreshGauges(ctx context.Context) {
	ticker := time.NewTicker(gaugeRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for name, d := range s.dispatchers {
				ps := d.pool.Stats()
				s.collector.UpdatePoolGauges(name, ps.ActiveConnections, ps.IdleConnections, ps.WaitingAcquirers)

				pls := d.pipeline.Stats()
				s.collector.UpdatePipelineGauges(name, pls.ActiveRequests, pls.QueueDepth)

				qs := d.batch.QueueStats()
				s.collector.UpdateBatchQueueDepth(name, qs.CurrentSize)
			}
		}
	}
}
