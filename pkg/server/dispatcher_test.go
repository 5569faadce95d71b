package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"proxima-hq/proxima/pkg/config"
	"proxima-hq/proxima/pkg/dispatch"
)

func testUpstreamConfig(baseURL string) config.UpstreamConfig {
	return config.UpstreamConfig{
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
		Pool: config.PoolConfig{
			MinConnections: 1,
			MaxConnections: 4,
			AcquireTimeout: time.Second,
		},
		Pipeline: config.PipelineConfig{
			MaxConcurrentPerConnection: 4,
			MaxQueueSize:               50,
			EnablePrioritization:       true,
			QueueTimeout:               5 * time.Second,
		},
	}
}

func newTestDispatcher(t *testing.T, handler http.HandlerFunc, batchCfg config.BatchingConfig) *Dispatcher {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	d, err := NewDispatcher("test", testUpstreamConfig(server.URL), batchCfg)
	if err != nil {
		t.Fatalf("NewDispatcher failed: %v", err)
	}
	t.Cleanup(func() { d.Drain(context.Background()) })
	return d
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(`{"id":"cmpl-1","usage":{"total_tokens":10}}`))
}

// ============================================================================
// Dispatch (pipeline path)
// ============================================================================

func TestDispatcher_Dispatch(t *testing.T) {
	d := newTestDispatcher(t, okHandler, config.BatchingConfig{})

	req := &dispatch.RequestOptions{
		Method: http.MethodPost,
		Path:   "/v1/chat/completions",
		Body:   []byte(`{"model":"gpt-4"}`),
	}
	resp, err := d.Dispatch(context.Background(), req, dispatch.PriorityHigh)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if !resp.Success || resp.TokensUsed != 10 {
		t.Errorf("unexpected response: success=%v tokens=%d", resp.Success, resp.TokensUsed)
	}
}

func TestDispatcher_ConcurrentDispatchSharesConnections(t *testing.T) {
	var inFlight, peak atomic.Int32
	handler := func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		inFlight.Add(-1)
		okHandler(w, r)
	}
	d := newTestDispatcher(t, handler, config.BatchingConfig{})

	const requests = 12
	var wg sync.WaitGroup
	errs := make([]error, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := &dispatch.RequestOptions{Method: http.MethodPost, Path: "/v1/test", Body: []byte(`{}`)}
			_, errs[i] = d.Dispatch(context.Background(), req, dispatch.PriorityNormal)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("request %d failed: %v", i, err)
		}
	}
	if peak.Load() < 2 {
		t.Errorf("expected concurrent upstream requests, peak was %d", peak.Load())
	}
}

// ============================================================================
// Submit (batch path)
// ============================================================================

func TestDispatcher_SubmitCoalescesBatch(t *testing.T) {
	d := newTestDispatcher(t, okHandler, config.BatchingConfig{
		Enabled:      true,
		Window:       40 * time.Millisecond,
		MaxBatchSize: 10,
		MaxQueueSize: 100,
	})

	body := []byte(`{"model":"gpt-4","messages":[{"role":"user","content":"hi"}]}`)

	var wg sync.WaitGroup
	resps := make([]*dispatch.Response, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resps[i], errs[i] = d.Submit(context.Background(), http.MethodPost, "/v1/chat/completions", nil, body)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 2; i++ {
		if errs[i] != nil {
			t.Fatalf("submit %d failed: %v", i, errs[i])
		}
		if !resps[i].Batched {
			t.Errorf("submit %d: expected batched response", i)
		}
		if resps[i].BatchSize != 2 {
			t.Errorf("submit %d: batch size = %d, want 2", i, resps[i].BatchSize)
		}
	}
}

func TestDispatcher_SubmitImmediateWhenBatchingDisabled(t *testing.T) {
	d := newTestDispatcher(t, okHandler, config.BatchingConfig{Enabled: false})

	resp, err := d.Submit(context.Background(), http.MethodPost, "/v1/chat/completions", nil,
		[]byte(`{"model":"gpt-4"}`))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if resp.Batched {
		t.Error("expected immediate execution with batching disabled")
	}
	if resp.BatchSize != 1 {
		t.Errorf("batch size = %d, want 1", resp.BatchSize)
	}
}

// ============================================================================
// Connection health
// ============================================================================

func TestDispatcher_DropsUnhealthyConnection(t *testing.T) {
	d, err := NewDispatcher("test", testUpstreamConfig("http://127.0.0.1:1"), config.BatchingConfig{})
	if err != nil {
		t.Fatalf("NewDispatcher failed: %v", err)
	}
	defer d.Drain(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req := &dispatch.RequestOptions{Method: http.MethodPost, Path: "/v1/test", Body: []byte(`{}`)}
	if _, err := d.Dispatch(ctx, req, dispatch.PriorityNormal); err == nil {
		t.Fatal("expected dispatch failure against unreachable upstream")
	}

	d.mu.Lock()
	pinned := len(d.pinned)
	d.mu.Unlock()
	if pinned != 0 {
		t.Errorf("expected unhealthy connection dropped, %d still pinned", pinned)
	}
}

// ============================================================================
// Drain
// ============================================================================

func TestDispatcher_DrainRejectsSubsequentRequests(t *testing.T) {
	d := newTestDispatcher(t, okHandler, config.BatchingConfig{Enabled: true})

	d.Drain(context.Background())

	_, err := d.Submit(context.Background(), http.MethodPost, "/v1/test", nil, []byte(`{"model":"m"}`))
	var downErr *dispatch.ShutdownError
	if !errors.As(err, &downErr) {
		t.Fatalf("expected shutdown error, got %v", err)
	}

	if !d.pipeline.IsShutdownComplete() {
		t.Error("expected pipeline shutdown complete")
	}
	if !d.pool.Closed() {
		t.Error("expected pool closed")
	}
}
