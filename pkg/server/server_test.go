package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"proxima-hq/proxima/pkg/config"
	"proxima-hq/proxima/pkg/storage"
)

func testConfig(upstreamURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.ListenAddress = "127.0.0.1:0"
	cfg.Upstreams = map[string]config.UpstreamConfig{
		"test": testUpstreamConfig(upstreamURL),
	}
	cfg.Batching = config.BatchingConfig{
		Enabled:      true,
		Window:       20 * time.Millisecond,
		MaxBatchSize: 10,
		MaxQueueSize: 100,
	}
	return cfg
}

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Server, *storage.MemoryBackend) {
	t.Helper()
	upstreamSrv := httptest.NewServer(handler)
	t.Cleanup(upstreamSrv.Close)

	store := storage.NewMemoryBackend()
	s, err := New(testConfig(upstreamSrv.URL), store)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() {
		for _, d := range s.dispatchers {
			d.Drain(context.Background())
		}
	})
	return s, store
}

// ============================================================================
// HTTP surface
// ============================================================================

func TestServer_ChatCompletion(t *testing.T) {
	s, store := newTestServer(t, okHandler)
	handler := s.Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions",
		strings.NewReader(`{"model":"gpt-4","messages":[{"role":"user","content":"hi"}]}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID response header")
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if body["id"] != "cmpl-1" {
		t.Errorf("unexpected response body: %v", body)
	}

	// The usage record is written off the request path.
	deadline := time.Now().Add(2 * time.Second)
	for {
		count, err := store.Count(context.Background())
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if count == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("usage record never appeared, count %d", count)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServer_ChatUnknownUpstream(t *testing.T) {
	s, _ := newTestServer(t, okHandler)
	handler := s.Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions",
		strings.NewReader(`{"model":"gpt-4"}`))
	req.Header.Set("X-Upstream", "nope")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestServer_Healthz(t *testing.T) {
	s, _ := newTestServer(t, okHandler)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestServer_Readyz(t *testing.T) {
	s, _ := newTestServer(t, okHandler)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestServer_Stats(t *testing.T) {
	s, _ := newTestServer(t, okHandler)
	handler := s.Handler()

	// Drive one request through so counters are non-zero.
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions",
		strings.NewReader(`{"model":"gpt-4"}`))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		Upstreams map[string]struct {
			Healthy bool `json:"healthy"`
		} `json:"upstreams"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("stats body is not JSON: %v", err)
	}
	if _, ok := body.Upstreams["test"]; !ok {
		t.Errorf("expected test upstream in stats, got %v", body.Upstreams)
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, okHandler)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

// ============================================================================
// Fleet
// ============================================================================

func TestServer_DefaultUpstream(t *testing.T) {
	s, _ := newTestServer(t, okHandler)

	if s.Default() != "test" {
		t.Errorf("default = %q, want test (single configured upstream)", s.Default())
	}
	if names := s.Names(); len(names) != 1 || names[0] != "test" {
		t.Errorf("names = %v, want [test]", names)
	}
}

func TestServer_DispatcherNotFound(t *testing.T) {
	s, _ := newTestServer(t, okHandler)

	if _, err := s.Dispatcher("missing"); err == nil {
		t.Error("expected error for unknown upstream")
	}
}

// ============================================================================
// Lifecycle
// ============================================================================

func TestServer_StartAndStop(t *testing.T) {
	upstreamSrv := httptest.NewServer(http.HandlerFunc(okHandler))
	defer upstreamSrv.Close()

	s, err := New(testConfig(upstreamSrv.URL), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for !s.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("server never reported running")
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.Stop()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Start returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop in time")
	}

	if s.IsRunning() {
		t.Error("expected server stopped")
	}
}
