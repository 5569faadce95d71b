package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealth_OK(t *testing.T) {
	h := NewHealthHandler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	h := NewHealthHandler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/healthz", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestReady_HealthyUpstream(t *testing.T) {
	fleet := &fakeFleet{
		dispatchers: map[string]*fakeDispatcher{"openai": {}, "anthropic": {}},
		healthy:     map[string]bool{"openai": true, "anthropic": false},
	}
	h := NewReadyHandler(fleet)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		Status    string          `json:"status"`
		Upstreams map[string]bool `json:"upstreams"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body.Status != "ready" {
		t.Errorf("status = %q, want ready", body.Status)
	}
	if !body.Upstreams["openai"] || body.Upstreams["anthropic"] {
		t.Errorf("unexpected upstream health map: %v", body.Upstreams)
	}
}

func TestReady_NoHealthyUpstream(t *testing.T) {
	fleet := &fakeFleet{
		dispatchers: map[string]*fakeDispatcher{"openai": {}},
		healthy:     map[string]bool{"openai": false},
	}
	h := NewReadyHandler(fleet)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestStats_ServesSnapshot(t *testing.T) {
	h := NewStatsHandler(func(ctx context.Context) (any, error) {
		return map[string]any{"requests": 42}, nil
	})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body["requests"] != float64(42) {
		t.Errorf("unexpected snapshot: %v", body)
	}
}

func TestStats_SourceError(t *testing.T) {
	h := NewStatsHandler(func(ctx context.Context) (any, error) {
		return nil, errors.New("backend down")
	})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
