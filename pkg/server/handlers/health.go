package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthHandler answers liveness probes.
type HealthHandler struct{}

// NewHealthHandler creates a new liveness handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// ServeHTTP implements http.Handler for liveness checks.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method not allowed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// ReadyHandler answers readiness probes. The proxy is ready when at least
// one upstream is healthy.
type ReadyHandler struct {
	fleet Fleet
}

// NewReadyHandler creates a new readiness handler.
func NewReadyHandler(fleet Fleet) *ReadyHandler {
	return &ReadyHandler{fleet: fleet}
}

// ServeHTTP implements http.Handler for readiness checks.
func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method not allowed")
		return
	}

	upstreams := map[string]bool{}
	healthyCount := 0
	for _, name := range h.fleet.Names() {
		healthy := h.fleet.Healthy(name)
		upstreams[name] = healthy
		if healthy {
			healthyCount++
		}
	}

	status := "ready"
	statusCode := http.StatusOK
	if healthyCount == 0 {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"upstreams": upstreams,
	})
}
