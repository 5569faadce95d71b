package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// StatsSource produces the stats snapshot served on /stats. The server
// composes it from the dispatch components' counters and the usage store.
type StatsSource func(ctx context.Context) (any, error)

// StatsHandler serves a JSON snapshot of dispatch and usage statistics.
type StatsHandler struct {
	source StatsSource
	logger *slog.Logger
}

// NewStatsHandler creates the stats handler.
func NewStatsHandler(source StatsSource) *StatsHandler {
	return &StatsHandler{
		source: source,
		logger: slog.Default().With("component", "server.stats"),
	}
}

// ServeHTTP implements http.Handler.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method not allowed")
		return
	}

	snapshot, err := h.source(r.Context())
	if err != nil {
		h.logger.Error("stats snapshot failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error", "failed to collect stats")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(snapshot)
}
