package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"proxima-hq/proxima/pkg/dispatch"
)

// UpstreamDispatcher is one upstream's dispatch chain.
type UpstreamDispatcher interface {
	// Submit routes a request through the batching path.
	Submit(ctx context.Context, method, path string, headers map[string]string, body []byte) (*dispatch.Response, error)

	// Dispatch admits a request directly onto a pooled connection at the
	// given priority, bypassing the batching window.
	Dispatch(ctx context.Context, req *dispatch.RequestOptions, prio dispatch.Priority) (*dispatch.Response, error)
}

// Fleet resolves upstream names to their dispatch chains.
type Fleet interface {
	// Dispatcher returns the dispatch chain for an upstream name.
	Dispatcher(name string) (UpstreamDispatcher, error)

	// Default returns the upstream used when a request names none.
	// Empty means there is no default.
	Default() string

	// Names returns the configured upstream names.
	Names() []string

	// Healthy reports whether the named upstream is currently healthy.
	Healthy(name string) bool
}

// Recorder observes completed dispatches for usage history and metrics.
// Implementations must not block the request path.
type Recorder interface {
	RecordCompletion(ctx context.Context, upstream, model string, prio dispatch.Priority, resp *dispatch.Response, err error)
}

// errorResponse is the OpenAI-style error body returned to clients.
type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// writeError writes an OpenAI-style JSON error response.
func writeError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error: errorDetail{Message: message, Type: errType},
	})
}
