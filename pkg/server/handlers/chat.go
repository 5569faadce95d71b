package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"proxima-hq/proxima/pkg/dispatch"
	"proxima-hq/proxima/pkg/dispatch/registry"
	"proxima-hq/proxima/pkg/upstream"
)

// Routing headers understood by the chat handler.
const (
	// UpstreamHeader names the upstream a request should be routed to.
	UpstreamHeader = "X-Upstream"

	// PriorityHeader carries the request priority (critical, high,
	// normal, low). Requests with a non-normal priority bypass the
	// batching window.
	PriorityHeader = "X-Priority"

	// BatchedHeader reports whether the response came from a coalesced
	// upstream call.
	BatchedHeader = "X-Proxima-Batched"

	// BatchSizeHeader reports the size of the batch the request rode in.
	BatchSizeHeader = "X-Proxima-Batch-Size"
)

// maxBodyBytes bounds accepted request bodies.
const maxBodyBytes = 10 << 20

// ChatHandler proxies chat completion requests into the dispatch layer.
type ChatHandler struct {
	fleet    Fleet
	recorder Recorder
	logger   *slog.Logger
}

// NewChatHandler creates the chat completions handler. recorder may be nil.
func NewChatHandler(fleet Fleet, recorder Recorder) *ChatHandler {
	return &ChatHandler{
		fleet:    fleet,
		recorder: recorder,
		logger:   slog.Default().With("component", "server.chat"),
	}
}

// ServeHTTP implements http.Handler.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method not allowed")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "request body too large")
		return
	}

	name := r.Header.Get(UpstreamHeader)
	if name == "" {
		name = h.fleet.Default()
	}
	if name == "" {
		writeError(w, http.StatusBadRequest, "invalid_request_error",
			fmt.Sprintf("multiple upstreams configured; %s header is required", UpstreamHeader))
		return
	}

	d, err := h.fleet.Dispatcher(name)
	if err != nil {
		var nf *registry.NotFoundError
		if errors.As(err, &nf) {
			writeError(w, http.StatusBadRequest, "invalid_request_error", nf.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", "upstream lookup failed")
		return
	}

	prio := dispatch.PriorityNormal
	if raw := r.Header.Get(PriorityHeader); raw != "" {
		parsed, ok := dispatch.ParsePriority(raw)
		if !ok {
			h.logger.Warn("unknown priority, using normal", "priority", raw)
		}
		prio = parsed
	}

	headers := map[string]string{}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		headers["Content-Type"] = ct
	}

	ctx := r.Context()
	var resp *dispatch.Response
	if prio != dispatch.PriorityNormal {
		// Prioritized traffic should not sit in a batch window.
		req := &dispatch.RequestOptions{
			Method:  http.MethodPost,
			Path:    r.URL.Path,
			Headers: headers,
			Body:    body,
		}
		resp, err = d.Dispatch(ctx, req, prio)
	} else {
		resp, err = d.Submit(ctx, http.MethodPost, r.URL.Path, headers, body)
	}

	if h.recorder != nil {
		h.recorder.RecordCompletion(ctx, name, extractModel(body), prio, resp, err)
	}

	if err != nil {
		h.writeDispatchError(w, name, err)
		return
	}
	h.writeResponse(w, resp)
}

// writeResponse forwards the upstream response to the client, annotated
// with batching metadata.
func (h *ChatHandler) writeResponse(w http.ResponseWriter, resp *dispatch.Response) {
	if ct, ok := resp.Headers["Content-Type"]; ok {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	if resp.Batched {
		w.Header().Set(BatchedHeader, "true")
		w.Header().Set(BatchSizeHeader, strconv.Itoa(resp.BatchSize))
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(resp.Body)
}

// writeDispatchError maps dispatch and upstream error kinds to client
// statuses. Admission failures surface as overload, upstream failures as
// bad gateway.
func (h *ChatHandler) writeDispatchError(w http.ResponseWriter, name string, err error) {
	var (
		acquireErr *dispatch.AcquireTimeoutError
		fullErr    *dispatch.QueueFullError
		queueErr   *dispatch.QueueTimeoutError
		downErr    *dispatch.ShutdownError
		execErr    *dispatch.ExecutorError
	)

	switch {
	case errors.As(err, &acquireErr), errors.As(err, &fullErr):
		writeError(w, http.StatusServiceUnavailable, "overloaded_error",
			fmt.Sprintf("upstream %s is overloaded, retry later", name))

	case errors.As(err, &queueErr):
		writeError(w, http.StatusGatewayTimeout, "timeout_error",
			fmt.Sprintf("request timed out waiting for upstream %s", name))

	case errors.As(err, &downErr):
		writeError(w, http.StatusServiceUnavailable, "server_error", "proxy is shutting down")

	case errors.As(err, &execErr):
		h.writeUpstreamError(w, name, execErr.Unwrap())

	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusGatewayTimeout, "timeout_error", "request cancelled or timed out")

	default:
		h.logger.Error("unexpected dispatch error", "upstream", name, "error", err)
		writeError(w, http.StatusInternalServerError, "server_error", "dispatch failed")
	}
}

// writeUpstreamError maps executor failures onto client statuses.
func (h *ChatHandler) writeUpstreamError(w http.ResponseWriter, name string, cause error) {
	var (
		authErr    *upstream.AuthError
		rateErr    *upstream.RateLimitError
		timeoutErr *upstream.TimeoutError
		upErr      *upstream.Error
	)

	switch {
	case errors.As(cause, &authErr):
		// The proxy's key is rejected; that is a proxy misconfiguration,
		// not a client error.
		writeError(w, http.StatusBadGateway, "upstream_error",
			fmt.Sprintf("upstream %s rejected the proxy's credentials", name))

	case errors.As(cause, &rateErr):
		if rateErr.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(rateErr.RetryAfter.Seconds())))
		}
		writeError(w, http.StatusTooManyRequests, "rate_limit_error",
			fmt.Sprintf("upstream %s is rate limiting", name))

	case errors.As(cause, &timeoutErr):
		writeError(w, http.StatusGatewayTimeout, "timeout_error",
			fmt.Sprintf("upstream %s timed out", name))

	case errors.As(cause, &upErr):
		status := upErr.StatusCode
		if status == 0 || status >= 500 {
			status = http.StatusBadGateway
		}
		writeError(w, status, "upstream_error", upErr.Message)

	default:
		writeError(w, http.StatusBadGateway, "upstream_error",
			fmt.Sprintf("upstream %s call failed", name))
	}
}

// extractModel pulls the model name out of a request body for usage
// records. Returns empty string for unparseable bodies.
func extractModel(body []byte) string {
	var req struct {
		Model string `json:"model"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return ""
	}
	return req.Model
}
