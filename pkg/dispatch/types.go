package dispatch

import (
	"context"
	"strings"
	"time"
)

// RequestOptions describes a single upstream request. It is immutable once
// submitted to any dispatch component; callers must not modify it afterwards.
type RequestOptions struct {
	// Method is the HTTP method (e.g., "POST").
	Method string

	// Path is the request path relative to the upstream base address.
	Path string

	// Headers contains the request headers to forward upstream.
	Headers map[string]string

	// Body is the request body. Nil for bodyless requests.
	Body []byte
}

// Response is the outcome of one executed request. It is produced exactly
// once per request (or per batch member) by the executor.
type Response struct {
	// Success indicates whether the upstream call succeeded.
	Success bool

	// StatusCode is the upstream HTTP status code (0 if the call never
	// reached the upstream).
	StatusCode int

	// Headers contains the upstream response headers.
	Headers map[string]string

	// Body is the upstream response body.
	Body []byte

	// TokensUsed is the token count reported by the upstream, if any.
	TokensUsed int

	// Streamed indicates the response was delivered as a stream.
	Streamed bool

	// Duration is the measured wall time of the upstream call.
	Duration time.Duration

	// Batched indicates the request was coalesced into a batch.
	Batched bool

	// BatchSize is the number of requests in the executor call that
	// produced this response (1 for immediate execution).
	BatchSize int

	// BatchWait is the time the request spent waiting for its batch to
	// form (zero for immediate execution).
	BatchWait time.Duration

	// TotalTime is the end-to-end time from submission to completion.
	TotalTime time.Duration
}

// Priority orders admission when a pipeline queue holds more than one entry.
// Lower values dispatch first.
type Priority int

const (
	// PriorityCritical dispatches before all other priorities.
	PriorityCritical Priority = iota
	// PriorityHigh dispatches before normal and low traffic.
	PriorityHigh
	// PriorityNormal is the default for traffic with no explicit priority.
	PriorityNormal
	// PriorityLow dispatches only when nothing else is queued.
	PriorityLow
)

// String returns the lowercase name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	}
	return "unknown"
}

// Valid reports whether p is one of the four defined priorities.
func (p Priority) Valid() bool {
	return p >= PriorityCritical && p <= PriorityLow
}

// ParsePriority maps a priority name (case-insensitive) to its value.
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToLower(s) {
	case "critical":
		return PriorityCritical, true
	case "high":
		return PriorityHigh, true
	case "normal":
		return PriorityNormal, true
	case "low":
		return PriorityLow, true
	}
	return PriorityNormal, false
}

// BatchExecutor performs one upstream call for an ordered list of requests.
// The returned slice must be positionally aligned with the input: result i
// belongs to request i. A non-nil error fails every request in the call.
type BatchExecutor func(ctx context.Context, reqs []*RequestOptions) ([]*Response, error)
