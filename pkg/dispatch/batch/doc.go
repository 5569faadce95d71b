// Package batch coalesces structurally interchangeable completion requests
// arriving within a short window into a single upstream executor call.
//
// # Batch keys
//
// Two requests may share a batch only when their canonical parameters
// match: model, temperature (when different from the 0.7 default),
// max_tokens (when present), and top_p (when different from the 1.0
// default). The key is a deterministic serialization of those fields.
//
// # Flush timing
//
// The flush timer uses a fixed deadline: the first arrival into an empty
// queue arms it for BatchWindow, and later arrivals within the window do
// not re-arm it. Every queued request is therefore flushed no later than
// BatchWindow after the window opened, bounding batching latency even
// under sustained arrival.
//
// # Fallback
//
// Requests that cannot batch (non-POST, no parseable body, no model field,
// batching disabled) and requests rejected by a full batch queue execute
// immediately as single-entry calls. Once an executor call is actually
// made and fails, the failure is final and broadcast identically to every
// request in it.
package batch
