// Package upstream implements HTTP execution against upstream LLM endpoints.
//
// Client wraps an http.Client with a pooled transport, API-key injection,
// retry with exponential backoff for transient failures, and health tracking
// based on consecutive failures. It produces the executor functions consumed
// by the dispatch layer:
//
//   - Client.Executor returns a pool.Executor for individual dispatch
//   - Client.BatchExecutor returns a dispatch.BatchExecutor that fans a
//     batch out over concurrent HTTP calls
//
// Token usage is extracted from response bodies that carry an OpenAI-style
// "usage" object.
package upstream
