// Package dispatch contains the shared types for Proxima's request
// admission and dispatch layer.
//
// # Overview
//
// The dispatch layer sits between the HTTP proxy surface and the outbound
// upstream executor. It is composed of four collaborating pieces:
//
//   - pool.Pool: a bounded set of logical connections to one upstream
//   - pipeline.Manager: priority admission onto shared connections
//   - batch.Queue / batch.Manager: coalescing of interchangeable requests
//   - registry.Registry: name-keyed lookup of pool/pipeline pairs
//
// This package holds the request/response types, the priority order, the
// executor contracts, and the typed errors those components surface. It
// performs no networking itself; the executor injected by the caller is the
// only thing that touches the wire.
//
// # Error Handling
//
// All admission failures are surfaced as typed errors (AcquireTimeoutError,
// QueueFullError, QueueTimeoutError, ShutdownError, ExecutorError) that
// callers match with errors.As. None of them are retried internally; the
// HTTP layer maps them to client-visible statuses.
package dispatch
