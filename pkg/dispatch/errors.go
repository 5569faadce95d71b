package dispatch

import (
	"fmt"
	"time"
)

// AcquireTimeoutError is returned when a connection pool is exhausted and no
// connection became available within the configured acquire timeout.
type AcquireTimeoutError struct {
	// Pool is the base address of the pool that timed out.
	Pool string

	// Timeout is the configured acquire timeout.
	Timeout time.Duration
}

// Error implements the error interface.
func (e *AcquireTimeoutError) Error() string {
	return fmt.Sprintf("pool %q: no connection available within %s", e.Pool, e.Timeout)
}

// QueueFullError is returned when a bounded admission queue is at capacity.
// It signals backpressure: the caller should shed load rather than wait.
type QueueFullError struct {
	// Queue identifies the queue that rejected the entry
	// (e.g., "pipeline", "batch").
	Queue string

	// Capacity is the configured maximum queue size.
	Capacity int
}

// Error implements the error interface.
func (e *QueueFullError) Error() string {
	return fmt.Sprintf("%s queue full: capacity %d reached", e.Queue, e.Capacity)
}

// QueueTimeoutError is returned when a queued entry waited past the
// configured queue timeout without being dispatched.
type QueueTimeoutError struct {
	// Timeout is the configured per-entry queue timeout.
	Timeout time.Duration

	// Priority is the priority the entry was queued with.
	Priority Priority
}

// Error implements the error interface.
func (e *QueueTimeoutError) Error() string {
	return fmt.Sprintf("request timed out after %s in queue (priority %s)", e.Timeout, e.Priority)
}

// ShutdownError is returned when an operation is attempted on a component
// that is shut down or shutting down. Shutdown is terminal per instance.
type ShutdownError struct {
	// Component identifies the component that rejected the operation.
	Component string
}

// Error implements the error interface.
func (e *ShutdownError) Error() string {
	return fmt.Sprintf("%s is shut down", e.Component)
}

// ExecutorError wraps a failure of the injected executor. The failure is
// final: it is broadcast identically to every request in the executor call
// and never retried by the dispatch layer.
type ExecutorError struct {
	// Cause is the error returned by the executor.
	Cause error
}

// Error implements the error interface.
func (e *ExecutorError) Error() string {
	return fmt.Sprintf("executor failed: %v", e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ExecutorError) Unwrap() error {
	return e.Cause
}
