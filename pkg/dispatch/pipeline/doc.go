// Package pipeline admits multiple concurrent requests onto shared
// connections instead of serializing one request per connection.
//
// # Admission
//
// Execute admits a request immediately when its target connection is below
// MaxConcurrentPerConnection in-flight requests. Otherwise the request
// joins a single global admission queue ordered by priority (critical >
// high > normal > low) and FIFO within equal priority. The queue is bounded
// by MaxQueueSize; admissions beyond that are rejected immediately with a
// queue-full error (backpressure). Each queued entry carries its own
// timeout (QueueTimeout).
//
// The queue is logically global but every entry targets one connection's
// capacity: when a request completes on a connection, the highest-priority
// entry whose target connection has spare capacity is dispatched next.
// Entries queued for other connections are never reordered relative to
// each other.
//
// # Shutdown
//
// Shutdown rejects all queued entries and lets in-flight requests finish.
// IsShutdownComplete reports true once nothing remains active.
package pipeline
