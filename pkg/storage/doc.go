// Package storage persists per-request usage history for Proxima.
//
// Every completed request produces a UsageRecord describing which upstream
// served it, how it was dispatched (individually or batched), and what it
// cost in time and tokens. Records feed the /stats endpoint and give
// operators a window into batching efficiency after the fact.
//
// # Backends
//
//   - MemoryBackend: bounded in-memory ring, the default. No persistence.
//   - SQLiteBackend: durable single-file storage using modernc.org/sqlite.
//
// Both implement Backend and are safe for concurrent use.
//
// # Retention
//
// Pruner deletes records older than the configured retention period.
// Scheduler runs the pruner on a cron schedule (typically nightly).
package storage
