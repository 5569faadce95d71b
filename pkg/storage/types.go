package storage

import (
	"context"
	"time"
)

// UsageRecord describes one completed request.
type UsageRecord struct {
	// ID is a unique record identifier. Assigned on insert when empty.
	ID string

	// Upstream is the name of the upstream that served the request.
	Upstream string

	// Model is the model name extracted from the request body, if any.
	Model string

	// Status is the request outcome ("success", "error", "rejected").
	Status string

	// Priority is the dispatch priority label ("critical", "high",
	// "normal", "low").
	Priority string

	// Batched reports whether the request was dispatched as part of a
	// batch.
	Batched bool

	// BatchSize is the size of the batch the request was dispatched in,
	// 1 for individual dispatch.
	BatchSize int

	// TokensUsed is the token count reported by the upstream, 0 if unknown.
	TokensUsed int

	// Duration is the upstream execution time.
	Duration time.Duration

	// QueueWait is the time spent waiting in dispatch queues.
	QueueWait time.Duration

	// CreatedAt is when the record was inserted. Assigned on insert when
	// zero.
	CreatedAt time.Time
}

// Filter narrows a Query. Zero fields match everything.
type Filter struct {
	// Upstream restricts results to one upstream name.
	Upstream string

	// Model restricts results to one model name.
	Model string

	// Since restricts results to records created at or after this time.
	Since time.Time

	// Limit caps the number of returned records, newest first. 0 means
	// no limit.
	Limit int
}

// UsageSummary aggregates usage for one upstream.
type UsageSummary struct {
	// Requests is the total number of recorded requests.
	Requests int64

	// Batched is the number of requests dispatched in batches.
	Batched int64

	// Tokens is the total token count.
	Tokens int64

	// AverageDuration is the mean upstream execution time.
	AverageDuration time.Duration
}

// Backend persists usage records.
type Backend interface {
	// Insert stores a record, assigning ID and CreatedAt when unset.
	Insert(ctx context.Context, rec *UsageRecord) error

	// Query returns records matching the filter, newest first.
	Query(ctx context.Context, filter Filter) ([]*UsageRecord, error)

	// Summarize aggregates records created at or after since, keyed by
	// upstream name.
	Summarize(ctx context.Context, since time.Time) (map[string]*UsageSummary, error)

	// Count returns the total number of stored records.
	Count(ctx context.Context) (int64, error)

	// Cleanup removes records created before the cutoff and returns how
	// many were deleted.
	Cleanup(ctx context.Context, olderThan time.Time) (int, error)

	// Close releases backend resources.
	Close() error
}
