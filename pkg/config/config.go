package config

import "time"

// Config is the root configuration structure for Proxima.
// It contains all configuration sections for the HTTP server, upstream
// dispatch (pools, pipelining, batching), telemetry, and usage storage.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, and connection limits.
	Server ServerConfig `yaml:"server"`

	// Upstreams contains configuration for all upstream LLM endpoints.
	// Keys are upstream names (e.g., "openai", "anthropic").
	Upstreams map[string]UpstreamConfig `yaml:"upstreams"`

	// Batching contains configuration for request coalescing across all
	// upstreams.
	Batching BatchingConfig `yaml:"batching"`

	// Telemetry contains configuration for observability including logging
	// and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Storage contains configuration for usage history persistence.
	Storage StorageConfig `yaml:"storage"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port for the server to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. A zero or negative value means no timeout.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. A zero or negative value means no timeout.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled. If IdleTimeout is zero, ReadTimeout is used.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// If requests are still in-flight after this timeout, the server will
	// force shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values, including the
	// request line. It does not limit the size of the request body.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// DefaultUpstream is the upstream used when a request carries no
	// X-Upstream header. When empty and exactly one upstream is configured,
	// that upstream is used; with multiple upstreams the header is required.
	// Default: ""
	DefaultUpstream string `yaml:"default_upstream"`
}

// UpstreamConfig contains configuration for a single upstream LLM endpoint.
type UpstreamConfig struct {
	// BaseURL is the base URL for the upstream's API endpoint.
	// Example: "https://api.openai.com/v1"
	BaseURL string `yaml:"base_url"`

	// APIKey is the authentication key for the upstream.
	// This should typically be loaded from an environment variable.
	APIKey string `yaml:"api_key"`

	// Timeout is the maximum duration for requests to this upstream.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// Pool contains connection pool configuration for this upstream.
	Pool PoolConfig `yaml:"pool"`

	// Pipeline contains pipelining configuration for this upstream.
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// PoolConfig contains connection pool configuration.
type PoolConfig struct {
	// MinConnections is the number of connections opened at warm-up and
	// kept alive while the pool is running.
	// Default: 2
	MinConnections int `yaml:"min_connections"`

	// MaxConnections is the upper bound on simultaneously open connections.
	// Default: 10
	MaxConnections int `yaml:"max_connections"`

	// AcquireTimeout is the maximum duration a caller waits for a
	// connection before failing.
	// Default: 5s
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`

	// EnableMetrics controls whether latency and wait-time samples are
	// recorded for this pool.
	// Default: true
	EnableMetrics bool `yaml:"enable_metrics"`
}

// PipelineConfig contains pipelining configuration.
type PipelineConfig struct {
	// MaxConcurrentPerConnection is the number of in-flight requests
	// allowed on a single connection.
	// Default: 4
	MaxConcurrentPerConnection int `yaml:"max_concurrent_per_connection"`

	// MaxQueueSize is the maximum number of requests waiting for a
	// pipeline slot before new arrivals are rejected.
	// Default: 100
	MaxQueueSize int `yaml:"max_queue_size"`

	// EnablePrioritization controls whether queued requests dispatch in
	// priority order rather than strict arrival order.
	// Default: true
	EnablePrioritization bool `yaml:"enable_prioritization"`

	// QueueTimeout is the maximum duration a request waits in the pipeline
	// queue before failing.
	// Default: 30s
	QueueTimeout time.Duration `yaml:"queue_timeout"`

	// EnableMetrics controls whether queue wait samples are recorded.
	// Default: true
	EnableMetrics bool `yaml:"enable_metrics"`
}

// BatchingConfig contains request coalescing configuration.
type BatchingConfig struct {
	// Enabled controls whether compatible requests are coalesced into
	// batches. When false every request dispatches individually.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Window is how long the first request in an empty queue waits for
	// companions before the queue is flushed.
	// Default: 50ms
	Window time.Duration `yaml:"window"`

	// MaxBatchSize is the maximum number of requests dispatched in a
	// single batch.
	// Default: 10
	MaxBatchSize int `yaml:"max_batch_size"`

	// MaxQueueSize is the maximum number of requests waiting for a batch
	// window before new arrivals fall back to individual dispatch.
	// Default: 1000
	MaxQueueSize int `yaml:"max_queue_size"`

	// EnableMetrics controls whether batch size and wait samples are
	// recorded.
	// Default: true
	EnableMetrics bool `yaml:"enable_metrics"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether the Prometheus endpoint is exposed.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "proxima"
	Namespace string `yaml:"namespace"`

	// RequestDurationBuckets defines histogram buckets for request duration
	// (seconds).
	// Default: [0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0]
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`

	// BatchSizeBuckets defines histogram buckets for dispatched batch sizes.
	// Default: [1, 2, 3, 5, 8, 10, 20]
	BatchSizeBuckets []float64 `yaml:"batch_size_buckets"`
}

// StorageConfig contains usage history persistence configuration.
type StorageConfig struct {
	// Backend specifies the storage backend to use.
	// Options: "memory", "sqlite"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite-specific configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Memory contains memory backend configuration.
	Memory MemoryConfig `yaml:"memory"`

	// Retention contains retention policy configuration.
	Retention RetentionConfig `yaml:"retention"`
}

// SQLiteConfig contains SQLite-specific configuration.
type SQLiteConfig struct {
	// Path is the file path for the SQLite database.
	// Default: "data/proxima.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open database connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle database connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// MemoryConfig contains memory backend configuration.
type MemoryConfig struct {
	// MaxRecords is the maximum number of usage records to keep in memory.
	// Oldest records are evicted when this limit is reached.
	// Default: 100000
	MaxRecords int `yaml:"max_records"`
}

// RetentionConfig contains retention policy configuration.
type RetentionConfig struct {
	// Days is the number of days to retain usage records.
	// Records older than this are eligible for deletion.
	// 0 means keep records forever (no pruning).
	// Default: 30
	Days int `yaml:"days"`

	// PruneSchedule is a cron expression for scheduling pruning.
	// Default: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string `yaml:"prune_schedule"`
}
