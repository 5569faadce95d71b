package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Upstream defaults
	DefaultUpstreamTimeout = 60 * time.Second

	// Pool defaults
	DefaultPoolMinConnections = 2
	DefaultPoolMaxConnections = 10
	DefaultPoolAcquireTimeout = 5 * time.Second

	// Pipeline defaults
	DefaultPipelineMaxConcurrent = 4
	DefaultPipelineMaxQueueSize  = 100
	DefaultPipelineQueueTimeout  = 30 * time.Second

	// Batching defaults
	DefaultBatchWindow       = 50 * time.Millisecond
	DefaultBatchMaxBatchSize = 10
	DefaultBatchMaxQueueSize = 1000

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultMetricsEnabled   = true
	DefaultPrometheusPath   = "/metrics"
	DefaultMetricsNamespace = "proxima"

	// Storage defaults
	DefaultStorageBackend     = "memory"
	DefaultSQLitePath         = "data/proxima.db"
	DefaultSQLiteMaxOpenConns = 10
	DefaultSQLiteMaxIdleConns = 5
	DefaultSQLiteBusyTimeout  = 5 * time.Second
	DefaultMemoryMaxRecords   = 100000
	DefaultRetentionDays      = 30
	DefaultRetentionSchedule  = "0 3 * * *"
)

// DefaultRequestDurationBuckets returns the default histogram buckets for
// request duration in seconds.
func DefaultRequestDurationBuckets() []float64 {
	return []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0}
}

// DefaultBatchSizeBuckets returns the default histogram buckets for
// dispatched batch sizes.
func DefaultBatchSizeBuckets() []float64 {
	return []float64{1, 2, 3, 5, 8, 10, 20}
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	// Upstream defaults, applied to each upstream
	for name, up := range cfg.Upstreams {
		if up.Timeout == 0 {
			up.Timeout = DefaultUpstreamTimeout
		}
		if up.Pool.MinConnections == 0 {
			up.Pool.MinConnections = DefaultPoolMinConnections
		}
		if up.Pool.MaxConnections == 0 {
			up.Pool.MaxConnections = DefaultPoolMaxConnections
		}
		if up.Pool.AcquireTimeout == 0 {
			up.Pool.AcquireTimeout = DefaultPoolAcquireTimeout
		}
		if up.Pipeline.MaxConcurrentPerConnection == 0 {
			up.Pipeline.MaxConcurrentPerConnection = DefaultPipelineMaxConcurrent
		}
		if up.Pipeline.MaxQueueSize == 0 {
			up.Pipeline.MaxQueueSize = DefaultPipelineMaxQueueSize
		}
		if up.Pipeline.QueueTimeout == 0 {
			up.Pipeline.QueueTimeout = DefaultPipelineQueueTimeout
		}
		cfg.Upstreams[name] = up
	}

	// Batching defaults
	if cfg.Batching.Window == 0 {
		cfg.Batching.Window = DefaultBatchWindow
	}
	if cfg.Batching.MaxBatchSize == 0 {
		cfg.Batching.MaxBatchSize = DefaultBatchMaxBatchSize
	}
	if cfg.Batching.MaxQueueSize == 0 {
		cfg.Batching.MaxQueueSize = DefaultBatchMaxQueueSize
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultPrometheusPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Telemetry.Metrics.RequestDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.RequestDurationBuckets = DefaultRequestDurationBuckets()
	}
	if len(cfg.Telemetry.Metrics.BatchSizeBuckets) == 0 {
		cfg.Telemetry.Metrics.BatchSizeBuckets = DefaultBatchSizeBuckets()
	}

	// Storage defaults
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Storage.SQLite.MaxOpenConns == 0 {
		cfg.Storage.SQLite.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if cfg.Storage.SQLite.MaxIdleConns == 0 {
		cfg.Storage.SQLite.MaxIdleConns = DefaultSQLiteMaxIdleConns
	}
	if cfg.Storage.SQLite.BusyTimeout == 0 {
		cfg.Storage.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Storage.Memory.MaxRecords == 0 {
		cfg.Storage.Memory.MaxRecords = DefaultMemoryMaxRecords
	}
	if cfg.Storage.Retention.Days == 0 {
		cfg.Storage.Retention.Days = DefaultRetentionDays
	}
	if cfg.Storage.Retention.PruneSchedule == "" {
		cfg.Storage.Retention.PruneSchedule = DefaultRetentionSchedule
	}
}

// DefaultConfig returns a Config populated entirely with default values and
// no upstreams. Useful as a starting point for tests and for generating a
// reference configuration file.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	return cfg
}
