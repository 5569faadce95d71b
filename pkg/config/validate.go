package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateUpstreams(cfg.Upstreams)...)

	if cfg.Server.DefaultUpstream != "" {
		if _, ok := cfg.Upstreams[cfg.Server.DefaultUpstream]; !ok {
			errs = append(errs, FieldError{
				Field:   "server.default_upstream",
				Message: fmt.Sprintf("upstream %q is not configured", cfg.Server.DefaultUpstream),
			})
		}
	}
	errs = append(errs, validateBatching(&cfg.Batching)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateServer validates server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.idle_timeout",
			Message: "idle timeout must be positive",
		})
	}

	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}
	if cfg.MaxHeaderBytes > 10*1024*1024 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes exceeds reasonable limit (10MB)",
		})
	}

	return errs
}

// validateUpstreams validates upstream configurations.
func validateUpstreams(upstreams map[string]UpstreamConfig) []FieldError {
	var errs []FieldError

	if len(upstreams) == 0 {
		errs = append(errs, FieldError{
			Field:   "upstreams",
			Message: "at least one upstream must be configured",
		})
		return errs
	}

	for name, up := range upstreams {
		field := func(suffix string) string {
			return fmt.Sprintf("upstreams.%s.%s", name, suffix)
		}

		if up.BaseURL == "" {
			errs = append(errs, FieldError{
				Field:   field("base_url"),
				Message: "base URL is required",
			})
		} else if u, err := url.Parse(up.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   field("base_url"),
				Message: fmt.Sprintf("invalid base URL %q", up.BaseURL),
			})
		}

		if up.Timeout < 0 {
			errs = append(errs, FieldError{
				Field:   field("timeout"),
				Message: "timeout must be positive",
			})
		}

		if up.Pool.MinConnections < 1 {
			errs = append(errs, FieldError{
				Field:   field("pool.min_connections"),
				Message: "min connections must be at least 1",
			})
		}
		if up.Pool.MaxConnections < up.Pool.MinConnections {
			errs = append(errs, FieldError{
				Field:   field("pool.max_connections"),
				Message: "max connections must be at least min connections",
			})
		}
		if up.Pool.AcquireTimeout < 0 {
			errs = append(errs, FieldError{
				Field:   field("pool.acquire_timeout"),
				Message: "acquire timeout must be positive",
			})
		}

		if up.Pipeline.MaxConcurrentPerConnection < 1 {
			errs = append(errs, FieldError{
				Field:   field("pipeline.max_concurrent_per_connection"),
				Message: "max concurrent per connection must be at least 1",
			})
		}
		if up.Pipeline.MaxQueueSize < 1 {
			errs = append(errs, FieldError{
				Field:   field("pipeline.max_queue_size"),
				Message: "max queue size must be at least 1",
			})
		}
		if up.Pipeline.QueueTimeout < 0 {
			errs = append(errs, FieldError{
				Field:   field("pipeline.queue_timeout"),
				Message: "queue timeout must be positive",
			})
		}
	}

	return errs
}

// validateBatching validates batching configuration.
func validateBatching(cfg *BatchingConfig) []FieldError {
	var errs []FieldError

	if cfg.Window < 0 {
		errs = append(errs, FieldError{
			Field:   "batching.window",
			Message: "window must be positive",
		})
	}
	if cfg.MaxBatchSize < 1 {
		errs = append(errs, FieldError{
			Field:   "batching.max_batch_size",
			Message: "max batch size must be at least 1",
		})
	}
	if cfg.MaxQueueSize < 1 {
		errs = append(errs, FieldError{
			Field:   "batching.max_queue_size",
			Message: "max queue size must be at least 1",
		})
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid level %q (must be debug, info, warn, or error)", cfg.Logging.Level),
		})
	}

	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid format %q (must be json or text)", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}

	return errs
}

// validateStorage validates storage configuration.
func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory", "sqlite":
	default:
		errs = append(errs, FieldError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend %q (must be memory or sqlite)", cfg.Backend),
		})
	}

	if cfg.Backend == "sqlite" && cfg.SQLite.Path == "" {
		errs = append(errs, FieldError{
			Field:   "storage.sqlite.path",
			Message: "path is required for the sqlite backend",
		})
	}

	if cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{
			Field:   "storage.retention.days",
			Message: "retention days must be non-negative",
		})
	}

	if cfg.Retention.PruneSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Retention.PruneSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "storage.retention.prune_schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.Retention.PruneSchedule, err),
			})
		}
	}

	return errs
}
