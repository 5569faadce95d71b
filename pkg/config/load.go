package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any
// errors. The configuration is not modified by environment variables; use
// LoadConfigWithEnvOverrides for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention PROXIMA_SECTION_FIELD (e.g., PROXIMA_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables use the format PROXIMA_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("PROXIMA_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("PROXIMA_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("PROXIMA_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if val := os.Getenv("PROXIMA_SERVER_IDLE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.IdleTimeout = d
		}
	}
	if val := os.Getenv("PROXIMA_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}
	if val := os.Getenv("PROXIMA_SERVER_MAX_HEADER_BYTES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Server.MaxHeaderBytes = i
		}
	}
	if val := os.Getenv("PROXIMA_SERVER_DEFAULT_UPSTREAM"); val != "" {
		cfg.Server.DefaultUpstream = val
	}

	// Upstream overrides for every upstream named in the file, so API keys
	// can live in the environment instead of on disk.
	for name := range cfg.Upstreams {
		applyUpstreamEnvOverrides(cfg, name)
	}

	// Batching overrides
	if val := os.Getenv("PROXIMA_BATCHING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Batching.Enabled = b
		}
	}
	if val := os.Getenv("PROXIMA_BATCHING_WINDOW"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Batching.Window = d
		}
	}
	if val := os.Getenv("PROXIMA_BATCHING_MAX_BATCH_SIZE"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Batching.MaxBatchSize = i
		}
	}
	if val := os.Getenv("PROXIMA_BATCHING_MAX_QUEUE_SIZE"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Batching.MaxQueueSize = i
		}
	}

	// Telemetry overrides
	if val := os.Getenv("PROXIMA_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("PROXIMA_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("PROXIMA_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("PROXIMA_TELEMETRY_METRICS_PATH"); val != "" {
		cfg.Telemetry.Metrics.Path = val
	}

	// Storage overrides
	if val := os.Getenv("PROXIMA_STORAGE_BACKEND"); val != "" {
		cfg.Storage.Backend = val
	}
	if val := os.Getenv("PROXIMA_STORAGE_SQLITE_PATH"); val != "" {
		cfg.Storage.SQLite.Path = val
	}
	if val := os.Getenv("PROXIMA_STORAGE_RETENTION_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Storage.Retention.Days = i
		}
	}
	if val := os.Getenv("PROXIMA_STORAGE_RETENTION_PRUNE_SCHEDULE"); val != "" {
		cfg.Storage.Retention.PruneSchedule = val
	}
}

// applyUpstreamEnvOverrides applies environment variable overrides for a
// specific upstream. Upstream environment variables follow the format
// PROXIMA_UPSTREAMS_<NAME>_<FIELD> where NAME is the uppercase upstream name.
func applyUpstreamEnvOverrides(cfg *Config, name string) {
	up := cfg.Upstreams[name]
	prefix := fmt.Sprintf("PROXIMA_UPSTREAMS_%s_", strings.ToUpper(name))

	if val := os.Getenv(prefix + "BASE_URL"); val != "" {
		up.BaseURL = val
	}
	if val := os.Getenv(prefix + "API_KEY"); val != "" {
		up.APIKey = val
	}
	if val := os.Getenv(prefix + "TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			up.Timeout = d
		}
	}
	if val := os.Getenv(prefix + "POOL_MIN_CONNECTIONS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			up.Pool.MinConnections = i
		}
	}
	if val := os.Getenv(prefix + "POOL_MAX_CONNECTIONS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			up.Pool.MaxConnections = i
		}
	}
	if val := os.Getenv(prefix + "POOL_ACQUIRE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			up.Pool.AcquireTimeout = d
		}
	}

	cfg.Upstreams[name] = up
}
