package config

import (
	"strings"
	"testing"
)

// validConfig returns a fully defaulted configuration with one upstream.
func validConfig() *Config {
	cfg := &Config{
		Upstreams: map[string]UpstreamConfig{
			"openai": {BaseURL: "https://api.openai.com/v1"},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestValidate_FieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "empty listen address",
			mutate: func(c *Config) { c.Server.ListenAddress = "" },
			field:  "server.listen_address",
		},
		{
			name:   "negative read timeout",
			mutate: func(c *Config) { c.Server.ReadTimeout = -1 },
			field:  "server.read_timeout",
		},
		{
			name:   "no upstreams",
			mutate: func(c *Config) { c.Upstreams = nil },
			field:  "upstreams",
		},
		{
			name: "invalid base URL",
			mutate: func(c *Config) {
				up := c.Upstreams["openai"]
				up.BaseURL = "not a url"
				c.Upstreams["openai"] = up
			},
			field: "upstreams.openai.base_url",
		},
		{
			name: "max below min connections",
			mutate: func(c *Config) {
				up := c.Upstreams["openai"]
				up.Pool.MinConnections = 8
				up.Pool.MaxConnections = 2
				c.Upstreams["openai"] = up
			},
			field: "upstreams.openai.pool.max_connections",
		},
		{
			name: "zero pipeline depth",
			mutate: func(c *Config) {
				up := c.Upstreams["openai"]
				up.Pipeline.MaxConcurrentPerConnection = -1
				c.Upstreams["openai"] = up
			},
			field: "upstreams.openai.pipeline.max_concurrent_per_connection",
		},
		{
			name:   "zero batch size",
			mutate: func(c *Config) { c.Batching.MaxBatchSize = -1 },
			field:  "batching.max_batch_size",
		},
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Telemetry.Logging.Level = "verbose" },
			field:  "telemetry.logging.level",
		},
		{
			name:   "bad log format",
			mutate: func(c *Config) { c.Telemetry.Logging.Format = "xml" },
			field:  "telemetry.logging.format",
		},
		{
			name:   "unknown storage backend",
			mutate: func(c *Config) { c.Storage.Backend = "postgres" },
			field:  "storage.backend",
		},
		{
			name:   "bad prune schedule",
			mutate: func(c *Config) { c.Storage.Retention.PruneSchedule = "every day at 3" },
			field:  "storage.retention.prune_schedule",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}

			verr, ok := err.(ValidationError)
			if !ok {
				t.Fatalf("expected ValidationError, got %T", err)
			}

			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.field {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("expected error on field %q, got %v", tt.field, verr.Errors)
			}
		})
	}
}

func TestValidationError_MultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.ListenAddress = ""
	cfg.Batching.MaxBatchSize = -1

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}

	verr := err.(ValidationError)
	if len(verr.Errors) < 2 {
		t.Errorf("expected at least 2 errors, got %d", len(verr.Errors))
	}
	if !strings.Contains(verr.Error(), "errors") {
		t.Errorf("multi-error message should report a count: %q", verr.Error())
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg := validConfig()
	before := *cfg

	ApplyDefaults(cfg)

	if cfg.Server != before.Server {
		t.Error("server section changed by second ApplyDefaults")
	}
	if cfg.Batching != before.Batching {
		t.Error("batching section changed by second ApplyDefaults")
	}
}
