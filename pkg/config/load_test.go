package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeConfigFile writes YAML content to a temp file and returns its path.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "proxima.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

const minimalConfig = `
upstreams:
  openai:
    base_url: "https://api.openai.com/v1"
    api_key: "sk-test"
`

// ============================================================================
// LoadConfig
// ============================================================================

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, minimalConfig)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("expected default listen address, got %q", cfg.Server.ListenAddress)
	}
	if cfg.Server.ReadTimeout != DefaultReadTimeout {
		t.Errorf("expected default read timeout, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Batching.Window != DefaultBatchWindow {
		t.Errorf("expected default batch window, got %v", cfg.Batching.Window)
	}
	if cfg.Storage.Backend != DefaultStorageBackend {
		t.Errorf("expected default storage backend, got %q", cfg.Storage.Backend)
	}

	up, ok := cfg.Upstreams["openai"]
	if !ok {
		t.Fatal("expected openai upstream present")
	}
	if up.Pool.MinConnections != DefaultPoolMinConnections {
		t.Errorf("expected default min connections, got %d", up.Pool.MinConnections)
	}
	if up.Pool.MaxConnections != DefaultPoolMaxConnections {
		t.Errorf("expected default max connections, got %d", up.Pool.MaxConnections)
	}
	if up.Pipeline.MaxConcurrentPerConnection != DefaultPipelineMaxConcurrent {
		t.Errorf("expected default pipeline depth, got %d", up.Pipeline.MaxConcurrentPerConnection)
	}
	if up.Timeout != DefaultUpstreamTimeout {
		t.Errorf("expected default upstream timeout, got %v", up.Timeout)
	}
}

func TestLoadConfig_ExplicitValuesPreserved(t *testing.T) {
	path := writeConfigFile(t, `
server:
  listen_address: "0.0.0.0:9090"
  read_timeout: 10s
upstreams:
  anthropic:
    base_url: "https://api.anthropic.com"
    timeout: 90s
    pool:
      min_connections: 4
      max_connections: 16
batching:
  enabled: true
  window: 25ms
  max_batch_size: 5
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9090" {
		t.Errorf("listen address overridden: %q", cfg.Server.ListenAddress)
	}
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("read timeout overridden: %v", cfg.Server.ReadTimeout)
	}
	up := cfg.Upstreams["anthropic"]
	if up.Pool.MinConnections != 4 || up.Pool.MaxConnections != 16 {
		t.Errorf("pool sizes overridden: %d/%d", up.Pool.MinConnections, up.Pool.MaxConnections)
	}
	if up.Timeout != 90*time.Second {
		t.Errorf("upstream timeout overridden: %v", up.Timeout)
	}
	if !cfg.Batching.Enabled || cfg.Batching.Window != 25*time.Millisecond || cfg.Batching.MaxBatchSize != 5 {
		t.Errorf("batching section overridden: %+v", cfg.Batching)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	path := writeConfigFile(t, "upstreams: [not: valid: yaml")
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoadConfig_InvalidConfigRejected(t *testing.T) {
	path := writeConfigFile(t, `
upstreams:
  bad:
    base_url: ""
`)
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected validation error for empty base URL")
	}
}

// ============================================================================
// Environment overrides
// ============================================================================

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, minimalConfig)

	t.Setenv("PROXIMA_SERVER_LISTEN_ADDRESS", "0.0.0.0:8888")
	t.Setenv("PROXIMA_BATCHING_ENABLED", "true")
	t.Setenv("PROXIMA_BATCHING_WINDOW", "75ms")
	t.Setenv("PROXIMA_UPSTREAMS_OPENAI_API_KEY", "sk-from-env")
	t.Setenv("PROXIMA_STORAGE_RETENTION_DAYS", "7")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() failed: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:8888" {
		t.Errorf("expected env listen address, got %q", cfg.Server.ListenAddress)
	}
	if !cfg.Batching.Enabled {
		t.Error("expected batching enabled from env")
	}
	if cfg.Batching.Window != 75*time.Millisecond {
		t.Errorf("expected env batch window, got %v", cfg.Batching.Window)
	}
	if cfg.Upstreams["openai"].APIKey != "sk-from-env" {
		t.Errorf("expected env API key, got %q", cfg.Upstreams["openai"].APIKey)
	}
	if cfg.Storage.Retention.Days != 7 {
		t.Errorf("expected env retention days, got %d", cfg.Storage.Retention.Days)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidValuesIgnored(t *testing.T) {
	path := writeConfigFile(t, minimalConfig)

	t.Setenv("PROXIMA_SERVER_READ_TIMEOUT", "not-a-duration")
	t.Setenv("PROXIMA_BATCHING_MAX_BATCH_SIZE", "not-a-number")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() failed: %v", err)
	}

	if cfg.Server.ReadTimeout != DefaultReadTimeout {
		t.Errorf("unparseable duration should be ignored, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Batching.MaxBatchSize != DefaultBatchMaxBatchSize {
		t.Errorf("unparseable int should be ignored, got %d", cfg.Batching.MaxBatchSize)
	}
}
