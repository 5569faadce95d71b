package config

import (
	"fmt"
	"sync"
)

// The process-wide configuration. Written once by Initialize, replaced
// atomically by ReloadConfig, read everywhere else.
var (
	current *Config
	mu      sync.RWMutex
	once    sync.Once
)

// Initialize loads the configuration from path, applies environment
// overrides, and installs it as the process-wide instance. Only the first
// call has any effect.
func Initialize(path string) error {
	var initErr error
	once.Do(func() {
		cfg, err := LoadConfigWithEnvOverrides(path)
		if err != nil {
			initErr = err
			return
		}
		SetConfig(cfg)
	})
	return initErr
}

// GetConfig returns the process-wide configuration, or nil before a
// successful Initialize. Tests should pass explicit Config values instead
// of reading the singleton.
func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// SetConfig replaces the process-wide configuration. Intended for tests;
// production code goes through Initialize and ReloadConfig.
func SetConfig(cfg *Config) {
	mu.Lock()
	current = cfg
	mu.Unlock()
}

// ReloadConfig re-reads the file at path and swaps in the result. On any
// load or validation error the running configuration is kept.
func ReloadConfig(path string) error {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}
	SetConfig(cfg)
	return nil
}

// MustGetConfig returns the process-wide configuration, panicking if
// Initialize has not run. Use only after startup has completed.
func MustGetConfig() *Config {
	cfg := GetConfig()
	if cfg == nil {
		panic("configuration not initialized: call Initialize first")
	}
	return cfg
}
