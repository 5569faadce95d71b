// Package config defines the Proxima configuration model and its loading
// pipeline.
//
// Configuration is read from a single YAML file, defaulted, overridden from
// PROXIMA_* environment variables, and validated, in that order. The final
// Config is immutable by convention: callers receive a pointer and must not
// mutate shared sections after startup.
//
// # Loading
//
//	cfg, err := config.LoadConfigWithEnvOverrides("proxima.yaml")
//
// Environment variables follow PROXIMA_SECTION_FIELD naming, for example
// PROXIMA_SERVER_LISTEN_ADDRESS or PROXIMA_BATCHING_WINDOW. Per-upstream
// overrides use PROXIMA_UPSTREAMS_<NAME>_<FIELD>.
//
// # Hot reload
//
// Watcher observes the configuration file with fsnotify and invokes a reload
// callback after a debounce interval. Only sections that are safe to swap at
// runtime (batching toggles, log level) should be applied by the callback;
// structural sections such as upstream pool sizes require a restart.
package config
