package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"proxima-hq/proxima/pkg/config"
	"proxima-hq/proxima/pkg/server"
	"proxima-hq/proxima/pkg/storage"
	"proxima-hq/proxima/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	watch         bool
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Proxima proxy server",
	Long: `Start the Proxima proxy server with the specified configuration.

The server listens on the configured address, coalesces and pipelines
client completion requests, and forwards them over pooled connections to
the configured upstream endpoints.

Examples:
  # Start with default config
  proxima run

  # Start with custom config
  proxima run --config /etc/proxima/config.yaml

  # Override listen address
  proxima run --listen 0.0.0.0:8080

  # Reload configuration when the file changes
  proxima run --watch

  # Validate config without starting server
  proxima run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.watch, "watch", false, "reload configuration on file changes")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := config.GetConfig()

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.InstallDefault()

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Proxima v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Usage history backend
	store, err := newStorageBackend(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	fmt.Printf("✓ Storage initialized (%s)\n", cfg.Storage.Backend)

	// Scheduled retention pruning
	if cfg.Storage.Retention.PruneSchedule != "" && cfg.Storage.Retention.Days > 0 {
		pruner := storage.NewPruner(store, storage.PrunerConfig{
			RetentionDays: cfg.Storage.Retention.Days,
			PruneSchedule: cfg.Storage.Retention.PruneSchedule,
		})
		scheduler := storage.NewScheduler(pruner)
		if err := scheduler.Start(ctx); err != nil {
			slog.Warn("failed to start retention scheduler", "error", err)
		} else {
			defer scheduler.Stop()
			if next := scheduler.NextRun(); next != nil {
				slog.Debug("retention scheduler started", "next_run", next)
			}
		}
	}

	srv, err := server.New(cfg, store)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Optional config hot reload. Only batching can be toggled without a
	// restart; other changes take effect on the next start.
	if runFlags.watch {
		watcher, err := config.NewWatcher(cfgFile, config.DefaultDebounceInterval, slog.Default())
		if err != nil {
			return fmt.Errorf("failed to create config watcher: %w", err)
		}
		go func() {
			err := watcher.Watch(ctx, func() error {
				if err := config.ReloadConfig(cfgFile); err != nil {
					return err
				}
				srv.SetBatchingEnabled(config.GetConfig().Batching.Enabled)
				return nil
			})
			if err != nil {
				slog.Error("config watcher exited", "error", err)
			}
		}()
		defer watcher.Stop()
		fmt.Println("✓ Configuration watcher started")
	}

	fmt.Println()
	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/healthz\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Start blocks until a signal, context cancellation, or server error.
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	fmt.Println("✓ Server stopped")
	return nil
}

func newStorageBackend(cfg *config.Config) (storage.Backend, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return storage.NewSQLiteBackendWithConfig(storage.SQLiteBackendConfig{
			DBPath:       cfg.Storage.SQLite.Path,
			BusyTimeout:  cfg.Storage.SQLite.BusyTimeout,
			MaxOpenConns: cfg.Storage.SQLite.MaxOpenConns,
		})
	case "memory", "":
		return storage.NewMemoryBackendWithConfig(storage.MemoryBackendConfig{
			MaxRecords: cfg.Storage.Memory.MaxRecords,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}
}
