package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"proxima-hq/proxima/pkg/config"
	"proxima-hq/proxima/pkg/dispatch/registry"
	"proxima-hq/proxima/pkg/server/handlers"
	"proxima-hq/proxima/pkg/server/middleware"
	"proxima-hq/proxima/pkg/storage"
	"proxima-hq/proxima/pkg/telemetry/metrics"
)

// gaugeRefreshInterval is how often component gauges are pushed to the
// metrics collector.
const gaugeRefreshInterval = 5 * time.Second

// Server is Proxima's HTTP proxy server.
type Server struct {
	config      *config.Config
	registry    *registry.Registry
	dispatchers map[string]*Dispatcher
	collector   *metrics.Collector
	store       storage.Backend
	logger      *slog.Logger

	defaultUpstream string

	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New builds a server from configuration: one dispatch chain per upstream,
// the metrics collector, and the usage store. The store may be nil to
// disable usage recording.
func New(cfg *config.Config, store storage.Backend) (*Server, error) {
	s := &Server{
		config:       cfg,
		registry:     registry.New(),
		dispatchers:  make(map[string]*Dispatcher, len(cfg.Upstreams)),
		collector:    metrics.NewCollector(&cfg.Telemetry.Metrics),
		store:        store,
		logger:       slog.Default().With("component", "server"),
		shutdownChan: make(chan struct{}),
	}

	for name, upCfg := range cfg.Upstreams {
		d, err := NewDispatcher(name, upCfg, cfg.Batching)
		if err != nil {
			s.teardownDispatchers()
			return nil, fmt.Errorf("failed to build dispatcher for upstream %q: %w", name, err)
		}
		s.dispatchers[name] = d
		s.registry.Register(name, d.Pair())
	}

	s.defaultUpstream = cfg.Server.DefaultUpstream
	if s.defaultUpstream == "" && len(cfg.Upstreams) == 1 {
		for name := range cfg.Upstreams {
			s.defaultUpstream = name
		}
	}

	return s, nil
}

// Registry returns the server's dispatch registry.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Start warms the pools, starts the HTTP listener, and blocks until
// shutdown is triggered by the context, a signal, or Shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	for name, d := range s.dispatchers {
		if err := d.WarmUp(); err != nil {
			s.logger.Warn("pool warm-up failed", "upstream", name, "error", err)
		}
	}

	s.httpServer = &http.Server{
		Addr:           s.config.Server.ListenAddress,
		Handler:        s.Handler(),
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		IdleTimeout:    s.config.Server.IdleTimeout,
		MaxHeaderBytes: s.config.Server.MaxHeaderBytes,
	}

	refreshCtx, stopRefresh := context.WithCancel(context.Background())
	defer stopRefresh()
	go s.refreshGauges(refreshCtx)

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting proxy server",
			"address", s.config.Server.ListenAddress,
			"upstreams", len(s.dispatchers),
		)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		return s.Shutdown(context.Background())
	}
}

// Stop triggers a graceful shutdown from another goroutine.
func (s *Server) Stop() {
	close(s.shutdownChan)
}

// Shutdown drains the server: the listener stops accepting, batch managers
// flush, pipelines and pools close, and the usage store is released. It
// waits for every pipeline to finish in-flight work up to the configured
// shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		timeout := s.config.Server.ShutdownTimeout
		s.logger.Info("initiating graceful shutdown", "timeout", timeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during listener shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		for _, d := range s.dispatchers {
			d.Drain(shutdownCtx)
		}
		s.waitForDrain(shutdownCtx)

		if s.store != nil {
			if err := s.store.Close(); err != nil {
				s.logger.Error("error closing usage store", "error", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("proxy server stopped")
	})

	return shutdownErr
}

// waitForDrain polls until every pipeline reports shutdown complete or the
// context expires.
func (s *Server) waitForDrain(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		drained := true
		for _, d := range s.dispatchers {
			if !d.pipeline.IsShutdownComplete() {
				drained = false
				break
			}
		}
		if drained {
			return
		}

		select {
		case <-ctx.Done():
			s.logger.Warn("drain timeout elapsed with requests still in flight")
			return
		case <-ticker.C:
		}
	}
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// SetBatchingEnabled toggles request coalescing on every dispatcher.
// Used by config hot reload; in-flight batch windows are unaffected.
func (s *Server) SetBatchingEnabled(enabled bool) {
	for _, d := range s.dispatchers {
		d.Batch().SetEnabled(enabled)
	}
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/v1/chat/completions", handlers.NewChatHandler(s, s))
	mux.Handle("/healthz", handlers.NewHealthHandler())
	mux.Handle("/readyz", handlers.NewReadyHandler(s))
	mux.Handle("/stats", handlers.NewStatsHandler(s.statsSnapshot))

	if s.config.Telemetry.Metrics.Enabled {
		path := s.config.Telemetry.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle(path, s.collector.Handler())
	}

	var handler http.Handler = mux
	handler = middleware.Logging(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recovery(handler)
	return handler
}

// teardownDispatchers releases dispatchers built before a construction
// failure.
func (s *Server) teardownDispatchers() {
	for _, d := range s.dispatchers {
		d.Drain(context.Background())
	}
}
