// Package registry keys ConnectionPool/PipeliningManager pairs by upstream
// name. The server process constructs one Registry at startup and passes it
// by reference; Reset exists for test isolation instead of a mutable
// package-level global.
package registry

import (
	"fmt"
	"sync"

	"proxima-hq/proxima/pkg/dispatch/pipeline"
	"proxima-hq/proxima/pkg/dispatch/pool"
)

// NotFoundError is returned by Get for an unknown upstream name.
type NotFoundError struct {
	// Upstream is the name that was looked up.
	Upstream string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no dispatch pair registered for upstream %q", e.Upstream)
}

// Pair is one upstream's connection pool and its pipelining manager.
type Pair struct {
	// Pool owns the upstream's bounded connection set.
	Pool *pool.Pool

	// Pipeline admits requests onto the pool's connections.
	Pipeline *pipeline.Manager
}

// Registry is a name-keyed collection of dispatch pairs.
type Registry struct {
	mu    sync.RWMutex
	pairs map[string]*Pair
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{pairs: make(map[string]*Pair)}
}

// Register stores a pair under name, replacing any previous entry.
func (r *Registry) Register(name string, pair *Pair) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pairs[name] = pair
}

// Get returns the pair registered for name.
func (r *Registry) Get(name string) (*Pair, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pair, ok := r.pairs[name]
	if !ok {
		return nil, &NotFoundError{Upstream: name}
	}
	return pair, nil
}

// Names returns the registered upstream names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.pairs))
	for name := range r.pairs {
		names = append(names, name)
	}
	return names
}

// Shutdown shuts down every registered pair: pipelines first so queued
// entries are rejected, then the pools underneath them.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, pair := range r.pairs {
		pair.Pipeline.Shutdown()
		pair.Pool.Shutdown()
	}
}

// Reset shuts down and removes every registered pair. Intended for test
// isolation and full rebuilds.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, pair := range r.pairs {
		pair.Pipeline.Shutdown()
		pair.Pool.Shutdown()
	}
	r.pairs = make(map[string]*Pair)
}
