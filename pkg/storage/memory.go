package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryBackend implements Backend using in-memory storage.
// This is the default backend and provides fast access with no persistence.
// All data is lost when the process exits.
//
// MemoryBackend is thread-safe and supports concurrent access.
type MemoryBackend struct {
	mu         sync.RWMutex
	records    []*UsageRecord
	maxRecords int
}

// MemoryBackendConfig configures the memory backend.
type MemoryBackendConfig struct {
	// MaxRecords is the maximum number of records to store.
	// Oldest records are evicted when this limit is reached.
	// Default: 100,000
	MaxRecords int
}

// NewMemoryBackend creates a new in-memory storage backend with default
// settings.
func NewMemoryBackend() *MemoryBackend {
	return NewMemoryBackendWithConfig(MemoryBackendConfig{})
}

// NewMemoryBackendWithConfig creates a new in-memory backend with custom
// configuration.
func NewMemoryBackendWithConfig(cfg MemoryBackendConfig) *MemoryBackend {
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = 100000
	}
	return &MemoryBackend{maxRecords: cfg.MaxRecords}
}

// Insert stores a record, assigning ID and CreatedAt when unset.
func (m *MemoryBackend) Insert(ctx context.Context, rec *UsageRecord) error {
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if rec.Upstream == "" {
		return fmt.Errorf("upstream cannot be empty")
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.records) >= m.maxRecords {
		// Records are appended in arrival order, so the head is oldest.
		m.records = m.records[1:]
	}
	m.records = append(m.records, rec)

	return nil
}

// Query returns records matching the filter, newest first.
func (m *MemoryBackend) Query(ctx context.Context, filter Filter) ([]*UsageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*UsageRecord
	for i := len(m.records) - 1; i >= 0; i-- {
		rec := m.records[i]
		if !matchesFilter(rec, filter) {
			continue
		}
		out = append(out, rec)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Summarize aggregates records created at or after since.
func (m *MemoryBackend) Summarize(ctx context.Context, since time.Time) (map[string]*UsageSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summaries := make(map[string]*UsageSummary)
	totals := make(map[string]time.Duration)

	for _, rec := range m.records {
		if rec.CreatedAt.Before(since) {
			continue
		}
		s := summaries[rec.Upstream]
		if s == nil {
			s = &UsageSummary{}
			summaries[rec.Upstream] = s
		}
		s.Requests++
		if rec.Batched {
			s.Batched++
		}
		s.Tokens += int64(rec.TokensUsed)
		totals[rec.Upstream] += rec.Duration
	}

	for upstream, s := range summaries {
		if s.Requests > 0 {
			s.AverageDuration = totals[upstream] / time.Duration(s.Requests)
		}
	}

	return summaries, nil
}

// Count returns the total number of stored records.
func (m *MemoryBackend) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.records)), nil
}

// Cleanup removes records created before the cutoff.
func (m *MemoryBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	deleted := 0
	for _, rec := range m.records {
		if rec.CreatedAt.Before(olderThan) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	m.records = kept

	return deleted, nil
}

// Close releases backend resources.
func (m *MemoryBackend) Close() error {
	return nil
}

func matchesFilter(rec *UsageRecord, filter Filter) bool {
	if filter.Upstream != "" && rec.Upstream != filter.Upstream {
		return false
	}
	if filter.Model != "" && rec.Model != filter.Model {
		return false
	}
	if !filter.Since.IsZero() && rec.CreatedAt.Before(filter.Since) {
		return false
	}
	return true
}
