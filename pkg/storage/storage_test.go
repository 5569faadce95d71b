package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// backends returns one instance of every Backend implementation, named for
// subtests.
func backends(t *testing.T) map[string]Backend {
	t.Helper()

	sqlite, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("NewSQLiteBackend() failed: %v", err)
	}

	return map[string]Backend{
		"memory": NewMemoryBackend(),
		"sqlite": sqlite,
	}
}

func record(upstream, model, status string, batched bool, tokens int, age time.Duration) *UsageRecord {
	return &UsageRecord{
		Upstream:   upstream,
		Model:      model,
		Status:     status,
		Priority:   "normal",
		Batched:    batched,
		BatchSize:  1,
		TokensUsed: tokens,
		Duration:   100 * time.Millisecond,
		CreatedAt:  time.Now().Add(-age),
	}
}

// ============================================================================
// Insert and Query
// ============================================================================

func TestBackend_InsertAssignsIDAndTimestamp(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer b.Close()
			ctx := context.Background()

			rec := &UsageRecord{Upstream: "openai", Status: "success", BatchSize: 1}
			if err := b.Insert(ctx, rec); err != nil {
				t.Fatalf("Insert() failed: %v", err)
			}
			if rec.ID == "" {
				t.Error("expected ID assigned on insert")
			}
			if rec.CreatedAt.IsZero() {
				t.Error("expected CreatedAt assigned on insert")
			}
		})
	}
}

func TestBackend_InsertValidation(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer b.Close()
			ctx := context.Background()

			if err := b.Insert(ctx, nil); err == nil {
				t.Error("expected error for nil record")
			}
			if err := b.Insert(ctx, &UsageRecord{}); err == nil {
				t.Error("expected error for empty upstream")
			}
		})
	}
}

func TestBackend_QueryFilters(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer b.Close()
			ctx := context.Background()

			seed := []*UsageRecord{
				record("openai", "gpt-4", "success", true, 100, 3*time.Hour),
				record("openai", "gpt-4", "error", false, 0, 2*time.Hour),
				record("openai", "gpt-3.5-turbo", "success", false, 50, time.Hour),
				record("anthropic", "claude-3", "success", true, 200, time.Minute),
			}
			for _, rec := range seed {
				if err := b.Insert(ctx, rec); err != nil {
					t.Fatalf("Insert() failed: %v", err)
				}
			}

			all, err := b.Query(ctx, Filter{})
			if err != nil {
				t.Fatalf("Query() failed: %v", err)
			}
			if len(all) != 4 {
				t.Errorf("expected 4 records, got %d", len(all))
			}
			// Newest first.
			if all[0].Upstream != "anthropic" {
				t.Errorf("expected newest record first, got %s", all[0].Upstream)
			}

			byUpstream, err := b.Query(ctx, Filter{Upstream: "openai"})
			if err != nil {
				t.Fatalf("Query(upstream) failed: %v", err)
			}
			if len(byUpstream) != 3 {
				t.Errorf("expected 3 openai records, got %d", len(byUpstream))
			}

			byModel, err := b.Query(ctx, Filter{Model: "gpt-4"})
			if err != nil {
				t.Fatalf("Query(model) failed: %v", err)
			}
			if len(byModel) != 2 {
				t.Errorf("expected 2 gpt-4 records, got %d", len(byModel))
			}

			recent, err := b.Query(ctx, Filter{Since: time.Now().Add(-90 * time.Minute)})
			if err != nil {
				t.Fatalf("Query(since) failed: %v", err)
			}
			if len(recent) != 2 {
				t.Errorf("expected 2 recent records, got %d", len(recent))
			}

			limited, err := b.Query(ctx, Filter{Limit: 2})
			if err != nil {
				t.Fatalf("Query(limit) failed: %v", err)
			}
			if len(limited) != 2 {
				t.Errorf("expected limit of 2, got %d", len(limited))
			}
		})
	}
}

func TestBackend_RoundTripFields(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer b.Close()
			ctx := context.Background()

			in := &UsageRecord{
				Upstream:   "openai",
				Model:      "gpt-4",
				Status:     "success",
				Priority:   "high",
				Batched:    true,
				BatchSize:  5,
				TokensUsed: 1234,
				Duration:   250 * time.Millisecond,
				QueueWait:  40 * time.Millisecond,
			}
			if err := b.Insert(ctx, in); err != nil {
				t.Fatalf("Insert() failed: %v", err)
			}

			out, err := b.Query(ctx, Filter{Upstream: "openai"})
			if err != nil {
				t.Fatalf("Query() failed: %v", err)
			}
			if len(out) != 1 {
				t.Fatalf("expected 1 record, got %d", len(out))
			}

			got := out[0]
			if got.ID != in.ID || got.Model != "gpt-4" || got.Priority != "high" {
				t.Errorf("identity fields lost: %+v", got)
			}
			if !got.Batched || got.BatchSize != 5 || got.TokensUsed != 1234 {
				t.Errorf("batch fields lost: %+v", got)
			}
			if got.Duration != 250*time.Millisecond || got.QueueWait != 40*time.Millisecond {
				t.Errorf("timing fields lost: %+v", got)
			}
		})
	}
}

// ============================================================================
// Summarize, Count, Cleanup
// ============================================================================

func TestBackend_Summarize(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer b.Close()
			ctx := context.Background()

			seed := []*UsageRecord{
				record("openai", "gpt-4", "success", true, 100, time.Minute),
				record("openai", "gpt-4", "success", false, 300, time.Minute),
				record("anthropic", "claude-3", "success", false, 50, time.Minute),
				record("openai", "gpt-4", "success", false, 999, 48*time.Hour), // outside window
			}
			for _, rec := range seed {
				if err := b.Insert(ctx, rec); err != nil {
					t.Fatalf("Insert() failed: %v", err)
				}
			}

			summaries, err := b.Summarize(ctx, time.Now().Add(-time.Hour))
			if err != nil {
				t.Fatalf("Summarize() failed: %v", err)
			}

			oa := summaries["openai"]
			if oa == nil {
				t.Fatal("expected openai summary")
			}
			if oa.Requests != 2 || oa.Batched != 1 || oa.Tokens != 400 {
				t.Errorf("unexpected openai summary: %+v", oa)
			}
			if oa.AverageDuration != 100*time.Millisecond {
				t.Errorf("unexpected average duration: %v", oa.AverageDuration)
			}

			an := summaries["anthropic"]
			if an == nil || an.Requests != 1 || an.Tokens != 50 {
				t.Errorf("unexpected anthropic summary: %+v", an)
			}
		})
	}
}

func TestBackend_CountAndCleanup(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer b.Close()
			ctx := context.Background()

			for _, rec := range []*UsageRecord{
				record("openai", "gpt-4", "success", false, 1, 72*time.Hour),
				record("openai", "gpt-4", "success", false, 1, 48*time.Hour),
				record("openai", "gpt-4", "success", false, 1, time.Minute),
			} {
				if err := b.Insert(ctx, rec); err != nil {
					t.Fatalf("Insert() failed: %v", err)
				}
			}

			count, err := b.Count(ctx)
			if err != nil {
				t.Fatalf("Count() failed: %v", err)
			}
			if count != 3 {
				t.Errorf("expected 3 records, got %d", count)
			}

			deleted, err := b.Cleanup(ctx, time.Now().Add(-24*time.Hour))
			if err != nil {
				t.Fatalf("Cleanup() failed: %v", err)
			}
			if deleted != 2 {
				t.Errorf("expected 2 deleted, got %d", deleted)
			}

			count, err = b.Count(ctx)
			if err != nil {
				t.Fatalf("Count() failed: %v", err)
			}
			if count != 1 {
				t.Errorf("expected 1 record after cleanup, got %d", count)
			}
		})
	}
}

// ============================================================================
// Memory backend eviction
// ============================================================================

func TestMemoryBackend_EvictsOldestAtCapacity(t *testing.T) {
	b := NewMemoryBackendWithConfig(MemoryBackendConfig{MaxRecords: 3})
	defer b.Close()
	ctx := context.Background()

	for i, model := range []string{"m1", "m2", "m3", "m4"} {
		rec := record("openai", model, "success", false, 1, time.Duration(10-i)*time.Minute)
		if err := b.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert() failed: %v", err)
		}
	}

	count, _ := b.Count(ctx)
	if count != 3 {
		t.Errorf("expected capacity of 3, got %d", count)
	}

	evicted, err := b.Query(ctx, Filter{Model: "m1"})
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(evicted) != 0 {
		t.Error("expected first record evicted")
	}
}

// ============================================================================
// SQLite persistence
// ============================================================================

func TestSQLiteBackend_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.db")
	ctx := context.Background()

	b, err := NewSQLiteBackend(path)
	if err != nil {
		t.Fatalf("NewSQLiteBackend() failed: %v", err)
	}
	if err := b.Insert(ctx, record("openai", "gpt-4", "success", false, 10, 0)); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	reopened, err := NewSQLiteBackend(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	count, err := reopened.Count(ctx)
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected record to survive reopen, got %d", count)
	}
}

func TestSQLiteBackend_RequiresPath(t *testing.T) {
	if _, err := NewSQLiteBackendWithConfig(SQLiteBackendConfig{}); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestSQLiteBackend_CloseIdempotent(t *testing.T) {
	b, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("NewSQLiteBackend() failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("first Close() failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
}
