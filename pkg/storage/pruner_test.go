package storage

import (
	"context"
	"testing"
	"time"
)

func TestPruner_DeletesExpiredRecords(t *testing.T) {
	b := NewMemoryBackend()
	defer b.Close()
	ctx := context.Background()

	for _, rec := range []*UsageRecord{
		record("openai", "gpt-4", "success", false, 1, 40*24*time.Hour),
		record("openai", "gpt-4", "success", false, 1, 10*24*time.Hour),
		record("openai", "gpt-4", "success", false, 1, time.Hour),
	} {
		if err := b.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert() failed: %v", err)
		}
	}

	p := NewPruner(b, PrunerConfig{RetentionDays: 30})
	deleted, err := p.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune() failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 record pruned, got %d", deleted)
	}

	count, _ := b.Count(ctx)
	if count != 2 {
		t.Errorf("expected 2 records remaining, got %d", count)
	}
}

func TestPruner_ZeroRetentionKeepsEverything(t *testing.T) {
	b := NewMemoryBackend()
	defer b.Close()
	ctx := context.Background()

	if err := b.Insert(ctx, record("openai", "gpt-4", "success", false, 1, 365*24*time.Hour)); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	p := NewPruner(b, PrunerConfig{RetentionDays: 0})
	deleted, err := p.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune() failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("expected nothing pruned, got %d", deleted)
	}
}

func TestScheduler_EmptyScheduleIsNoop(t *testing.T) {
	p := NewPruner(NewMemoryBackend(), PrunerConfig{RetentionDays: 30})
	s := NewScheduler(p)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if s.IsRunning() {
		t.Error("expected scheduler idle with empty schedule")
	}
	if s.NextRun() != nil {
		t.Error("expected no next run")
	}
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	p := NewPruner(NewMemoryBackend(), PrunerConfig{RetentionDays: 30, PruneSchedule: "not a cron"})
	s := NewScheduler(p)

	if err := s.Start(context.Background()); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

func TestScheduler_StartAndStop(t *testing.T) {
	p := NewPruner(NewMemoryBackend(), PrunerConfig{RetentionDays: 30, PruneSchedule: "0 3 * * *"})
	s := NewScheduler(p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !s.IsRunning() {
		t.Error("expected scheduler running")
	}
	if s.NextRun() == nil {
		t.Error("expected a next run time")
	}

	s.Stop()
	if s.IsRunning() {
		t.Error("expected scheduler stopped")
	}
}
