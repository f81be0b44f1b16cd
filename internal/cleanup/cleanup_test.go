package cleanup

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mailguard/ingest/internal/models"
	"github.com/mailguard/ingest/internal/ratelimit"
	"github.com/mailguard/ingest/internal/repository/memory"
)

func TestSweep(t *testing.T) {
	ctx := context.Background()
	db := memory.NewDB()
	store := db.Store()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	battery := 50

	for serial, seen := range map[string]time.Time{
		"SN-QUIET":  now.Add(-time.Hour),
		"SN-ACTIVE": now.Add(-time.Minute),
	} {
		if _, err := store.Status.Upsert(ctx, &models.StatusUpdate{Serial: serial, SeenAt: seen}); err != nil {
			t.Fatal(err)
		}
	}
	for _, recorded := range []time.Time{now.Add(-100 * 24 * time.Hour), now.Add(-time.Hour)} {
		if err := store.Health.Insert(ctx, &models.HealthSample{ID: recorded.String(), Serial: "SN-QUIET", BatteryLevel: &battery, RecordedAt: recorded}); err != nil {
			t.Fatal(err)
		}
	}

	svc := New(store.Status, store.Health, 15*time.Minute, 90*24*time.Hour, time.Minute, time.Second)
	svc.now = func() time.Time { return now }

	offline := make(chan int64, 1)
	svc.OnCleanup(EventDevicesOffline, func(n int64) { offline <- n })

	if err := svc.Sweep(ctx); err != nil {
		t.Fatal(err)
	}

	quiet, err := store.Status.Get(ctx, "SN-QUIET")
	if err != nil {
		t.Fatal(err)
	}
	if quiet.IsOnline {
		t.Fatal("silent device must be marked offline")
	}
	active, err := store.Status.Get(ctx, "SN-ACTIVE")
	if err != nil {
		t.Fatal(err)
	}
	if !active.IsOnline {
		t.Fatal("recently seen device must stay online")
	}

	if got := len(db.HealthSamples()); got != 1 {
		t.Fatalf("expected 1 health sample after pruning, got %d", got)
	}

	select {
	case n := <-offline:
		if n != 1 {
			t.Fatalf("expected 1 device offline, got %d", n)
		}
	case <-time.After(time.Second):
		t.Fatal("offline event not emitted")
	}
}

func TestSweepPrunesExpiredRateLimitWindows(t *testing.T) {
	ctx := context.Background()
	db := memory.NewDB()
	store := db.Store()
	limiter := ratelimit.NewMemoryLimiter()

	for i := 0; i < 500; i++ {
		if _, err := limiter.Allow(ctx, fmt.Sprintf("iot_%03d", i), 10, time.Millisecond); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := limiter.Allow(ctx, "iot_open", 10, time.Hour); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	svc := New(store.Status, store.Health, time.Minute, time.Hour, time.Minute, time.Second)
	svc.AddPruner("rate limit", limiter)
	pruned := make(chan int64, 1)
	svc.OnCleanup(EventStatePruned, func(n int64) { pruned <- n })

	if err := svc.Sweep(ctx); err != nil {
		t.Fatal(err)
	}
	if got := limiter.Len(); got != 1 {
		t.Fatalf("tracked keys after sweep = %d, want 1", got)
	}

	select {
	case n := <-pruned:
		if n != 500 {
			t.Fatalf("expected 500 pruned keys, got %d", n)
		}
	case <-time.After(time.Second):
		t.Fatal("prune event not emitted")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	db := memory.NewDB()
	store := db.Store()
	svc := New(store.Status, store.Health, time.Minute, time.Hour, 10*time.Millisecond, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
