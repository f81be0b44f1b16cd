package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryLimiterFixedWindow(t *testing.T) {
	l := NewMemoryLimiter()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d, err := l.Allow(ctx, "k", 3, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if d.Remaining != int64(3-i) {
			t.Errorf("request %d: remaining = %d, want %d", i, d.Remaining, 3-i)
		}
	}

	now = now.Add(10 * time.Minute)
	d, _ := l.Allow(ctx, "k", 3, time.Hour)
	if d.Allowed {
		t.Fatal("fourth request should be denied")
	}
	if d.RetryAfter != 50*time.Minute {
		t.Errorf("retry after = %v, want 50m", d.RetryAfter)
	}

	// other keys are independent
	if d, _ := l.Allow(ctx, "other", 3, time.Hour); !d.Allowed {
		t.Error("independent key should be allowed")
	}

	// lazy reset on the first request after expiry
	now = now.Add(time.Hour)
	d, _ = l.Allow(ctx, "k", 3, time.Hour)
	if !d.Allowed || d.Count != 1 {
		t.Errorf("expected fresh window, got %+v", d)
	}
}

func TestMemoryLimiterConcurrent(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()
	const limit = 100

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 250; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Allow(ctx, "shared", limit, time.Hour)
			if err != nil {
				t.Error(err)
				return
			}
			if d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != limit {
		t.Errorf("allowed %d requests, want exactly %d", allowed, limit)
	}
}

func TestMemoryLimiterPruneExpiredKeys(t *testing.T) {
	l := NewMemoryLimiter()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		if _, err := l.Allow(ctx, fmt.Sprintf("iot_%04d", i), 100, time.Hour); err != nil {
			t.Fatal(err)
		}
	}
	if got := l.Len(); got != 1000 {
		t.Fatalf("tracked keys = %d, want 1000", got)
	}

	now = now.Add(30 * time.Minute)
	if _, err := l.Allow(ctx, "iot_late", 100, time.Hour); err != nil {
		t.Fatal(err)
	}
	if removed := l.Prune(); removed != 0 {
		t.Fatalf("pruned %d keys inside their window", removed)
	}

	now = now.Add(31 * time.Minute)
	if removed := l.Prune(); removed != 1000 {
		t.Fatalf("pruned %d keys, want 1000", removed)
	}
	if got := l.Len(); got != 1 {
		t.Fatalf("tracked keys = %d, want 1 (window still open)", got)
	}

	now = now.Add(time.Hour)
	l.Prune()
	if got := l.Len(); got != 0 {
		t.Fatalf("tracked keys = %d, want 0", got)
	}

	// a pruned key starts a fresh window
	d, _ := l.Allow(ctx, "iot_0001", 100, time.Hour)
	if !d.Allowed || d.Count != 1 {
		t.Errorf("expected fresh window after prune, got %+v", d)
	}
}

func TestRedisLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedisLimiter(client, "rl:")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := l.Allow(ctx, "iot_abc", 2, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	d, err := l.Allow(ctx, "iot_abc", 2, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Fatal("third request should be denied")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > time.Hour {
		t.Errorf("retry after = %v, want within the window", d.RetryAfter)
	}
	if ttl := mr.TTL("rl:iot_abc"); ttl <= 0 {
		t.Errorf("counter key has no expiry: %v", ttl)
	}

	mr.FastForward(time.Hour + time.Second)
	d, err = l.Allow(ctx, "iot_abc", 2, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allowed || d.Count != 1 {
		t.Errorf("expected fresh window after expiry, got %+v", d)
	}
}
