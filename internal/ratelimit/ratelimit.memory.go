// FilePath: internal/ratelimit/ratelimit.memory.go
package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type window struct {
	resetAt time.Time
	count   atomic.Int64
}

type entry struct {
	current atomic.Pointer[window]
}

// MemoryLimiter keeps counters in process; suitable for single-instance deployments
type MemoryLimiter struct {
	entries sync.Map // key -> *entry
	now     func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{now: time.Now}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string, limit int64, length time.Duration) (Decision, error) {
	v, _ := l.entries.LoadOrStore(key, &entry{})
	e := v.(*entry)
	now := l.now()

	for {
		w := e.current.Load()
		if w == nil || !now.Before(w.resetAt) {
			fresh := &window{resetAt: now.Add(length)}
			fresh.count.Store(1)
			if e.current.CompareAndSwap(w, fresh) {
				return decide(1, limit, length), nil
			}
			// another request opened the window first
			continue
		}
		n := w.count.Add(1)
		return decide(n, limit, w.resetAt.Sub(now)), nil
	}
}

// Prune drops keys whose window has expired and returns how many were removed.
// A pruned key starts a fresh window on its next request, same as a lazy reset.
func (l *MemoryLimiter) Prune() int {
	now := l.now()
	removed := 0
	l.entries.Range(func(k, v any) bool {
		w := v.(*entry).current.Load()
		if w == nil || !now.Before(w.resetAt) {
			if l.entries.CompareAndDelete(k, v) {
				removed++
			}
		}
		return true
	})
	return removed
}

// Len reports the number of tracked keys
func (l *MemoryLimiter) Len() int {
	n := 0
	l.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
