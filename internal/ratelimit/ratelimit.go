// FilePath: internal/ratelimit/ratelimit.go
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one rate check
type Decision struct {
	Allowed    bool
	Count      int64
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter enforces a fixed-window request budget per key.
// The first request after a window expires starts a new window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (Decision, error)
}

func decide(count, limit int64, resetIn time.Duration) Decision {
	if resetIn < 0 {
		resetIn = 0
	}
	d := Decision{Count: count, Allowed: count <= limit}
	if d.Allowed {
		d.Remaining = limit - count
	} else {
		d.RetryAfter = resetIn
	}
	return d
}
