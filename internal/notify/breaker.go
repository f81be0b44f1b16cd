// FilePath: internal/notify/breaker.go
package notify

import (
	"context"
	"time"

	"github.com/mailguard/ingest/internal/models"
	gobreaker "github.com/sony/gobreaker/v2"
	nuts "github.com/vaudience/go-nuts"
)

// BreakerTransport stops calling a failing transport until it has had time to recover
type BreakerTransport struct {
	next Transport
	cb   *gobreaker.CircuitBreaker[struct{}]
}

func NewBreakerTransport(next Transport, name string, failures uint32, openFor time.Duration) *BreakerTransport {
	if failures == 0 {
		failures = 5
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			nuts.L.Warnf("[Notify] Circuit breaker %s: %s -> %s", name, from, to)
		},
	}
	return &BreakerTransport{next: next, cb: gobreaker.NewCircuitBreaker[struct{}](settings)}
}

func (t *BreakerTransport) Send(ctx context.Context, n *models.Notification) error {
	_, err := t.cb.Execute(func() (struct{}, error) {
		return struct{}{}, t.next.Send(ctx, n)
	})
	return err
}

// State reports the breaker state
func (t *BreakerTransport) State() gobreaker.State {
	return t.cb.State()
}
