// FilePath: internal/notify/transport.go
package notify

import (
	"context"

	"github.com/mailguard/ingest/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// Transport delivers a rendered notification
type Transport interface {
	Send(ctx context.Context, n *models.Notification) error
}

// IdentityProvider resolves an account to its contact address; "" means none
type IdentityProvider interface {
	ResolveContactAddress(ctx context.Context, accountID string) (string, error)
}

// LogTransport only logs notifications; used in development
type LogTransport struct{}

func (LogTransport) Send(ctx context.Context, n *models.Notification) error {
	nuts.L.Infof("[Notify] (log transport) to=%s subject=%q image=%q", n.To, n.Subject, n.ImageURL)
	return nil
}

// StaticProvider resolves addresses from a fixed map
type StaticProvider map[string]string

func (p StaticProvider) ResolveContactAddress(ctx context.Context, accountID string) (string, error) {
	return p[accountID], nil
}
