// FilePath: internal/notify/provider.keycloak.go
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/Nerzal/gocloak/v13"
	"github.com/mailguard/ingest/internal/config"
	"github.com/mailguard/ingest/internal/errors"
)

// KeycloakProvider resolves account ids as Keycloak user ids
type KeycloakProvider struct {
	client       *gocloak.GoCloak
	realm        string
	clientID     string
	clientSecret string

	mu        sync.Mutex
	token     *gocloak.JWT
	expiresAt time.Time
}

func NewKeycloakProvider(cfg config.KeycloakConfig) *KeycloakProvider {
	return &KeycloakProvider{
		client:       gocloak.NewClient(cfg.URL),
		realm:        cfg.Realm,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
	}
}

func (p *KeycloakProvider) ResolveContactAddress(ctx context.Context, accountID string) (string, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return "", err
	}
	user, err := p.client.GetUserByID(ctx, token, p.realm, accountID)
	if err != nil {
		return "", errors.NewUnavailableError("failed to resolve account contact", err)
	}
	if user == nil || user.Email == nil {
		return "", nil
	}
	if user.EmailVerified != nil && !*user.EmailVerified {
		return "", nil
	}
	return *user.Email, nil
}

// accessToken returns a cached service account token, logging in again shortly before expiry
func (p *KeycloakProvider) accessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != nil && time.Now().Before(p.expiresAt) {
		return p.token.AccessToken, nil
	}
	token, err := p.client.LoginClient(ctx, p.clientID, p.clientSecret, p.realm)
	if err != nil {
		return "", errors.NewUnavailableError("identity provider login failed", err)
	}
	p.token = token
	p.expiresAt = time.Now().Add(time.Duration(token.ExpiresIn)*time.Second - 30*time.Second)
	return token.AccessToken, nil
}
