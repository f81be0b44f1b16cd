// FilePath: internal/auth/gate.go
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/mailguard/ingest/internal/config"
	"github.com/mailguard/ingest/internal/errors"
	"github.com/mailguard/ingest/internal/models"
	"github.com/mailguard/ingest/internal/monitoring"
	"github.com/mailguard/ingest/internal/ratelimit"
	"github.com/mailguard/ingest/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

const (
	HeaderAPIKey   = "X-API-Key"
	QueryAPIKey    = "api_key"
	bearerPrefix   = "Bearer "
	unavailableMsg = "Authentication service temporarily unavailable"
)

// Policy is the format and budget of one credential class
type Policy struct {
	Class     models.CredentialClass
	Prefix    string
	MinLength int
	Budget    int64
}

// Gate authenticates credentials and enforces per-credential rate budgets
type Gate struct {
	credentials repository.CredentialRepository
	limiter     ratelimit.Limiter
	policies    map[models.CredentialClass]Policy
	window      time.Duration
	timeout     time.Duration
	now         func() time.Time
}

// NewGate creates a gate over the credential store and limiter
func NewGate(credentials repository.CredentialRepository, limiter ratelimit.Limiter, cfg config.AuthConfig, timeout time.Duration) *Gate {
	return &Gate{
		credentials: credentials,
		limiter:     limiter,
		policies: map[models.CredentialClass]Policy{
			models.CredentialClassDevice: {
				Class:     models.CredentialClassDevice,
				Prefix:    cfg.DevicePrefix,
				MinLength: cfg.DeviceMinLength,
				Budget:    cfg.DeviceBudget,
			},
			models.CredentialClassAdmin: {
				Class:     models.CredentialClassAdmin,
				Prefix:    cfg.AdminPrefix,
				MinLength: cfg.AdminMinLength,
				Budget:    cfg.AdminBudget,
			},
		},
		window:  cfg.Window,
		timeout: timeout,
		now:     time.Now,
	}
}

// ExtractToken reads the credential from the bearer header, the API key header or the query, in that order
func ExtractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, bearerPrefix) {
		if token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)); token != "" {
			return token
		}
	}
	if token := strings.TrimSpace(r.Header.Get(HeaderAPIKey)); token != "" {
		return token
	}
	return strings.TrimSpace(r.URL.Query().Get(QueryAPIKey))
}

// HashToken returns the hex SHA-256 of a token, the only form a key is stored in
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Policy returns the policy of a class
func (g *Gate) Policy(class models.CredentialClass) (Policy, bool) {
	p, ok := g.policies[class]
	return p, ok
}

// ValidFormat reports whether token carries the class prefix and minimum length
func (g *Gate) ValidFormat(token string, class models.CredentialClass) bool {
	p, ok := g.policies[class]
	if !ok {
		return false
	}
	return strings.HasPrefix(token, p.Prefix) && len(token) >= p.MinLength
}

// Authenticate verifies token against any of the accepted classes.
// Format is checked before the rate budget, and the budget before any store lookup.
func (g *Gate) Authenticate(ctx context.Context, token string, accepted ...models.CredentialClass) (*models.Principal, error) {
	if token == "" {
		monitoring.AuthAttemptsTotal.WithLabelValues("unknown", "missing").Inc()
		return nil, errors.NewAuthError("API key required", nil)
	}

	policy, ok := g.classify(token, accepted)
	if !ok {
		monitoring.AuthAttemptsTotal.WithLabelValues("unknown", "malformed").Inc()
		return nil, errors.NewAuthError("Invalid API key format", nil)
	}
	class := string(policy.Class)
	hash := HashToken(token)

	decision, err := g.limiter.Allow(ctx, class+"_"+hash, policy.Budget, g.window)
	if err != nil {
		monitoring.AuthAttemptsTotal.WithLabelValues(class, "unavailable").Inc()
		return nil, errors.NewUnavailableError(unavailableMsg, err)
	}
	if !decision.Allowed {
		monitoring.AuthAttemptsTotal.WithLabelValues(class, "rate_limited").Inc()
		return nil, errors.NewRateLimitError("Rate limit exceeded", decision.RetryAfter).
			WithDetails(map[string]interface{}{"limit": policy.Budget, "window_seconds": int64(g.window.Seconds())})
	}

	lookupCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	cred, err := g.credentials.FindActive(lookupCtx, hash, policy.Class)
	if err != nil {
		if errors.IsNotFound(err) {
			monitoring.AuthAttemptsTotal.WithLabelValues(class, "invalid").Inc()
			return nil, errors.NewAuthError("Invalid API key", nil)
		}
		monitoring.AuthAttemptsTotal.WithLabelValues(class, "unavailable").Inc()
		nuts.L.Errorf("[Auth] Credential lookup failed: %v", err)
		return nil, errors.NewUnavailableError(unavailableMsg, err)
	}

	g.touch(ctx, cred.ID)
	monitoring.AuthAttemptsTotal.WithLabelValues(class, "ok").Inc()

	return &models.Principal{
		CredentialID: cred.ID,
		Class:        cred.Class,
		DeviceSerial: cred.DeviceSerial,
	}, nil
}

func (g *Gate) classify(token string, accepted []models.CredentialClass) (Policy, bool) {
	for _, class := range accepted {
		if g.ValidFormat(token, class) {
			return g.policies[class], true
		}
	}
	return Policy{}, false
}

// touch records key usage; failures are logged only
func (g *Gate) touch(ctx context.Context, id string) {
	touchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()
	if err := g.credentials.TouchLastUsed(touchCtx, id, g.now().UTC()); err != nil {
		monitoring.SecondaryFailuresTotal.WithLabelValues("touch_api_key").Inc()
		nuts.L.Warnf("[Auth] Failed to update last used for key %s: %v", id, err)
	}
}

// CheckSerial enforces that a serial-bound device credential only acts for its own serial
func CheckSerial(p *models.Principal, serial string) error {
	if p == nil {
		return errors.NewAuthError("API key required", nil)
	}
	if p.IsAdmin() || p.DeviceSerial == nil {
		return nil
	}
	if *p.DeviceSerial != serial {
		return errors.NewAuthorizationError("API key is not authorized for this device", nil).
			WithDetails(map[string]string{"serial": serial})
	}
	return nil
}
