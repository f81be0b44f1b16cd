package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/mailguard/ingest/internal/auth"
	"github.com/mailguard/ingest/internal/errors"
	"github.com/mailguard/ingest/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

type contextKey string

const principalKey contextKey = "principal"

// GateMiddleware authenticates requests against the credential gate
type GateMiddleware struct {
	gate *auth.Gate
}

func NewGateMiddleware(gate *auth.Gate) *GateMiddleware {
	return &GateMiddleware{gate: gate}
}

// RequireDevice admits device credentials only
func (m *GateMiddleware) RequireDevice(next http.Handler) http.Handler {
	return m.require(next, models.CredentialClassDevice)
}

// RequireAdmin admits admin credentials only
func (m *GateMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return m.require(next, models.CredentialClassAdmin)
}

// RequireAny admits device and admin credentials
func (m *GateMiddleware) RequireAny(next http.Handler) http.Handler {
	return m.require(next, models.CredentialClassDevice, models.CredentialClassAdmin)
}

func (m *GateMiddleware) require(next http.Handler, classes ...models.CredentialClass) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := m.gate.Authenticate(r.Context(), auth.ExtractToken(r), classes...)
		if err != nil {
			apiErr, ok := errors.AsAPIError(err)
			if !ok {
				apiErr = errors.NewInternalError("authentication failed", err)
			}
			logSecurityEvent(r, "auth_"+string(apiErr.Type), apiErr.Message)
			writeError(w, apiErr.WithRequestID(nuts.NID("req", 12)))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// WithPrincipal stores the authenticated caller in ctx
func WithPrincipal(ctx context.Context, p *models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the authenticated caller, or nil on public routes
func PrincipalFrom(ctx context.Context) *models.Principal {
	p, _ := ctx.Value(principalKey).(*models.Principal)
	return p
}

// SecurityHeaders sets the response headers every API answer carries
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// LogSecurityEvent records a security relevant request outcome
func LogSecurityEvent(r *http.Request, event, detail string) {
	logSecurityEvent(r, event, detail)
}

func logSecurityEvent(r *http.Request, event, detail string) {
	nuts.L.Warnf("[Security] %s: %s (remote=%s ua=%q %s %s)",
		event, detail, r.RemoteAddr, r.UserAgent(), r.Method, r.URL.Path)
}

func writeError(w http.ResponseWriter, err *errors.APIError) {
	if err.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(err.RetryAfter.Seconds()))))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	_ = json.NewEncoder(w).Encode(err)
}
