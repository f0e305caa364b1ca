package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/learnify/internal/model"
)

// LegacyIdentityHeader carries a caller-asserted email from older clients.
// It is trusted as-is and only consulted when no session resolves.
const LegacyIdentityHeader = "X-User-Email"

// contextKey is unexported so no other package can read or shadow the
// identity stored in a request context.
type contextKey string

const identityKey contextKey = "identity"

// IdentityResolver turns an inbound request into a caller email.
type IdentityResolver struct {
	sessions *SessionManager
	logger   *slog.Logger
}

func NewIdentityResolver(sessions *SessionManager, logger *slog.Logger) *IdentityResolver {
	return &IdentityResolver{sessions: sessions, logger: logger}
}

// CurrentIdentity returns the normalized email of the caller, trying the
// session cookie first and the legacy header second. A valid session
// always wins when both are present.
//
// A store failure while resolving the session is logged and treated as
// "no session" so the request degrades to anonymous instead of failing.
func (ir *IdentityResolver) CurrentIdentity(r *http.Request) (string, bool) {
	if raw := SessionToken(r); raw != "" {
		email, ok, err := ir.sessions.Resolve(r.Context(), raw)
		if err != nil {
			ir.logger.Error("resolving session failed", slog.String("error", err.Error()))
		}
		if ok {
			if email = model.NormalizeEmail(email); email != "" {
				return email, true
			}
		}
	}

	if email := model.NormalizeEmail(r.Header.Get(LegacyIdentityHeader)); email != "" {
		return email, true
	}
	return "", false
}

// Identify stores the caller's identity in the request context when one
// resolves. It never rejects a request; see RequireIdentity for that.
func (ir *IdentityResolver) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if email, ok := ir.CurrentIdentity(r); ok {
			r = r.WithContext(WithIdentity(r.Context(), email))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireIdentity rejects requests without an identity with 401. It must run
// after Identify.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized","message":"sign in required"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithIdentity returns a copy of ctx carrying email.
func WithIdentity(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, identityKey, email)
}

// IdentityFromContext returns the caller's email, or ("", false) for an
// anonymous request.
func IdentityFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(identityKey).(string)
	email = strings.TrimSpace(email)
	return email, ok && email != ""
}
