package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sakif/learnify/internal/apperror"
	"github.com/sakif/learnify/internal/model"
	"github.com/sakif/learnify/internal/repository"
)

const (
	// SessionCookieName is the cookie carrying the raw session token.
	SessionCookieName = "learnify_session"

	// DefaultSessionTTL is how long a session stays valid after sign-in.
	DefaultSessionTTL = 7 * 24 * time.Hour
)

// SessionManager issues, resolves and revokes opaque session tokens.
// Only the SHA-256 of a token is persisted; expiry is enforced when the
// session is looked up, not by a sweeper.
type SessionManager struct {
	sessions repository.SessionRepository
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionManager creates a SessionManager. A zero ttl means
// DefaultSessionTTL.
func NewSessionManager(sessions repository.SessionRepository, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{sessions: sessions, ttl: ttl, now: time.Now}
}

// TTL returns the session lifetime, which is also the cookie max-age.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Create starts a session for userEmail and returns the raw token.
func (m *SessionManager) Create(ctx context.Context, userEmail string) (string, error) {
	raw, hash, err := NewToken()
	if err != nil {
		return "", err
	}

	now := m.now()
	err = m.sessions.CreateSession(ctx, &model.Session{
		TokenHash: hash,
		UserEmail: model.NormalizeEmail(userEmail),
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
	})
	if err != nil {
		return "", fmt.Errorf("auth: creating session: %w", err)
	}
	return raw, nil
}

// Resolve returns the email bound to a live session. An empty, unknown or
// expired token yields ("", false, nil); only store failures are errors.
func (m *SessionManager) Resolve(ctx context.Context, raw string) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, nil
	}

	session, err := m.sessions.GetSession(ctx, HashToken(raw), m.now())
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("auth: resolving session: %w", err)
	}
	return session.UserEmail, true, nil
}

// Revoke deletes the session for raw. Revoking an unknown or empty token
// succeeds.
func (m *SessionManager) Revoke(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if err := m.sessions.DeleteSession(ctx, HashToken(raw)); err != nil {
		return fmt.Errorf("auth: revoking session: %w", err)
	}
	return nil
}

// Prune deletes expired session rows. Resolve already ignores them; this
// only reclaims space.
func (m *SessionManager) Prune(ctx context.Context) (int64, error) {
	n, err := m.sessions.DeleteExpiredSessions(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("auth: pruning sessions: %w", err)
	}
	return n, nil
}

// CookiePolicy writes and clears the session cookie.
type CookiePolicy struct {
	// Secure marks the cookie HTTPS-only. On in production.
	Secure bool
	MaxAge time.Duration
}

// Set writes the session cookie carrying raw.
func (p CookiePolicy) Set(w http.ResponseWriter, raw string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    raw,
		Path:     "/",
		MaxAge:   int(p.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear tells the browser to drop the session cookie.
func (p CookiePolicy) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // sent as Max-Age=0
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionToken reads the raw session token from the request cookie. A
// missing cookie yields "".
func SessionToken(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
