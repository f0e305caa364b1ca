package model

import "time"

// Session binds the hash of an opaque session token to a user email.
// The raw token only ever lives in the client's cookie.
type Session struct {
	TokenHash string
	UserEmail string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
