package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	stateIssuer = "learnify"
	stateTTL    = 10 * time.Minute
)

// StateSigner signs the OAuth "state" parameter.
//
// The state carries a random nonce that must also match the oauth_state
// cookie on callback. Signing it as a short-lived HS256 JWT means a state
// that was not minted by this server, or that sat around for longer than
// the login window, is rejected before the cookie is even compared.
type StateSigner struct {
	secret []byte
	now    func() time.Time
}

// NewStateSigner creates a StateSigner. The secret must be at least 16
// characters; generate one with `openssl rand -hex 32`.
func NewStateSigner(secret string) (*StateSigner, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: state signing key must be at least 16 characters")
	}
	return &StateSigner{secret: []byte(secret), now: time.Now}, nil
}

// Sign returns a signed state token carrying nonce.
func (s *StateSigner) Sign(nonce string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   nonce,
		Issuer:    stateIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing state: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, issuer and expiry of a state token and
// returns its nonce. Only HS256 is accepted, which rules out "alg":"none".
func (s *StateSigner) Verify(state string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(state, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", errors.New("auth: state expired")
		}
		return "", fmt.Errorf("auth: invalid state: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("auth: state has no nonce")
	}
	return claims.Subject, nil
}
