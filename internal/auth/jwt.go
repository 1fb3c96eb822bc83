// Package auth holds everything about who is calling: the Authorization Gate
// that turns a bearer token into a session, session token signing, password
// hashing, and the Google OAuth provider used for social sign-in.
//
// SESSION TOKENS:
// A session token is an HS256 JWT whose "jti" is the session ID and "sub" is
// the user ID. The token string itself is what gets stored in the sessions
// table, and the Gate authenticates by exact lookup of that string. When the
// Gate has a TokenService it checks the signature first, so forged or foreign
// tokens are turned away without a query. It is still the database row that
// grants access: deleting the row signs the user out immediately.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "timekeeper"

// TokenService signs and parses session tokens.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: SESSION_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// SessionClaims is the decoded payload of a session token.
type SessionClaims struct {
	SessionID string
	UserID    string
	ExpiresAt time.Time
}

// Issue signs a token for the given session.
func (s *TokenService) Issue(sessionID, userID string, issuedAt, expiresAt time.Time) (string, error) {
	c := jwt.RegisteredClaims{
		ID:        sessionID,
		Subject:   userID,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing session token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature, issuer, algorithm and expiry, and returns the claims.
func (s *TokenService) Parse(tokenStr string) (*SessionClaims, error) {
	var c jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(token *jwt.Token) (any, error) {
			return s.secret, nil
		},
		// pinning the method rules out "alg: none" and RS/HS confusion
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: session token expired")
		}
		return nil, fmt.Errorf("auth: invalid session token: %w", err)
	}
	if !token.Valid || c.ID == "" || c.Subject == "" {
		return nil, fmt.Errorf("auth: invalid session token claims")
	}

	return &SessionClaims{
		SessionID: c.ID,
		UserID:    c.Subject,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}
