package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/sakif/timekeeper/internal/apperror"
	"github.com/sakif/timekeeper/internal/model"
)

// contextKey is an unexported type used for context keys in this package.
// Only this package can create a key of type contextKey, so no other package
// can read or shadow the session stored under it.
type contextKey string

const sessionKey contextKey = "session"

// bearerPrefix matches "Bearer " and tolerates one duplicated scheme
// ("Bearer Bearer <token>"), which some clients send after re-wrapping a
// header they already prefixed.
var bearerPrefix = regexp.MustCompile(`^Bearer\s+(?:Bearer\s+)?`)

// ExtractBearerToken returns the credential from an Authorization header value.
// A header without the scheme is taken as the raw token.
func ExtractBearerToken(header string) string {
	return bearerPrefix.ReplaceAllString(header, "")
}

// SessionResolver finds the session stored under an exact token.
// It returns an error wrapping apperror.ErrNotFound when there is none.
type SessionResolver interface {
	GetSessionByToken(ctx context.Context, token string) (*model.Session, error)
}

// Gate is the authorization check in front of every protected procedure.
// It only reads: no session is created, extended, or deleted here.
type Gate struct {
	sessions SessionResolver
	tokens   *TokenService
	now      func() time.Time
	logger   *slog.Logger
}

// NewGate creates a Gate. now is injectable for tests; nil means time.Now.
func NewGate(sessions SessionResolver, now func() time.Time, logger *slog.Logger) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{sessions: sessions, now: now, logger: logger}
}

// WithTokens makes the Gate verify the token's signature and claims before
// the session lookup. Tokens that are not ours never reach the database, and
// a token whose jti does not name the session stored under it is rejected.
// The session row still decides access.
func (g *Gate) WithTokens(tokens *TokenService) *Gate {
	g.tokens = tokens
	return g
}

// Authenticate resolves the request's bearer credential to an active session.
//
// Every failure mode (no header, unknown token, expired session, resolver
// error) comes back as apperror.ErrUnauthorized, so callers never learn
// which one it was.
func (g *Gate) Authenticate(r *http.Request) (*model.Session, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		g.logger.Debug("authentication failed", slog.String("reason", "no authorization header"))
		return nil, errAuthRequired()
	}

	token := ExtractBearerToken(header)
	if token == "" {
		g.logger.Debug("authentication failed", slog.String("reason", "empty token"))
		return nil, errAuthRequired()
	}

	var claims *SessionClaims
	if g.tokens != nil {
		c, err := g.tokens.Parse(token)
		if err != nil {
			g.logger.Debug("authentication failed",
				slog.String("reason", "invalid token"),
				slog.String("error", err.Error()),
			)
			return nil, errAuthRequired()
		}
		claims = c
	}

	session, err := g.sessions.GetSessionByToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			g.logger.Debug("authentication failed", slog.String("reason", "unknown session"))
		} else {
			g.logger.Error("session lookup failed", slog.String("error", err.Error()))
		}
		return nil, errAuthRequired()
	}

	if claims != nil && (claims.SessionID != session.ID || claims.UserID != session.UserID) {
		g.logger.Warn("authentication failed",
			slog.String("reason", "token claims do not match session"),
			slog.String("sessionID", session.ID),
		)
		return nil, errAuthRequired()
	}

	if !session.ActiveAt(g.now()) {
		g.logger.Debug("authentication failed",
			slog.String("reason", "session expired"),
			slog.String("sessionID", session.ID),
		)
		return nil, errAuthRequired()
	}

	return session, nil
}

// Require wraps next so it only runs with an active session in its context.
// onError writes the rejection; it receives an apperror.ErrUnauthorized.
func (g *Gate) Require(onError func(http.ResponseWriter, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := g.Authenticate(r)
			if err != nil {
				onError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

func errAuthRequired() error {
	return apperror.Unauthorized("Authentication required")
}

// WithSession returns a copy of ctx carrying session.
func WithSession(ctx context.Context, session *model.Session) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

// SessionFromContext returns the session attached by the Gate, if any.
func SessionFromContext(ctx context.Context) (*model.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*model.Session)
	return s, ok && s != nil
}

// UserIDFromContext returns the authenticated user's ID, or ("", false)
// for anonymous requests.
func UserIDFromContext(ctx context.Context) (string, bool) {
	s, ok := SessionFromContext(ctx)
	if !ok || s.UserID == "" {
		return "", false
	}
	return s.UserID, true
}
