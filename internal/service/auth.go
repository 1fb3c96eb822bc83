package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/xid"

	"github.com/sakif/timekeeper/internal/apperror"
	"github.com/sakif/timekeeper/internal/auth"
	"github.com/sakif/timekeeper/internal/model"
	"github.com/sakif/timekeeper/internal/repository"
)

// DefaultSessionMaxAge is used when NewAuthService gets a non-positive maxAge.
const DefaultSessionMaxAge = 30 * 24 * time.Hour

// ErrIssuanceDisabled is returned by every sign-in path when the server runs
// without a session secret.
var ErrIssuanceDisabled = errors.New("service/auth: session issuance is disabled")

// ClientInfo is request metadata recorded on the session row.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// AuthResult bundles the session token and the user it belongs to.
type AuthResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// SessionView is what get-session returns.
type SessionView struct {
	Session *model.Session `json:"session"`
	User    *model.User    `json:"user"`
}

// AuthService handles sign-up, sign-in and sign-out. It mints and revokes
// sessions; the Authorization Gate in the auth package only reads them, so
// everything that writes the sessions table lives here:
//
//	AuthHandler (HTTP) → AuthService → UserRepository / SessionRepository (DB)
//	                               ↘ TokenService (signs the session token)
//	                               ↘ PasswordService (bcrypt)
//
// tokens may be nil: the server then still serves the Gate (existing
// sessions keep working) but refuses to mint new ones.
type AuthService struct {
	users     repository.UserRepository
	sessions  repository.SessionRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	maxAge    time.Duration
	now       Clock
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	maxAge time.Duration,
	now Clock,
	logger *slog.Logger,
) *AuthService {
	if maxAge <= 0 {
		maxAge = DefaultSessionMaxAge
	}
	return &AuthService{
		users:     users,
		sessions:  sessions,
		tokens:    tokens,
		passwords: passwords,
		maxAge:    maxAge,
		now:       utcClock(now),
		logger:    logger,
	}
}

// SignUpEmail creates an email/password account and signs it in.
func (s *AuthService) SignUpEmail(ctx context.Context, name, email, password string, client ClientInfo) (*AuthResult, error) {
	if s.tokens == nil {
		return nil, ErrIssuanceDisabled
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if n := utf8.RuneCountInString(password); n < auth.MinPasswordLength || n > auth.MaxPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be between %d and %d characters", auth.MinPasswordLength, auth.MaxPasswordLength))
	}

	hash, err := s.passwords.Hash(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at most %d bytes when encoded", auth.MaxPasswordBytes))
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	now := s.now()
	user := &model.User{
		ID:           xid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: &hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user signed up", slog.String("userID", user.ID))
	return s.startSession(ctx, user, client)
}

// SignInEmail checks the credentials and opens a new session. An unknown
// email and a wrong password fail the same way.
func (s *AuthService) SignInEmail(ctx context.Context, email, password string, client ClientInfo) (*AuthResult, error) {
	if s.tokens == nil {
		return nil, ErrIssuanceDisabled
	}

	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errBadCredentials()
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}
	if user.PasswordHash == nil {
		// Google-only account.
		return nil, errBadCredentials()
	}
	if err := s.passwords.Verify(*user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return nil, errBadCredentials()
		}
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}

	return s.startSession(ctx, user, client)
}

// SignInGoogle resolves a verified Google profile to an account (creating or
// linking it) and opens a session.
func (s *AuthService) SignInGoogle(ctx context.Context, gu *auth.GoogleUser, client ClientInfo) (*AuthResult, error) {
	if s.tokens == nil {
		return nil, ErrIssuanceDisabled
	}
	if gu == nil {
		return nil, fmt.Errorf("service/auth: Google user must not be nil")
	}

	sub := gu.Sub
	user := &model.User{
		Name:      gu.Name,
		Email:     strings.ToLower(gu.Email),
		GoogleSub: &sub,
	}
	if err := s.users.UpsertGoogleUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting Google user: %w", err)
	}

	s.logger.Info("user authenticated via Google", slog.String("userID", user.ID))
	return s.startSession(ctx, user, client)
}

// SignOut deletes the given session. The token stops working immediately.
func (s *AuthService) SignOut(ctx context.Context, session *model.Session) error {
	if session == nil {
		return apperror.Unauthorized("Authentication required")
	}
	if err := s.sessions.DeleteSession(ctx, session.ID); err != nil {
		return fmt.Errorf("service/auth: deleting session: %w", err)
	}
	s.logger.Info("user signed out",
		slog.String("userID", session.UserID),
		slog.String("sessionID", session.ID),
	)
	return nil
}

// GetSession returns the session attached by the Gate together with its user.
func (s *AuthService) GetSession(ctx context.Context, session *model.Session) (*SessionView, error) {
	if session == nil {
		return nil, apperror.Unauthorized("Authentication required")
	}
	user, err := s.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", session.UserID, err)
	}
	return &SessionView{Session: session, User: user}, nil
}

func (s *AuthService) startSession(ctx context.Context, user *model.User, client ClientInfo) (*AuthResult, error) {
	now := s.now()
	session := &model.Session{
		ID:        xid.New().String(),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.maxAge),
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		CreatedAt: now,
		UpdatedAt: now,
	}

	token, err := s.tokens.Issue(session.ID, user.ID, now, session.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for user %s: %w", user.ID, err)
	}
	session.Token = token

	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("service/auth: storing session: %w", err)
	}

	s.logger.Debug("session started",
		slog.String("userID", user.ID),
		slog.String("sessionID", session.ID),
	)
	return &AuthResult{Token: token, User: user}, nil
}

func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", apperror.ValidationFailed("email", "a valid email address is required")
	}
	return strings.ToLower(addr.Address), nil
}

func errBadCredentials() error {
	return apperror.Unauthorized("Invalid email or password")
}
