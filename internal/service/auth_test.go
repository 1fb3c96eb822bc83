package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/timekeeper/internal/apperror"
	"github.com/sakif/timekeeper/internal/auth"
)

var testClient = ClientInfo{IPAddress: "203.0.113.7", UserAgent: "go-test"}

func newTestAuthService(t *testing.T) (*AuthService, *memStore) {
	t.Helper()
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	require.NoError(t, err)

	store := newMemStore()
	svc := NewAuthService(store, store, tokens, auth.NewPasswordServiceWithCost(4),
		time.Hour, stepClock(), discardLogger())
	return svc, store
}

func TestSignUpEmail(t *testing.T) {
	svc, store := newTestAuthService(t)

	res, err := svc.SignUpEmail(context.Background(), "Ada", " Ada@Example.com ", "longenough", testClient)
	require.NoError(t, err)

	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "ada@example.com", res.User.Email)
	require.NotNil(t, res.User.PasswordHash)
	assert.NotEqual(t, "longenough", *res.User.PasswordHash)

	// The token is stored verbatim, so the Gate can resolve it.
	session, err := store.GetSessionByToken(context.Background(), res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, session.UserID)
	assert.Equal(t, testClient.IPAddress, session.IPAddress)
	assert.Equal(t, testClient.UserAgent, session.UserAgent)
	assert.Equal(t, time.Hour, session.ExpiresAt.Sub(session.CreatedAt))
}

func TestSignUpEmail_Validation(t *testing.T) {
	svc, _ := newTestAuthService(t)

	tests := []struct {
		name, user, email, password, field string
	}{
		{"no name", "", "a@b.co", "longenough", "name"},
		{"bad email", "A", "not-an-email", "longenough", "email"},
		{"display-name email", "A", "Ada <a@b.co>", "longenough", "email"},
		{"short password", "A", "a@b.co", "short", "password"},
		{"long password", "A", "a@b.co", strings.Repeat("p", 65), "password"},
		{"long password in characters", "A", "a@b.co", strings.Repeat("é", 65), "password"},
		{"over bcrypt's byte limit", "A", "a@b.co", strings.Repeat("😀", 20), "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SignUpEmail(context.Background(), tt.user, tt.email, tt.password, testClient)
			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr), "got %v", err)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

func TestSignUpEmail_PasswordLengthCountsCharacters(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	// 30 characters, 60 bytes.
	password := strings.Repeat("ü", 30)
	_, err := svc.SignUpEmail(ctx, "A", "a@b.co", password, testClient)
	require.NoError(t, err)

	_, err = svc.SignInEmail(ctx, "a@b.co", password, testClient)
	assert.NoError(t, err)

	_, err = svc.SignUpEmail(ctx, "B", "b@b.co", strings.Repeat("ü", 7), testClient)
	assert.True(t, errors.Is(err, apperror.ErrValidation), "7 characters is too short even at 14 bytes")
}

func TestSignUpEmail_DuplicateEmail(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.SignUpEmail(ctx, "A", "a@b.co", "longenough", testClient)
	require.NoError(t, err)

	_, err = svc.SignUpEmail(ctx, "B", "A@B.co", "longenough", testClient)
	assert.True(t, errors.Is(err, apperror.ErrConflict))
}

func TestSignInEmail(t *testing.T) {
	svc, store := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.SignUpEmail(ctx, "A", "a@b.co", "longenough", testClient)
	require.NoError(t, err)

	t.Run("good credentials open a second session", func(t *testing.T) {
		res, err := svc.SignInEmail(ctx, "A@b.co", "longenough", testClient)
		require.NoError(t, err)
		assert.NotEmpty(t, res.Token)
		assert.Len(t, store.sessions, 2)
	})

	for name, creds := range map[string][2]string{
		"wrong password": {"a@b.co", "wrongpassword"},
		"unknown email":  {"nobody@b.co", "longenough"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.SignInEmail(ctx, creds[0], creds[1], testClient)
			assert.True(t, errors.Is(err, apperror.ErrUnauthorized))
			assert.Equal(t, "Invalid email or password", err.Error())
		})
	}
}

func TestSignInGoogle_LinksExistingAccount(t *testing.T) {
	svc, store := newTestAuthService(t)
	ctx := context.Background()

	signedUp, err := svc.SignUpEmail(ctx, "A", "a@b.co", "longenough", testClient)
	require.NoError(t, err)

	res, err := svc.SignInGoogle(ctx, &auth.GoogleUser{Sub: "g-1", Email: "A@b.co", EmailVerified: true}, testClient)
	require.NoError(t, err)
	assert.Equal(t, signedUp.User.ID, res.User.ID)
	assert.Len(t, store.users, 1)
}

func TestSignOut(t *testing.T) {
	svc, store := newTestAuthService(t)
	ctx := context.Background()

	res, err := svc.SignUpEmail(ctx, "A", "a@b.co", "longenough", testClient)
	require.NoError(t, err)
	session, err := store.GetSessionByToken(ctx, res.Token)
	require.NoError(t, err)

	view, err := svc.GetSession(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, view.User.ID)

	require.NoError(t, svc.SignOut(ctx, session))
	_, err = store.GetSessionByToken(ctx, res.Token)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestIssuanceDisabled(t *testing.T) {
	store := newMemStore()
	svc := NewAuthService(store, store, nil, auth.NewPasswordServiceWithCost(4), 0, nil, discardLogger())

	_, err := svc.SignUpEmail(context.Background(), "A", "a@b.co", "longenough", testClient)
	assert.ErrorIs(t, err, ErrIssuanceDisabled)
	_, err = svc.SignInEmail(context.Background(), "a@b.co", "longenough", testClient)
	assert.ErrorIs(t, err, ErrIssuanceDisabled)
}
