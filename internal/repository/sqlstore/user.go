package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/xid"

	"github.com/sakif/timekeeper/internal/apperror"
	"github.com/sakif/timekeeper/internal/model"
	"github.com/sakif/timekeeper/internal/repository"
)

// compile-time check that *Store implements repository.UserRepository
var _ repository.UserRepository = (*Store)(nil)

var userColumns = []string{"id", "name", "email", "password_hash", "google_sub", "created_at", "updated_at"}

// CreateUser inserts a new account. A taken email returns apperror.ErrConflict.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = xid.New().String()
	}
	if user.CreatedAt.IsZero() {
		now := time.Now().UTC()
		user.CreatedAt = now
		user.UpdatedAt = now
	}

	query, args, err := s.sb.Insert("users").
		Columns(userColumns...).
		Values(user.ID, user.Name, user.Email, user.PasswordHash, user.GoogleSub, user.CreatedAt, user.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("sqlstore: building user insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict(fmt.Sprintf("an account with the email %q already exists", user.Email))
		}
		return fmt.Errorf("sqlstore: creating user: %w", err)
	}
	return nil
}

// GetUserByID returns apperror.ErrNotFound if no user exists with that ID.
func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.getUser(ctx, sq.Eq{"id": id}, id)
}

// GetUserByEmail returns apperror.ErrNotFound if no user has that email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser(ctx, sq.Eq{"email": email}, email)
}

func (s *Store) getUser(ctx context.Context, where sq.Eq, key string) (*model.User, error) {
	query, args, err := s.sb.Select(userColumns...).From("users").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: building user select: %w", err)
	}

	var u model.User
	if err := s.db.GetContext(ctx, &u, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", key)
		}
		return nil, fmt.Errorf("sqlstore: getting user %s: %w", key, err)
	}
	return &u, nil
}

// UpsertGoogleUser resolves a Google sign-in to an account.
//
// Lookup order: by google_sub (returning user), then by email (an existing
// email/password account gets linked), otherwise a new account is created.
// On return user holds the stored row.
func (s *Store) UpsertGoogleUser(ctx context.Context, user *model.User) error {
	if user.GoogleSub == nil || *user.GoogleSub == "" {
		return apperror.ValidationFailed("google_sub", "google subject is required")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: beginning upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	now := time.Now().UTC()

	var existing model.User
	query, args, err := s.sb.Select(userColumns...).From("users").
		Where(sq.Or{sq.Eq{"google_sub": *user.GoogleSub}, sq.Eq{"email": user.Email}}).
		OrderBy("CASE WHEN google_sub IS NULL THEN 1 ELSE 0 END").
		Limit(1).
		ToSql()
	if err != nil {
		return fmt.Errorf("sqlstore: building google user lookup: %w", err)
	}

	err = tx.GetContext(ctx, &existing, query, args...)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		user.ID = xid.New().String()
		user.CreatedAt = now
		user.UpdatedAt = now
		query, args, err = s.sb.Insert("users").
			Columns(userColumns...).
			Values(user.ID, user.Name, user.Email, user.PasswordHash, user.GoogleSub, user.CreatedAt, user.UpdatedAt).
			ToSql()
		if err != nil {
			return fmt.Errorf("sqlstore: building user insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("sqlstore: inserting google user: %w", err)
		}
	case err != nil:
		return fmt.Errorf("sqlstore: looking up google user: %w", err)
	default:
		existing.GoogleSub = user.GoogleSub
		if existing.Name == "" {
			existing.Name = user.Name
		}
		existing.UpdatedAt = now
		query, args, err = s.sb.Update("users").
			Set("google_sub", existing.GoogleSub).
			Set("name", existing.Name).
			Set("updated_at", existing.UpdatedAt).
			Where(sq.Eq{"id": existing.ID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("sqlstore: building user update: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("sqlstore: linking google user %s: %w", existing.ID, err)
		}
		*user = existing
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: committing google upsert: %w", err)
	}
	return nil
}
