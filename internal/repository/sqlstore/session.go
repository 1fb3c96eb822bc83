package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/xid"

	"github.com/sakif/timekeeper/internal/apperror"
	"github.com/sakif/timekeeper/internal/model"
	"github.com/sakif/timekeeper/internal/repository"
)

var _ repository.SessionRepository = (*Store)(nil)

var sessionColumns = []string{"id", "token", "user_id", "expires_at", "ip_address", "user_agent", "created_at", "updated_at"}

// CreateSession stores a session. The caller fills Token, UserID, ExpiresAt
// and the timestamps; an empty ID is generated here.
func (s *Store) CreateSession(ctx context.Context, session *model.Session) error {
	if session.ID == "" {
		session.ID = xid.New().String()
	}

	query, args, err := s.sb.Insert("sessions").
		Columns(sessionColumns...).
		Values(session.ID, session.Token, session.UserID, session.ExpiresAt,
			session.IPAddress, session.UserAgent, session.CreatedAt, session.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("sqlstore: building session insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("sqlstore: creating session: %w", err)
	}
	return nil
}

// GetSessionByToken looks a session up by exact token match. Expiry is not
// checked here; that is the Authorization Gate's job.
func (s *Store) GetSessionByToken(ctx context.Context, token string) (*model.Session, error) {
	query, args, err := s.sb.Select(sessionColumns...).From("sessions").
		Where(sq.Eq{"token": token}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: building session select: %w", err)
	}

	var session model.Session
	if err := s.db.GetContext(ctx, &session, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// never echo the token itself
			return nil, apperror.NotFound("session", "<token>")
		}
		return nil, fmt.Errorf("sqlstore: getting session: %w", err)
	}
	return &session, nil
}

// DeleteSession removes a session by ID.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	query, args, err := s.sb.Delete("sessions").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("sqlstore: building session delete: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlstore: deleting session %s: %w", id, err)
	}
	return checkAffected(result, "session", id)
}

// checkAffected turns "zero rows matched" into apperror.ErrNotFound.
func checkAffected(result sql.Result, resource, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
