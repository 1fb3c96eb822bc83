package sqlstore

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/timekeeper/internal/apperror"
	"github.com/sakif/timekeeper/internal/model"
	"github.com/sakif/timekeeper/internal/repository"
)

// newMockPostgresStore returns a Store speaking the postgres dialect over sqlmock,
// so the generated SQL and error translation can be checked without a server.
func newMockPostgresStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return newStore(sqlx.NewDb(db, "pgx"), DriverPostgres, sq.Dollar, slog.New(slog.DiscardHandler)), mock
}

func TestPostgres_FilterEntriesPlaceholders(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT .* FROM time_entry WHERE user_id = \$1 AND was_special = \$2 AND category_id = \$3 ORDER BY created_at DESC`).
		WithArgs("u1", false, "c1").
		WillReturnRows(sqlmock.NewRows(entryColumns).
			AddRow("e1", "08:00:00", false, "2025-03-01", "", "c1", "u1", now, now))

	f := false
	cat := "c1"
	got, err := s.FilterEntries(context.Background(), repository.EntryFilter{
		UserID: "u1", WasSpecial: &f, CategoryID: &cat, OrderBy: repository.SortDesc,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "e1", got[0].ID)
	require.NotNil(t, got[0].CategoryID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateCategoryUniqueViolation(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO category \(id,name,description,color,user_id,created_at,updated_at\) VALUES \(\$1,\$2,\$3,\$4,\$5,\$6,\$7\)`).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "uq_category_user_name"})

	err := s.CreateCategory(context.Background(), &model.Category{Name: "Time", UserID: "u1", Color: "#fff"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrConflict))
	assert.Equal(t, `A category with the name "Time" already exists`, err.Error())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateEntryOnlyProvidedColumns(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	updatedAt := time.Now()

	mock.ExpectExec(`UPDATE time_entry SET updated_at = \$1, message = \$2 WHERE id = \$3 AND user_id = \$4`).
		WithArgs(updatedAt, "new", "e1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	msg := "new"
	err := s.UpdateEntry(context.Background(), "e1", "u1", repository.EntryPatch{Message: &msg}, updatedAt)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_StorageFailureIsWrapped(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM time_entry`).WillReturnError(errors.New("connection reset"))

	err := s.DeleteEntry(context.Background(), "e1", "u1")
	require.Error(t, err)

	var appErr *apperror.AppError
	assert.False(t, errors.As(err, &appErr), "driver failures must not look like domain errors")
	require.NoError(t, mock.ExpectationsWereMet())
}
