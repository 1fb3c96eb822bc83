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

var _ repository.EntryRepository = (*Store)(nil)

var entryColumns = []string{
	"id", "time", "was_special", "day_created", "message",
	"category_id", "user_id", "created_at", "updated_at",
}

// CreateEntry inserts an entry. A category_id that does not reference an
// existing category is rejected by the foreign key and reported as a
// validation error on categoryId.
func (s *Store) CreateEntry(ctx context.Context, e *model.Entry) error {
	if e.ID == "" {
		e.ID = xid.New().String()
	}

	query, args, err := s.sb.Insert("time_entry").
		Columns(entryColumns...).
		Values(e.ID, e.Time, e.WasSpecial, e.DayCreated, e.Message,
			e.CategoryID, e.UserID, e.CreatedAt, e.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("sqlstore: building entry insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isForeignKeyViolation(err) {
			return apperror.ValidationFailed("categoryId", "referenced category or user does not exist")
		}
		return fmt.Errorf("sqlstore: creating entry: %w", err)
	}
	return nil
}

// ListAllEntries returns every entry of every user, in storage order.
func (s *Store) ListAllEntries(ctx context.Context) ([]model.Entry, error) {
	return s.selectEntries(ctx, s.sb.Select(entryColumns...).From("time_entry"))
}

// ListEntriesByUser returns the user's entries ordered by updated_at ascending.
func (s *Store) ListEntriesByUser(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Entry, error) {
	q := s.sb.Select(entryColumns...).From("time_entry").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("updated_at ASC")
	if opts.Limit > 0 {
		q = q.Limit(uint64(opts.Limit))
	}
	return s.selectEntries(ctx, q)
}

// FilterEntries builds a conjunction of equality predicates: user_id always,
// every other column only when its filter field is non-nil.
func (s *Store) FilterEntries(ctx context.Context, f repository.EntryFilter) ([]model.Entry, error) {
	q := s.sb.Select(entryColumns...).From("time_entry").
		Where(sq.Eq{"user_id": f.UserID})

	if f.Time != nil {
		q = q.Where(sq.Eq{"time": *f.Time})
	}
	if f.WasSpecial != nil {
		q = q.Where(sq.Eq{"was_special": *f.WasSpecial})
	}
	if f.DayCreated != nil {
		q = q.Where(sq.Eq{"day_created": *f.DayCreated})
	}
	if f.CategoryID != nil {
		q = q.Where(sq.Eq{"category_id": *f.CategoryID})
	}

	q = q.OrderBy("created_at " + orderDirection(f.OrderBy))
	return s.selectEntries(ctx, q)
}

// GetEntry returns the entry only if userID owns it.
func (s *Store) GetEntry(ctx context.Context, id, userID string) (*model.Entry, error) {
	query, args, err := s.sb.Select(entryColumns...).From("time_entry").
		Where(sq.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: building entry select: %w", err)
	}

	var e model.Entry
	if err := s.db.GetContext(ctx, &e, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("entry", id)
		}
		return nil, fmt.Errorf("sqlstore: getting entry %s: %w", id, err)
	}
	return &e, nil
}

// UpdateEntry writes only the columns present in patch, plus updated_at.
// Zero matched rows (missing id, or another user's entry) is ErrNotFound.
func (s *Store) UpdateEntry(ctx context.Context, id, userID string, p repository.EntryPatch, updatedAt time.Time) error {
	q := s.sb.Update("time_entry").Set("updated_at", updatedAt)

	if p.Time != nil {
		q = q.Set("time", *p.Time)
	}
	if p.WasSpecial != nil {
		q = q.Set("was_special", *p.WasSpecial)
	}
	if p.DayCreated != nil {
		q = q.Set("day_created", *p.DayCreated)
	}
	if p.Message != nil {
		q = q.Set("message", *p.Message)
	}
	if p.CategoryID != nil {
		if *p.CategoryID == "" {
			q = q.Set("category_id", nil)
		} else {
			q = q.Set("category_id", *p.CategoryID)
		}
	}

	query, args, err := q.Where(sq.Eq{"id": id, "user_id": userID}).ToSql()
	if err != nil {
		return fmt.Errorf("sqlstore: building entry update: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.ValidationFailed("categoryId", "referenced category does not exist")
		}
		return fmt.Errorf("sqlstore: updating entry %s: %w", id, err)
	}
	return checkAffected(result, "entry", id)
}

// DeleteEntry removes the owner's entry.
func (s *Store) DeleteEntry(ctx context.Context, id, userID string) error {
	query, args, err := s.sb.Delete("time_entry").Where(sq.Eq{"id": id, "user_id": userID}).ToSql()
	if err != nil {
		return fmt.Errorf("sqlstore: building entry delete: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlstore: deleting entry %s: %w", id, err)
	}
	return checkAffected(result, "entry", id)
}

func (s *Store) selectEntries(ctx context.Context, q sq.SelectBuilder) ([]model.Entry, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: building entry select: %w", err)
	}

	entries := []model.Entry{}
	if err := s.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("sqlstore: listing entries: %w", err)
	}
	return entries, nil
}
