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

var _ repository.CategoryRepository = (*Store)(nil)

var categoryColumns = []string{"id", "name", "description", "color", "user_id", "created_at", "updated_at"}

// CreateCategory inserts a category in a single statement.
//
// Uniqueness of (user_id, name) is enforced by the uq_category_user_name
// constraint, so two concurrent creates cannot both succeed: the loser gets
// a unique violation, which is reported as apperror.ErrConflict.
func (s *Store) CreateCategory(ctx context.Context, c *model.Category) error {
	if c.ID == "" {
		c.ID = xid.New().String()
	}

	query, args, err := s.sb.Insert("category").
		Columns(categoryColumns...).
		Values(c.ID, c.Name, c.Description, c.Color, c.UserID, c.CreatedAt, c.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("sqlstore: building category insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict(fmt.Sprintf("A category with the name %q already exists", c.Name))
		}
		if isForeignKeyViolation(err) {
			return apperror.ValidationFailed("userId", "user does not exist")
		}
		return fmt.Errorf("sqlstore: creating category: %w", err)
	}
	return nil
}

// GetCategory returns the category only if userID owns it.
func (s *Store) GetCategory(ctx context.Context, id, userID string) (*model.Category, error) {
	query, args, err := s.sb.Select(categoryColumns...).From("category").
		Where(sq.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: building category select: %w", err)
	}

	var c model.Category
	if err := s.db.GetContext(ctx, &c, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("category", id)
		}
		return nil, fmt.Errorf("sqlstore: getting category %s: %w", id, err)
	}
	return &c, nil
}

// ListCategoriesByUser returns the user's categories ordered by updated_at ascending.
func (s *Store) ListCategoriesByUser(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Category, error) {
	q := s.sb.Select(categoryColumns...).From("category").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("updated_at ASC")
	if opts.Limit > 0 {
		q = q.Limit(uint64(opts.Limit))
	}
	return s.selectCategories(ctx, q)
}

// FilterCategories applies the filter's equality predicates and orders by created_at.
func (s *Store) FilterCategories(ctx context.Context, f repository.CategoryFilter) ([]model.Category, error) {
	q := s.sb.Select(categoryColumns...).From("category").
		Where(sq.Eq{"user_id": f.UserID})
	if f.Name != nil {
		q = q.Where(sq.Eq{"name": *f.Name})
	}
	q = q.OrderBy("created_at " + orderDirection(f.OrderBy))
	return s.selectCategories(ctx, q)
}

// DeleteCategory removes the owner's category. Entries that reference it are
// removed by the ON DELETE CASCADE on time_entry.category_id.
func (s *Store) DeleteCategory(ctx context.Context, id, userID string) error {
	query, args, err := s.sb.Delete("category").Where(sq.Eq{"id": id, "user_id": userID}).ToSql()
	if err != nil {
		return fmt.Errorf("sqlstore: building category delete: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlstore: deleting category %s: %w", id, err)
	}
	return checkAffected(result, "category", id)
}

func (s *Store) selectCategories(ctx context.Context, q sq.SelectBuilder) ([]model.Category, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: building category select: %w", err)
	}

	categories := []model.Category{}
	if err := s.db.SelectContext(ctx, &categories, query, args...); err != nil {
		return nil, fmt.Errorf("sqlstore: listing categories: %w", err)
	}
	return categories, nil
}

// orderDirection maps a SortOrder to SQL. Only the two literals ever reach
// the query text; anything else falls back to ASC.
func orderDirection(o repository.SortOrder) string {
	if o == repository.SortDesc {
		return "DESC"
	}
	return "ASC"
}
