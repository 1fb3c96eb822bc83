package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/xid"

	"github.com/sakif/timekeeper/internal/apperror"
	"github.com/sakif/timekeeper/internal/model"
	"github.com/sakif/timekeeper/internal/repository"
)

// MaxCategoriesListed caps category.getByUser.
const MaxCategoriesListed = 10

var colorPattern = regexp.MustCompile(`^#([A-Fa-f0-9]{6}|[A-Fa-f0-9]{3})$`)

// NormalizeName trims name, lowercases it, then uppercases the first
// character: "  tIME " → "Time". Normalizing twice changes nothing.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:]
}

// ValidColor reports whether color is a #RGB or #RRGGBB hex color.
func ValidColor(color string) bool {
	return colorPattern.MatchString(color)
}

// CategoryService handles business logic for categories.
type CategoryService struct {
	repo   repository.CategoryRepository
	now    Clock
	logger *slog.Logger
}

// NewCategoryService creates a CategoryService. now may be nil (time.Now).
func NewCategoryService(repo repository.CategoryRepository, now Clock, logger *slog.Logger) *CategoryService {
	return &CategoryService{
		repo:   repo,
		now:    utcClock(now),
		logger: logger,
	}
}

// List returns up to MaxCategoriesListed of the user's categories, least
// recently updated first.
func (s *CategoryService) List(ctx context.Context, sessionUserID, userID string) ([]model.Category, error) {
	owner, err := resolveOwner(sessionUserID, userID)
	if err != nil {
		return nil, err
	}

	categories, err := s.repo.ListCategoriesByUser(ctx, owner, repository.ListOptions{Limit: MaxCategoriesListed})
	if err != nil {
		s.logger.Error("failed to list categories",
			slog.String("userID", owner),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return categories, nil
}

// ListFiltered returns the user's categories ordered by createdAt. A name is
// normalized and must match exactly; one that is empty after trimming is
// treated as not given.
func (s *CategoryService) ListFiltered(ctx context.Context, sessionUserID, userID string, name *string, orderBy string) ([]model.Category, error) {
	owner, err := resolveOwner(sessionUserID, userID)
	if err != nil {
		return nil, err
	}
	order, err := parseSortOrder(orderBy)
	if err != nil {
		return nil, err
	}

	filter := repository.CategoryFilter{UserID: owner, OrderBy: order}
	if name != nil {
		if normalized := NormalizeName(*name); normalized != "" {
			filter.Name = &normalized
		}
	}

	categories, err := s.repo.FilterCategories(ctx, filter)
	if err != nil {
		s.logger.Error("failed to filter categories",
			slog.String("userID", owner),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("filtering categories: %w", err)
	}
	return categories, nil
}

// Create validates and stores a new category.
//
// The insert is a single statement; a duplicate normalized name for the same
// user comes back from the store as apperror.ErrConflict.
func (s *CategoryService) Create(ctx context.Context, sessionUserID, name, userID, description, color string) (*model.Category, error) {
	owner, err := resolveOwner(sessionUserID, userID)
	if err != nil {
		return nil, err
	}

	if color == "" {
		color = model.DefaultCategoryColor
	}
	if !ValidColor(color) {
		return nil, apperror.ValidationFailed("color", "color must be a hex color like #RGB or #RRGGBB")
	}

	name = NormalizeName(name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "category name is required")
	}

	now := s.now()
	category := &model.Category{
		ID:          xid.New().String(),
		Name:        name,
		Description: description,
		Color:       color,
		UserID:      owner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.CreateCategory(ctx, category); err != nil {
		if errors.Is(err, apperror.ErrConflict) || errors.Is(err, apperror.ErrValidation) {
			return nil, err
		}
		s.logger.Error("failed to create category",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating category: %w", err)
	}

	s.logger.Info("category created",
		slog.String("id", category.ID),
		slog.String("name", category.Name),
		slog.String("userID", owner),
	)
	return category, nil
}

// Delete removes the caller's category. Entries linked to it are deleted too.
func (s *CategoryService) Delete(ctx context.Context, sessionUserID, id string) error {
	owner, err := resolveOwner(sessionUserID, "")
	if err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "category ID is required")
	}

	if err := s.repo.DeleteCategory(ctx, id, owner); err != nil {
		return err
	}

	s.logger.Info("category deleted", slog.String("id", id), slog.String("userID", owner))
	return nil
}
