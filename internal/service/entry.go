package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/rs/xid"

	"github.com/sakif/timekeeper/internal/apperror"
	"github.com/sakif/timekeeper/internal/model"
	"github.com/sakif/timekeeper/internal/repository"
)

const (
	// MaxRecentEntries caps times.getRecentTasks / times.getByUser.
	MaxRecentEntries = 30
	// MaxMessageLength is measured in UTF-16 code units, the unit browsers
	// count in a maxlength input.
	MaxMessageLength = 255

	// DayLayout is the only accepted shape for dayCreated.
	DayLayout = "2006-01-02"
)

// timeLayouts are the accepted time-of-day shapes, the same ones a SQL TIME
// column takes.
var timeLayouts = []string{"15:04", "15:04:05", "15:04:05.999999999"}

// EntryFilterParams are the optional equality predicates for ListFiltered.
// Nil means "don't filter on this field"; so does an empty string, since
// forms send "" for an untouched field.
type EntryFilterParams struct {
	UserID     string
	Time       *string
	WasSpecial *bool
	DayCreated *string
	CategoryID *string
	OrderBy    string
}

// CreateEntryParams is the input to EntryService.Create. WasSpecial is a
// pointer so a missing flag can be told apart from false.
type CreateEntryParams struct {
	Time       string
	WasSpecial *bool
	DayCreated string
	UserID     string
	Message    string
	CategoryID *string
}

// EditEntryParams is a partial update. Nil fields are left untouched; a
// CategoryID pointing at "" removes the category link.
type EditEntryParams struct {
	ID         string
	UserID     string
	Time       *string
	WasSpecial *bool
	DayCreated *string
	Message    *string
	CategoryID *string
}

// EntryService handles business logic for time entries. It is the single
// implementation behind both the times.* and task.* procedures.
type EntryService struct {
	entries    repository.EntryRepository
	categories repository.CategoryRepository
	now        Clock
	logger     *slog.Logger
}

// NewEntryService creates an EntryService. now may be nil (time.Now).
func NewEntryService(
	entries repository.EntryRepository,
	categories repository.CategoryRepository,
	now Clock,
	logger *slog.Logger,
) *EntryService {
	return &EntryService{
		entries:    entries,
		categories: categories,
		now:        utcClock(now),
		logger:     logger,
	}
}

// ListAll returns every entry of every user, in storage order.
func (s *EntryService) ListAll(ctx context.Context) ([]model.Entry, error) {
	entries, err := s.entries.ListAllEntries(ctx)
	if err != nil {
		s.logger.Error("failed to list all entries", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	return entries, nil
}

// ListRecent returns up to MaxRecentEntries of the user's entries, least
// recently updated first.
func (s *EntryService) ListRecent(ctx context.Context, sessionUserID, userID string) ([]model.Entry, error) {
	owner, err := resolveOwner(sessionUserID, userID)
	if err != nil {
		return nil, err
	}

	entries, err := s.entries.ListEntriesByUser(ctx, owner, repository.ListOptions{Limit: MaxRecentEntries})
	if err != nil {
		s.logger.Error("failed to list entries",
			slog.String("userID", owner),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	return entries, nil
}

// ListFiltered returns the user's entries matching every provided predicate,
// ordered by createdAt.
func (s *EntryService) ListFiltered(ctx context.Context, sessionUserID string, p EntryFilterParams) ([]model.Entry, error) {
	owner, err := resolveOwner(sessionUserID, p.UserID)
	if err != nil {
		return nil, err
	}
	order, err := parseSortOrder(p.OrderBy)
	if err != nil {
		return nil, err
	}

	entries, err := s.entries.FilterEntries(ctx, repository.EntryFilter{
		UserID:     owner,
		Time:       presentOrNil(p.Time),
		WasSpecial: p.WasSpecial,
		DayCreated: presentOrNil(p.DayCreated),
		CategoryID: presentOrNil(p.CategoryID),
		OrderBy:    order,
	})
	if err != nil {
		s.logger.Error("failed to filter entries",
			slog.String("userID", owner),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("filtering entries: %w", err)
	}
	return entries, nil
}

// Create validates and stores a new entry.
func (s *EntryService) Create(ctx context.Context, sessionUserID string, p CreateEntryParams) (*model.Entry, error) {
	owner, err := resolveOwner(sessionUserID, p.UserID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(p.Time) == "" {
		return nil, apperror.ValidationFailed("time", "time is required")
	}
	if err := validateTimeOfDay(p.Time); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.DayCreated) == "" {
		return nil, apperror.ValidationFailed("dayCreated", "dayCreated is required")
	}
	if err := validateDay(p.DayCreated); err != nil {
		return nil, err
	}
	if p.WasSpecial == nil {
		return nil, apperror.ValidationFailed("wasSpecial", "wasSpecial is required")
	}
	if err := validateMessage(p.Message); err != nil {
		return nil, err
	}

	var categoryID *string
	if p.CategoryID != nil && *p.CategoryID != "" {
		if err := s.checkCategory(ctx, *p.CategoryID, owner); err != nil {
			return nil, err
		}
		categoryID = p.CategoryID
	}

	now := s.now()
	entry := &model.Entry{
		ID:         xid.New().String(),
		Time:       p.Time,
		WasSpecial: *p.WasSpecial,
		DayCreated: p.DayCreated,
		Message:    p.Message,
		CategoryID: categoryID,
		UserID:     owner,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.entries.CreateEntry(ctx, entry); err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			return nil, err
		}
		s.logger.Error("failed to create entry",
			slog.String("userID", owner),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating entry: %w", err)
	}

	s.logger.Info("entry created", slog.String("id", entry.ID), slog.String("userID", owner))
	return entry, nil
}

// Edit applies a partial update to one of the caller's entries and returns
// the stored result. updatedAt is always refreshed. A missing id, or an id
// owned by someone else, is apperror.ErrNotFound.
func (s *EntryService) Edit(ctx context.Context, sessionUserID string, p EditEntryParams) (*model.Entry, error) {
	owner, err := resolveOwner(sessionUserID, p.UserID)
	if err != nil {
		return nil, err
	}
	id := strings.TrimSpace(p.ID)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "entry ID is required")
	}
	if p.Time != nil {
		if err := validateTimeOfDay(*p.Time); err != nil {
			return nil, err
		}
	}
	if p.DayCreated != nil {
		if err := validateDay(*p.DayCreated); err != nil {
			return nil, err
		}
	}
	if p.Message != nil {
		if err := validateMessage(*p.Message); err != nil {
			return nil, err
		}
	}
	if p.CategoryID != nil && *p.CategoryID != "" {
		if err := s.checkCategory(ctx, *p.CategoryID, owner); err != nil {
			return nil, err
		}
	}

	patch := repository.EntryPatch{
		Time:       p.Time,
		WasSpecial: p.WasSpecial,
		DayCreated: p.DayCreated,
		Message:    p.Message,
		CategoryID: p.CategoryID,
	}
	if err := s.entries.UpdateEntry(ctx, id, owner, patch, s.now()); err != nil {
		if errors.Is(err, apperror.ErrNotFound) || errors.Is(err, apperror.ErrValidation) {
			return nil, err
		}
		s.logger.Error("failed to update entry",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating entry: %w", err)
	}

	entry, err := s.entries.GetEntry(ctx, id, owner)
	if err != nil {
		return nil, err
	}

	s.logger.Info("entry updated", slog.String("id", id), slog.String("userID", owner))
	return entry, nil
}

// Delete removes one of the caller's entries.
func (s *EntryService) Delete(ctx context.Context, sessionUserID, id string) error {
	owner, err := resolveOwner(sessionUserID, "")
	if err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "entry ID is required")
	}

	if err := s.entries.DeleteEntry(ctx, id, owner); err != nil {
		return err
	}

	s.logger.Info("entry deleted", slog.String("id", id), slog.String("userID", owner))
	return nil
}

// checkCategory rejects links to categories the owner doesn't have.
func (s *EntryService) checkCategory(ctx context.Context, categoryID, owner string) error {
	_, err := s.categories.GetCategory(ctx, categoryID, owner)
	if errors.Is(err, apperror.ErrNotFound) {
		return apperror.ValidationFailed("categoryId", "category does not exist")
	}
	if err != nil {
		return fmt.Errorf("checking category %s: %w", categoryID, err)
	}
	return nil
}

// validateTimeOfDay accepts HH:MM, HH:MM:SS and HH:MM:SS with a fraction.
// The value is stored as given.
func validateTimeOfDay(v string) error {
	for _, layout := range timeLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return nil
		}
	}
	return apperror.ValidationFailed("time", fmt.Sprintf("time %q must be a time of day like 09:30 or 09:30:00", v))
}

func validateDay(v string) error {
	if _, err := time.Parse(DayLayout, v); err != nil {
		return apperror.ValidationFailed("dayCreated", fmt.Sprintf("dayCreated %q must be a date like 2024-01-31", v))
	}
	return nil
}

func validateMessage(message string) error {
	if len(utf16.Encode([]rune(message))) > MaxMessageLength {
		return apperror.ValidationFailed("message",
			fmt.Sprintf("message must be %d characters or less", MaxMessageLength))
	}
	return nil
}

func presentOrNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
