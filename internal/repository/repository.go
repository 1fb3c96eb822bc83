// Package repository declares the storage contracts the services depend on.
//
// Services receive these interfaces, never a concrete store, so tests can hand
// them in-memory fakes and the server can pick sqlite or postgres at startup.
package repository

import (
	"context"
	"time"

	"github.com/sakif/timekeeper/internal/model"
)

// SortOrder is the direction for createdAt ordering in filtered listings.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Valid reports whether o is one of the two supported directions.
func (o SortOrder) Valid() bool {
	return o == SortAsc || o == SortDesc
}

// ListOptions caps and orders the "recent" listings (ordered by updated_at ascending).
// Limit <= 0 means no cap.
type ListOptions struct {
	Limit int
}

// CategoryFilter is a conjunction of equality predicates. UserID is always
// applied; Name only when non-nil.
type CategoryFilter struct {
	UserID  string
	Name    *string
	OrderBy SortOrder
}

// EntryFilter is a conjunction of equality predicates. UserID is always
// applied; every pointer field only when non-nil, so a pointer to false is a
// real filter on was_special.
type EntryFilter struct {
	UserID     string
	Time       *string
	WasSpecial *bool
	DayCreated *string
	CategoryID *string
	OrderBy    SortOrder
}

// EntryPatch is a partial update. Nil fields leave their column untouched.
// CategoryID pointing at "" clears the link (writes NULL).
type EntryPatch struct {
	Time       *string
	WasSpecial *bool
	DayCreated *string
	Message    *string
	CategoryID *string
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// UpsertGoogleUser links or creates the account for a Google subject.
	UpsertGoogleUser(ctx context.Context, user *model.User) error
}

type SessionRepository interface {
	CreateSession(ctx context.Context, session *model.Session) error
	// GetSessionByToken returns apperror.ErrNotFound when no row has exactly this token.
	GetSessionByToken(ctx context.Context, token string) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error
}

type CategoryRepository interface {
	// CreateCategory inserts the category; a duplicate (user_id, name)
	// returns apperror.ErrConflict.
	CreateCategory(ctx context.Context, category *model.Category) error
	GetCategory(ctx context.Context, id, userID string) (*model.Category, error)
	ListCategoriesByUser(ctx context.Context, userID string, opts ListOptions) ([]model.Category, error)
	FilterCategories(ctx context.Context, filter CategoryFilter) ([]model.Category, error)
	// DeleteCategory removes the owner's category; entries linked to it cascade.
	DeleteCategory(ctx context.Context, id, userID string) error
}

type EntryRepository interface {
	CreateEntry(ctx context.Context, entry *model.Entry) error
	ListAllEntries(ctx context.Context) ([]model.Entry, error)
	ListEntriesByUser(ctx context.Context, userID string, opts ListOptions) ([]model.Entry, error)
	FilterEntries(ctx context.Context, filter EntryFilter) ([]model.Entry, error)
	GetEntry(ctx context.Context, id, userID string) (*model.Entry, error)
	// UpdateEntry applies patch to the owner's entry and sets updated_at.
	UpdateEntry(ctx context.Context, id, userID string, patch EntryPatch, updatedAt time.Time) error
	DeleteEntry(ctx context.Context, id, userID string) error
}
