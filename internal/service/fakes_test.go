package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sakif/timekeeper/internal/apperror"
	"github.com/sakif/timekeeper/internal/model"
	"github.com/sakif/timekeeper/internal/repository"
)

// =========================================================================
// IN-MEMORY FAKES
// =========================================================================
//
// memStore implements every repository interface the services use, backed by
// maps. It enforces the same constraints the SQL schema does (unique
// category name per user, category foreign key, owner scoping) so service
// tests exercise realistic failure paths without a database.

type memStore struct {
	mu         sync.Mutex
	users      map[string]*model.User
	sessions   map[string]*model.Session
	categories map[string]*model.Category
	entries    map[string]*model.Entry
	order      []string // entry insertion order, for ListAllEntries

	failWith error // when set, every call returns it
}

func newMemStore() *memStore {
	return &memStore{
		users:      make(map[string]*model.User),
		sessions:   make(map[string]*model.Session),
		categories: make(map[string]*model.Category),
		entries:    make(map[string]*model.Entry),
	}
}

var (
	_ repository.UserRepository     = (*memStore)(nil)
	_ repository.SessionRepository  = (*memStore)(nil)
	_ repository.CategoryRepository = (*memStore)(nil)
	_ repository.EntryRepository    = (*memStore)(nil)
)

// --- users ---

func (m *memStore) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return apperror.Conflict(fmt.Sprintf("an account with the email %q already exists", u.Email))
		}
	}
	stored := *u
	m.users[u.ID] = &stored
	return nil
}

func (m *memStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	result := *u
	return &result, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	for _, u := range m.users {
		if u.Email == email {
			result := *u
			return &result, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (m *memStore) UpsertGoogleUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if (existing.GoogleSub != nil && *existing.GoogleSub == *u.GoogleSub) || existing.Email == u.Email {
			existing.GoogleSub = u.GoogleSub
			*u = *existing
			return nil
		}
	}
	u.ID = fmt.Sprintf("user-%d", len(m.users)+1)
	stored := *u
	m.users[u.ID] = &stored
	return nil
}

// --- sessions ---

func (m *memStore) CreateSession(_ context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	stored := *s
	m.sessions[s.ID] = &stored
	return nil
}

func (m *memStore) GetSessionByToken(_ context.Context, token string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.Token == token {
			result := *s
			return &result, nil
		}
	}
	return nil, apperror.NotFound("session", "<token>")
}

func (m *memStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return apperror.NotFound("session", id)
	}
	delete(m.sessions, id)
	return nil
}

// --- categories ---

func (m *memStore) CreateCategory(_ context.Context, c *model.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for _, existing := range m.categories {
		if existing.UserID == c.UserID && existing.Name == c.Name {
			return apperror.Conflict(fmt.Sprintf("A category with the name %q already exists", c.Name))
		}
	}
	stored := *c
	m.categories[c.ID] = &stored
	return nil
}

func (m *memStore) GetCategory(_ context.Context, id, userID string) (*model.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	if !ok || c.UserID != userID {
		return nil, apperror.NotFound("category", id)
	}
	result := *c
	return &result, nil
}

func (m *memStore) ListCategoriesByUser(_ context.Context, userID string, opts repository.ListOptions) ([]model.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	result := m.categoriesWhere(func(c *model.Category) bool { return c.UserID == userID })
	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt.Before(result[j].UpdatedAt) })
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

func (m *memStore) FilterCategories(_ context.Context, f repository.CategoryFilter) ([]model.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := m.categoriesWhere(func(c *model.Category) bool {
		return c.UserID == f.UserID && (f.Name == nil || c.Name == *f.Name)
	})
	sort.Slice(result, func(i, j int) bool {
		return byCreated(result[i].CreatedAt, result[j].CreatedAt, f.OrderBy)
	})
	return result, nil
}

func (m *memStore) DeleteCategory(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	if !ok || c.UserID != userID {
		return apperror.NotFound("category", id)
	}
	delete(m.categories, id)
	for eid, e := range m.entries {
		if e.CategoryID != nil && *e.CategoryID == id {
			delete(m.entries, eid)
		}
	}
	return nil
}

func (m *memStore) categoriesWhere(keep func(*model.Category) bool) []model.Category {
	result := []model.Category{}
	for _, c := range m.categories {
		if keep(c) {
			result = append(result, *c)
		}
	}
	return result
}

// --- entries ---

func (m *memStore) CreateEntry(_ context.Context, e *model.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if e.CategoryID != nil {
		if _, ok := m.categories[*e.CategoryID]; !ok {
			return apperror.ValidationFailed("categoryId", "referenced category does not exist")
		}
	}
	stored := *e
	m.entries[e.ID] = &stored
	m.order = append(m.order, e.ID)
	return nil
}

func (m *memStore) ListAllEntries(_ context.Context) ([]model.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []model.Entry{}
	for _, id := range m.order {
		if e, ok := m.entries[id]; ok {
			result = append(result, *e)
		}
	}
	return result, nil
}

func (m *memStore) ListEntriesByUser(_ context.Context, userID string, opts repository.ListOptions) ([]model.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := m.entriesWhere(func(e *model.Entry) bool { return e.UserID == userID })
	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt.Before(result[j].UpdatedAt) })
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

func (m *memStore) FilterEntries(_ context.Context, f repository.EntryFilter) ([]model.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := m.entriesWhere(func(e *model.Entry) bool {
		switch {
		case e.UserID != f.UserID:
			return false
		case f.Time != nil && e.Time != *f.Time:
			return false
		case f.WasSpecial != nil && e.WasSpecial != *f.WasSpecial:
			return false
		case f.DayCreated != nil && e.DayCreated != *f.DayCreated:
			return false
		case f.CategoryID != nil && (e.CategoryID == nil || *e.CategoryID != *f.CategoryID):
			return false
		}
		return true
	})
	sort.Slice(result, func(i, j int) bool {
		return byCreated(result[i].CreatedAt, result[j].CreatedAt, f.OrderBy)
	})
	return result, nil
}

func (m *memStore) GetEntry(_ context.Context, id, userID string) (*model.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || e.UserID != userID {
		return nil, apperror.NotFound("entry", id)
	}
	result := *e
	return &result, nil
}

func (m *memStore) UpdateEntry(_ context.Context, id, userID string, p repository.EntryPatch, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	e, ok := m.entries[id]
	if !ok || e.UserID != userID {
		return apperror.NotFound("entry", id)
	}
	if p.Time != nil {
		e.Time = *p.Time
	}
	if p.WasSpecial != nil {
		e.WasSpecial = *p.WasSpecial
	}
	if p.DayCreated != nil {
		e.DayCreated = *p.DayCreated
	}
	if p.Message != nil {
		e.Message = *p.Message
	}
	if p.CategoryID != nil {
		if *p.CategoryID == "" {
			e.CategoryID = nil
		} else {
			cid := *p.CategoryID
			e.CategoryID = &cid
		}
	}
	e.UpdatedAt = updatedAt
	return nil
}

func (m *memStore) DeleteEntry(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || e.UserID != userID {
		return apperror.NotFound("entry", id)
	}
	delete(m.entries, id)
	return nil
}

func (m *memStore) entriesWhere(keep func(*model.Entry) bool) []model.Entry {
	result := []model.Entry{}
	for _, e := range m.entries {
		if keep(e) {
			result = append(result, *e)
		}
	}
	return result
}

func byCreated(a, b time.Time, order repository.SortOrder) bool {
	if order == repository.SortDesc {
		return a.After(b)
	}
	return a.Before(b)
}

// =========================================================================
// HELPERS
// =========================================================================

// stepClock returns a Clock that advances one second per call.
func stepClock() Clock {
	var mu sync.Mutex
	t := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

var errStorage = errors.New("database is locked")

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }
