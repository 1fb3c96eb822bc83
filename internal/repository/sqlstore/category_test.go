package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/timekeeper/internal/apperror"
	"github.com/sakif/timekeeper/internal/model"
	"github.com/sakif/timekeeper/internal/repository"
)

func createTestCategory(t *testing.T, s *Store, clock *testClock, userID, name string) *model.Category {
	t.Helper()
	now := clock.next()
	c := &model.Category{
		Name:      name,
		Color:     model.DefaultCategoryColor,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateCategory(context.Background(), c))
	return c
}

func TestCreateCategory_UniquePerUser(t *testing.T) {
	s := newTestStore(t)
	clock := newTestClock()
	alice := createTestUser(t, s, "alice@example.com")
	bob := createTestUser(t, s, "bob@example.com")

	createTestCategory(t, s, clock, alice.ID, "Time")

	now := clock.next()
	err := s.CreateCategory(context.Background(), &model.Category{
		Name: "Time", Color: "#fff", UserID: alice.ID, CreatedAt: now, UpdatedAt: now,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrConflict), "got %v", err)
	assert.Contains(t, err.Error(), `"Time"`)

	// same name, different owner
	createTestCategory(t, s, clock, bob.ID, "Time")
}

func TestCreateCategory_UnknownUser(t *testing.T) {
	s := newTestStore(t)
	clock := newTestClock()
	now := clock.next()

	err := s.CreateCategory(context.Background(), &model.Category{
		Name: "Orphan", Color: "#fff", UserID: "no-such-user", CreatedAt: now, UpdatedAt: now,
	})
	assert.True(t, errors.Is(err, apperror.ErrValidation), "got %v", err)
}

func TestListCategoriesByUser_CapAndOrder(t *testing.T) {
	s := newTestStore(t)
	clock := newTestClock()
	u := createTestUser(t, s, "cap@example.com")
	other := createTestUser(t, s, "other@example.com")

	for i := 0; i < 12; i++ {
		createTestCategory(t, s, clock, u.ID, fmt.Sprintf("Cat%02d", i))
	}
	createTestCategory(t, s, clock, other.ID, "Foreign")

	got, err := s.ListCategoriesByUser(context.Background(), u.ID, repository.ListOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 10)

	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].UpdatedAt.Before(got[i].UpdatedAt), "rows must be ordered by updatedAt ascending")
	}
	for _, c := range got {
		assert.Equal(t, u.ID, c.UserID)
	}
	assert.Equal(t, "Cat00", got[0].Name)
}

func TestFilterCategories(t *testing.T) {
	s := newTestStore(t)
	clock := newTestClock()
	u := createTestUser(t, s, "f@example.com")

	createTestCategory(t, s, clock, u.ID, "Work")
	createTestCategory(t, s, clock, u.ID, "Gym")
	createTestCategory(t, s, clock, u.ID, "Reading")

	ctx := context.Background()

	t.Run("no name returns all, ascending", func(t *testing.T) {
		got, err := s.FilterCategories(ctx, repository.CategoryFilter{UserID: u.ID, OrderBy: repository.SortAsc})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "Work", got[0].Name)
		assert.Equal(t, "Reading", got[2].Name)
	})

	t.Run("descending", func(t *testing.T) {
		got, err := s.FilterCategories(ctx, repository.CategoryFilter{UserID: u.ID, OrderBy: repository.SortDesc})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "Reading", got[0].Name)
	})

	t.Run("exact name", func(t *testing.T) {
		name := "Gym"
		got, err := s.FilterCategories(ctx, repository.CategoryFilter{UserID: u.ID, Name: &name})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Gym", got[0].Name)
	})

	t.Run("no match is an empty slice, not nil", func(t *testing.T) {
		name := "Nope"
		got, err := s.FilterCategories(ctx, repository.CategoryFilter{UserID: u.ID, Name: &name})
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestGetCategory_OwnerScoped(t *testing.T) {
	s := newTestStore(t)
	clock := newTestClock()
	owner := createTestUser(t, s, "owner@example.com")
	stranger := createTestUser(t, s, "stranger@example.com")
	c := createTestCategory(t, s, clock, owner.ID, "Mine")

	got, err := s.GetCategory(context.Background(), c.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mine", got.Name)

	_, err = s.GetCategory(context.Background(), c.ID, stranger.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestDeleteCategory_CascadesEntries(t *testing.T) {
	s := newTestStore(t)
	clock := newTestClock()
	ctx := context.Background()
	u := createTestUser(t, s, "cascade@example.com")

	c := createTestCategory(t, s, clock, u.ID, "Doomed")
	linked := createTestEntry(t, s, clock, u.ID, func(e *model.Entry) { e.CategoryID = &c.ID })
	unlinked := createTestEntry(t, s, clock, u.ID, nil)

	require.NoError(t, s.DeleteCategory(ctx, c.ID, u.ID))

	_, err := s.GetEntry(ctx, linked.ID, u.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "linked entry should be gone")

	_, err = s.GetEntry(ctx, unlinked.ID, u.ID)
	assert.NoError(t, err)

	err = s.DeleteCategory(ctx, c.ID, u.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}
