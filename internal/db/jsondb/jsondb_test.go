package jsondb

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/rango/internal/db/storage"
	"github.com/patric-chuzhbe/rango/internal/models"
	"github.com/patric-chuzhbe/rango/internal/user"
)

var _ storage.Storage = (*JSONDB)(nil)

func newTestStorage(t *testing.T) (*JSONDB, string) {
	t.Helper()

	fileName := filepath.Join(t.TempDir(), "db_test.json")
	theStorage, err := New(fileName)
	require.NoError(t, err)
	require.NotNil(t, theStorage)

	return theStorage, fileName
}

func TestCategories(t *testing.T) {
	ctx := context.Background()
	theStorage, _ := newTestStorage(t)

	for _, c := range []*models.Category{
		models.NewCategory("Python", 128, 64),
		models.NewCategory("Django", 64, 32),
		models.NewCategory("Other Frameworks", 32, 16),
		models.NewCategory("Go", 0, 32),
	} {
		require.NoError(t, theStorage.InsertCategory(ctx, c, nil))
		assert.NotZero(t, c.ID)
	}

	err := theStorage.InsertCategory(ctx, models.NewCategory("Python", 1, 1), nil)
	assert.True(t, errors.Is(err, models.ErrConflict), "duplicate name should conflict")

	sameSlug := &models.Category{Name: "python!", Slug: "python"}
	err = theStorage.InsertCategory(ctx, sameSlug, nil)
	assert.True(t, errors.Is(err, models.ErrConflict), "duplicate slug should conflict")

	found, err := theStorage.FindCategoryBySlug(ctx, "other-frameworks", nil)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Other Frameworks", found.Name)

	missing, err := theStorage.FindCategoryByName(ctx, "Rust", nil)
	require.NoError(t, err)
	assert.Nil(t, missing)

	top, err := theStorage.TopCategoriesByLikes(ctx, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "Python", top[0].Name)
	assert.Equal(t, "Django", top[1].Name, "ties keep insertion order")
	assert.Equal(t, "Go", top[2].Name)

	none, err := theStorage.TopCategoriesByLikes(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPagesAndCascade(t *testing.T) {
	ctx := context.Background()
	theStorage, _ := newTestStorage(t)

	category := models.NewCategory("Python", 0, 0)
	require.NoError(t, theStorage.InsertCategory(ctx, category, nil))

	pages := []*models.Page{
		{CategoryID: category.ID, Title: "Official Python Tutorial", URL: "http://docs.python.org/3/tutorial/", Views: 10},
		{CategoryID: category.ID, Title: "How to Think like a Computer Scientist", URL: "http://www.greenteapress.com/thinkpython/", Views: 30},
	}
	for _, p := range pages {
		require.NoError(t, theStorage.InsertPage(ctx, p, nil))
	}

	duplicate := *pages[0]
	err := theStorage.InsertPage(ctx, &duplicate, nil)
	assert.True(t, errors.Is(err, models.ErrConflict))

	err = theStorage.InsertPage(ctx, &models.Page{CategoryID: 999, Title: "x", URL: "http://x"}, nil)
	assert.Error(t, err)

	found, err := theStorage.FindPage(ctx, category.ID, pages[1].Title, pages[1].URL, nil)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, pages[1].ID, found.ID)

	top, err := theStorage.TopPagesByViews(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, pages[1].ID, top[0].ID)

	require.NoError(t, theStorage.DeleteCategory(ctx, category.ID, nil))
	listed, err := theStorage.ListPagesForCategory(ctx, category.ID)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestUsersAndProfiles(t *testing.T) {
	ctx := context.Background()
	theStorage, _ := newTestStorage(t)

	usr := &user.User{Username: "leif", Password: "plain", IsActive: true}
	userID, err := theStorage.CreateUser(ctx, usr, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), userID)
	assert.False(t, usr.DateJoined.IsZero())

	_, err = theStorage.CreateUser(ctx, &user.User{Username: "leif"}, nil)
	assert.True(t, errors.Is(err, models.ErrConflict))

	usr.Password = "hashed"
	require.NoError(t, theStorage.UpdateUser(ctx, usr, nil))

	loaded, err := theStorage.GetUserByUsername(ctx, "leif", nil)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "hashed", loaded.Password)

	require.NoError(t, theStorage.InsertUserProfile(ctx, &models.UserProfile{UserID: userID, Website: "http://leif.example"}, nil))
	err = theStorage.InsertUserProfile(ctx, &models.UserProfile{UserID: userID}, nil)
	assert.True(t, errors.Is(err, models.ErrConflict))

	profile, err := theStorage.GetUserProfile(ctx, userID, nil)
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "http://leif.example", profile.Website)

	users, err := theStorage.GetNumberOfUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), users)
}

func TestPersistence(t *testing.T) {
	ctx := context.Background()
	theStorage, fileName := newTestStorage(t)

	category := models.NewCategory("Django", 64, 32)
	require.NoError(t, theStorage.InsertCategory(ctx, category, nil))
	require.NoError(t, theStorage.Close())

	reopened, err := New(fileName)
	require.NoError(t, err)

	found, err := reopened.FindCategoryBySlug(ctx, "django", nil)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, *category, *found)

	next := models.NewCategory("Flask", 0, 0)
	require.NoError(t, reopened.InsertCategory(ctx, next, nil))
	assert.Equal(t, category.ID+1, next.ID)
}

func TestFailedWriteLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.Mkdir(dir, 0o755))
	fileName := filepath.Join(dir, "db_test.json")

	theStorage, err := New(fileName)
	require.NoError(t, err)

	python := models.NewCategory("Python", 128, 64)
	require.NoError(t, theStorage.InsertCategory(ctx, python, nil))
	leif := &user.User{Username: "leif", IsActive: true}
	_, err = theStorage.CreateUser(ctx, leif, nil)
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(dir))

	assert.Error(t, theStorage.InsertCategory(ctx, models.NewCategory("Lost", 0, 0), nil))
	assert.Error(t, theStorage.InsertPage(ctx, &models.Page{CategoryID: python.ID, Title: "Lost", URL: "http://lost.example"}, nil))
	_, err = theStorage.CreateUser(ctx, &user.User{Username: "ghost"}, nil)
	assert.Error(t, err)
	assert.Error(t, theStorage.InsertUserProfile(ctx, &models.UserProfile{UserID: leif.ID}, nil))
	leif.IsActive = false
	assert.Error(t, theStorage.UpdateUser(ctx, leif, nil))
	assert.Error(t, theStorage.DeleteCategory(ctx, python.ID, nil))

	lost, err := theStorage.FindCategoryByName(ctx, "Lost", nil)
	require.NoError(t, err)
	assert.Nil(t, lost)
	ghost, err := theStorage.GetUserByUsername(ctx, "ghost", nil)
	require.NoError(t, err)
	assert.Nil(t, ghost)
	stored, err := theStorage.GetUserByID(ctx, leif.ID, nil)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	profile, err := theStorage.GetUserProfile(ctx, leif.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, profile)
	kept, err := theStorage.FindCategoryBySlug(ctx, "python", nil)
	require.NoError(t, err)
	assert.NotNil(t, kept)
	pages, err := theStorage.ListPagesForCategory(ctx, python.ID)
	require.NoError(t, err)
	assert.Empty(t, pages)

	require.NoError(t, os.Mkdir(dir, 0o755))
	flask := models.NewCategory("Flask", 0, 0)
	require.NoError(t, theStorage.InsertCategory(ctx, flask, nil))
	assert.Equal(t, python.ID+1, flask.ID)

	reopened, err := New(fileName)
	require.NoError(t, err)
	lost, err = reopened.FindCategoryByName(ctx, "Lost", nil)
	require.NoError(t, err)
	assert.Nil(t, lost)
}
