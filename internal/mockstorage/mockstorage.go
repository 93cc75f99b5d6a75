// Package mockstorage provides a testify-based mock implementation
// of the storage interfaces used by the service and router packages.
// It is used for unit testing failure paths that real stores cannot produce.
package mockstorage

import (
	"context"
	"database/sql"

	"github.com/stretchr/testify/mock"

	"github.com/patric-chuzhbe/rango/internal/models"
	"github.com/patric-chuzhbe/rango/internal/user"
)

// StorageMock is a testify mock that implements storage.Storage.
type StorageMock struct {
	mock.Mock

	// OnGetNumberOfUsers is an optional function field that can be assigned
	// to define custom mock behavior for GetNumberOfUsers in tests.
	//
	// If set, GetNumberOfUsers will delegate to this function instead of
	// using testify's generic mock handler.
	OnGetNumberOfUsers func(ctx context.Context) (int64, error)
}

// Ping mocks the pinger interface to simulate a health check.
func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close mocks releasing the storage.
func (m *StorageMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

// BeginTransaction mocks the beginning of a transaction.
func (m *StorageMock) BeginTransaction() (*sql.Tx, error) {
	args := m.Called()
	tx, _ := args.Get(0).(*sql.Tx)
	return tx, args.Error(1)
}

// CommitTransaction mocks committing a transaction.
func (m *StorageMock) CommitTransaction(tx *sql.Tx) error {
	args := m.Called(tx)
	return args.Error(0)
}

// RollbackTransaction mocks rolling back a transaction.
func (m *StorageMock) RollbackTransaction(tx *sql.Tx) error {
	args := m.Called(tx)
	return args.Error(0)
}

func category(args mock.Arguments, index int) *models.Category {
	result, _ := args.Get(index).(*models.Category)
	return result
}

// InsertCategory mocks storing a category.
func (m *StorageMock) InsertCategory(ctx context.Context, c *models.Category, tx *sql.Tx) error {
	args := m.Called(ctx, c, tx)
	return args.Error(0)
}

// FindCategoryByName mocks a category lookup by name.
func (m *StorageMock) FindCategoryByName(ctx context.Context, name string, tx *sql.Tx) (*models.Category, error) {
	args := m.Called(ctx, name, tx)
	return category(args, 0), args.Error(1)
}

// FindCategoryBySlug mocks a category lookup by slug.
func (m *StorageMock) FindCategoryBySlug(ctx context.Context, slug string, tx *sql.Tx) (*models.Category, error) {
	args := m.Called(ctx, slug, tx)
	return category(args, 0), args.Error(1)
}

// TopCategoriesByLikes mocks the most liked categories listing.
func (m *StorageMock) TopCategoriesByLikes(ctx context.Context, limit int) ([]models.Category, error) {
	args := m.Called(ctx, limit)
	result, _ := args.Get(0).([]models.Category)
	return result, args.Error(1)
}

// DeleteCategory mocks removing a category.
func (m *StorageMock) DeleteCategory(ctx context.Context, categoryID int64, tx *sql.Tx) error {
	args := m.Called(ctx, categoryID, tx)
	return args.Error(0)
}

// InsertPage mocks storing a page.
func (m *StorageMock) InsertPage(ctx context.Context, page *models.Page, tx *sql.Tx) error {
	args := m.Called(ctx, page, tx)
	return args.Error(0)
}

// FindPage mocks a page lookup by its (category, title, url) triple.
func (m *StorageMock) FindPage(
	ctx context.Context,
	categoryID int64,
	title,
	url string,
	tx *sql.Tx,
) (*models.Page, error) {
	args := m.Called(ctx, categoryID, title, url, tx)
	result, _ := args.Get(0).(*models.Page)
	return result, args.Error(1)
}

// ListPagesForCategory mocks listing the pages of a category.
func (m *StorageMock) ListPagesForCategory(ctx context.Context, categoryID int64) ([]models.Page, error) {
	args := m.Called(ctx, categoryID)
	result, _ := args.Get(0).([]models.Page)
	return result, args.Error(1)
}

// TopPagesByViews mocks the most viewed pages listing.
func (m *StorageMock) TopPagesByViews(ctx context.Context, limit int) ([]models.Page, error) {
	args := m.Called(ctx, limit)
	result, _ := args.Get(0).([]models.Page)
	return result, args.Error(1)
}

// CreateUser mocks inserting an account.
func (m *StorageMock) CreateUser(ctx context.Context, usr *user.User, tx *sql.Tx) (int64, error) {
	args := m.Called(ctx, usr, tx)
	id, _ := args.Get(0).(int64)
	return id, args.Error(1)
}

// UpdateUser mocks overwriting an account.
func (m *StorageMock) UpdateUser(ctx context.Context, usr *user.User, tx *sql.Tx) error {
	args := m.Called(ctx, usr, tx)
	return args.Error(0)
}

// GetUserByID mocks fetching an account by ID.
func (m *StorageMock) GetUserByID(ctx context.Context, userID int64, tx *sql.Tx) (*user.User, error) {
	args := m.Called(ctx, userID, tx)
	result, _ := args.Get(0).(*user.User)
	return result, args.Error(1)
}

// GetUserByUsername mocks fetching an account by username.
func (m *StorageMock) GetUserByUsername(ctx context.Context, username string, tx *sql.Tx) (*user.User, error) {
	args := m.Called(ctx, username, tx)
	result, _ := args.Get(0).(*user.User)
	return result, args.Error(1)
}

// InsertUserProfile mocks storing a profile.
func (m *StorageMock) InsertUserProfile(ctx context.Context, profile *models.UserProfile, tx *sql.Tx) error {
	args := m.Called(ctx, profile, tx)
	return args.Error(0)
}

// GetUserProfile mocks fetching a profile.
func (m *StorageMock) GetUserProfile(ctx context.Context, userID int64, tx *sql.Tx) (*models.UserProfile, error) {
	args := m.Called(ctx, userID, tx)
	result, _ := args.Get(0).(*models.UserProfile)
	return result, args.Error(1)
}

// GetNumberOfCategories mocks counting categories.
func (m *StorageMock) GetNumberOfCategories(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	count, _ := args.Get(0).(int64)
	return count, args.Error(1)
}

// GetNumberOfPages mocks counting pages.
func (m *StorageMock) GetNumberOfPages(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	count, _ := args.Get(0).(int64)
	return count, args.Error(1)
}

// GetNumberOfUsers mocks counting accounts.
// If OnGetNumberOfUsers is set, it is called instead of the generic mock handler.
func (m *StorageMock) GetNumberOfUsers(ctx context.Context) (int64, error) {
	if m.OnGetNumberOfUsers != nil {
		return m.OnGetNumberOfUsers(ctx)
	}
	args := m.Called(ctx)
	count, _ := args.Get(0).(int64)
	return count, args.Error(1)
}
