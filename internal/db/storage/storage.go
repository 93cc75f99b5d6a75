// Package storage declares the full contract implemented by every
// storage backend of the directory.
package storage

import (
	"context"
	"database/sql"

	"github.com/patric-chuzhbe/rango/internal/models"
	"github.com/patric-chuzhbe/rango/internal/user"
)

// Storage is implemented by the SQL, JSON file and in-memory stores.
//
// Lookups return (nil, nil) when nothing matches. Inserts report a
// uniqueness violation as models.ErrConflict. A nil transaction runs the
// call outside of any transaction.
type Storage interface {
	InsertCategory(ctx context.Context, category *models.Category, transaction *sql.Tx) error

	FindCategoryByName(ctx context.Context, name string, transaction *sql.Tx) (*models.Category, error)

	FindCategoryBySlug(ctx context.Context, slug string, transaction *sql.Tx) (*models.Category, error)

	TopCategoriesByLikes(ctx context.Context, limit int) ([]models.Category, error)

	DeleteCategory(ctx context.Context, categoryID int64, transaction *sql.Tx) error

	InsertPage(ctx context.Context, page *models.Page, transaction *sql.Tx) error

	FindPage(
		ctx context.Context,
		categoryID int64,
		title,
		url string,
		transaction *sql.Tx,
	) (*models.Page, error)

	ListPagesForCategory(ctx context.Context, categoryID int64) ([]models.Page, error)

	TopPagesByViews(ctx context.Context, limit int) ([]models.Page, error)

	CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (int64, error)

	UpdateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) error

	GetUserByID(ctx context.Context, userID int64, transaction *sql.Tx) (*user.User, error)

	GetUserByUsername(ctx context.Context, username string, transaction *sql.Tx) (*user.User, error)

	InsertUserProfile(ctx context.Context, profile *models.UserProfile, transaction *sql.Tx) error

	GetUserProfile(ctx context.Context, userID int64, transaction *sql.Tx) (*models.UserProfile, error)

	GetNumberOfCategories(ctx context.Context) (int64, error)

	GetNumberOfPages(ctx context.Context) (int64, error)

	GetNumberOfUsers(ctx context.Context) (int64, error)

	BeginTransaction() (*sql.Tx, error)

	RollbackTransaction(transaction *sql.Tx) error

	CommitTransaction(transaction *sql.Tx) error

	Ping(ctx context.Context) error

	Close() error
}
