// Package service implements the operations of the content directory on
// top of a storage backend: get-or-create of categories and pages, the
// ranked listings and the registration flow.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"mime/multipart"

	"go.uber.org/zap"

	"github.com/patric-chuzhbe/rango/internal/forms"
	"github.com/patric-chuzhbe/rango/internal/logger"
	"github.com/patric-chuzhbe/rango/internal/models"
	"github.com/patric-chuzhbe/rango/internal/user"
)

type transactioner interface {
	BeginTransaction() (*sql.Tx, error)

	RollbackTransaction(transaction *sql.Tx) error

	CommitTransaction(transaction *sql.Tx) error
}

type categoryKeeper interface {
	InsertCategory(ctx context.Context, category *models.Category, transaction *sql.Tx) error

	FindCategoryByName(ctx context.Context, name string, transaction *sql.Tx) (*models.Category, error)

	FindCategoryBySlug(ctx context.Context, slug string, transaction *sql.Tx) (*models.Category, error)

	TopCategoriesByLikes(ctx context.Context, limit int) ([]models.Category, error)
}

type pageKeeper interface {
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
}

type userKeeper interface {
	CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (int64, error)

	UpdateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) error

	InsertUserProfile(ctx context.Context, profile *models.UserProfile, transaction *sql.Tx) error
}

type counter interface {
	GetNumberOfCategories(ctx context.Context) (int64, error)

	GetNumberOfPages(ctx context.Context) (int64, error)

	GetNumberOfUsers(ctx context.Context) (int64, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type storage interface {
	transactioner
	categoryKeeper
	pageKeeper
	userKeeper
	counter
	pinger
}

type pictureSaver interface {
	SavePicture(header *multipart.FileHeader) (string, error)
	Remove(rel string) error
}

// Service is the application layer shared by the HTTP and gRPC surfaces.
type Service struct {
	db    storage
	media pictureSaver
}

// New creates a Service over db. media stores uploaded profile pictures.
func New(db storage, media pictureSaver) *Service {
	return &Service{
		db:    db,
		media: media,
	}
}

// GetOrCreateCategory returns the category named name, creating it with
// the given counters when it does not exist. Counters of an existing
// category are never changed. created reports whether a row was inserted.
//
// An insert that loses a race against a concurrent insert of the same name
// is answered with the winning row. A different category that derives the
// same slug makes the call fail with models.ErrConflict.
func (s *Service) GetOrCreateCategory(
	ctx context.Context,
	name string,
	views,
	likes int,
) (category *models.Category, created bool, err error) {
	existing, err := s.db.FindCategoryByName(ctx, name, nil)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	category = models.NewCategory(name, views, likes)
	err = s.db.InsertCategory(ctx, category, nil)
	if err == nil {
		return category, true, nil
	}
	if !errors.Is(err, models.ErrConflict) {
		return nil, false, err
	}

	existing, err = s.db.FindCategoryByName(ctx, name, nil)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("category %q: slug %q is taken: %w", name, category.Slug, models.ErrConflict)
	}

	return existing, false, nil
}

// GetOrCreatePage returns the page of category with the given title and
// url, creating it with views when it does not exist.
func (s *Service) GetOrCreatePage(
	ctx context.Context,
	category *models.Category,
	title,
	url string,
	views int,
) (page *models.Page, created bool, err error) {
	existing, err := s.db.FindPage(ctx, category.ID, title, url, nil)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	page = &models.Page{
		CategoryID: category.ID,
		Title:      title,
		URL:        url,
		Views:      views,
	}
	err = s.db.InsertPage(ctx, page, nil)
	if err == nil {
		return page, true, nil
	}
	if !errors.Is(err, models.ErrConflict) {
		return nil, false, err
	}

	existing, err = s.db.FindPage(ctx, category.ID, title, url, nil)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("page %q: %w", title, models.ErrConflict)
	}

	return existing, false, nil
}

// FindCategoryBySlug returns the category with the given slug, or nil.
func (s *Service) FindCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	return s.db.FindCategoryBySlug(ctx, slug, nil)
}

// ListPagesForCategory returns the pages of category.
func (s *Service) ListPagesForCategory(ctx context.Context, category *models.Category) ([]models.Page, error) {
	return s.db.ListPagesForCategory(ctx, category.ID)
}

// TopCategoriesByLikes returns up to n categories, most liked first.
func (s *Service) TopCategoriesByLikes(ctx context.Context, n int) ([]models.Category, error) {
	return s.db.TopCategoriesByLikes(ctx, n)
}

// TopPagesByViews returns up to n pages, most viewed first.
func (s *Service) TopPagesByViews(ctx context.Context, n int) ([]models.Page, error) {
	return s.db.TopPagesByViews(ctx, n)
}

// AddCategory saves the category described by a valid form. A name or
// slug that is already taken is reported as forms.ValidationErrors.
func (s *Service) AddCategory(ctx context.Context, f *forms.CategoryForm) (*models.Category, error) {
	category := f.Category()

	existing, err := s.db.FindCategoryByName(ctx, category.Name, nil)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, forms.ValidationErrors{"name": {"Category with this Name already exists."}}
	}

	err = s.db.InsertCategory(ctx, category, nil)
	if errors.Is(err, models.ErrConflict) {
		return nil, forms.ValidationErrors{"name": {"Category with this Name or Slug already exists."}}
	}
	if err != nil {
		return nil, err
	}

	return category, nil
}

// AddPage saves the page described by a valid form under category.
// New pages start with zero views; submitting an existing page again
// returns the stored one.
func (s *Service) AddPage(ctx context.Context, category *models.Category, f *forms.PageForm) (*models.Page, error) {
	page, _, err := s.GetOrCreatePage(ctx, category, f.Title, f.URL, 0)

	return page, err
}

func usernameTaken() forms.ValidationErrors {
	return forms.ValidationErrors{"username": {"A user with that username already exists."}}
}

// Register creates an account and its profile in one transaction.
// A taken username is reported as forms.ValidationErrors.
//
// The account row is first written as submitted and then saved again with
// the bcrypt hash of the password, so the stored password is never the
// cleartext once Register returns.
func (s *Service) Register(
	ctx context.Context,
	userForm *forms.UserForm,
	profileForm *forms.UserProfileForm,
) (*user.User, *models.UserProfile, error) {
	tx, err := s.db.BeginTransaction()
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = s.db.RollbackTransaction(tx)
	}()

	usr := userForm.User()
	userID, err := s.db.CreateUser(ctx, usr, tx)
	if errors.Is(err, models.ErrConflict) {
		return nil, nil, usernameTaken()
	}
	if err != nil {
		return nil, nil, err
	}

	if err := usr.SetPassword(userForm.Password); err != nil {
		return nil, nil, err
	}
	if err := s.db.UpdateUser(ctx, usr, tx); err != nil {
		return nil, nil, err
	}

	profile := &models.UserProfile{
		UserID:  userID,
		Website: profileForm.Website,
	}
	if profileForm.Picture != nil {
		profile.Picture, err = s.media.SavePicture(profileForm.Picture)
		if err != nil {
			return nil, nil, err
		}
	}

	err = s.db.InsertUserProfile(ctx, profile, tx)
	if err == nil {
		err = s.db.CommitTransaction(tx)
	}
	if err != nil {
		if profile.Picture != "" {
			if removeErr := s.media.Remove(profile.Picture); removeErr != nil {
				logger.Log.Debugln("Error calling the `s.media.Remove()`: ", zap.Error(removeErr))
			}
		}
		return nil, nil, err
	}

	return usr, profile, nil
}

// Stats returns the number of stored categories, pages and users.
func (s *Service) Stats(ctx context.Context) (models.Stats, error) {
	var (
		stats models.Stats
		err   error
	)

	if stats.Categories, err = s.db.GetNumberOfCategories(ctx); err != nil {
		return models.Stats{}, err
	}
	if stats.Pages, err = s.db.GetNumberOfPages(ctx); err != nil {
		return models.Stats{}, err
	}
	if stats.Users, err = s.db.GetNumberOfUsers(ctx); err != nil {
		return models.Stats{}, err
	}

	return stats, nil
}

// Ping checks that the storage is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
