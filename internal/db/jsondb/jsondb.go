// Package jsondb implements the directory storage as an in-process cache
// that is persisted to a JSON file after every change.
package jsondb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/rango/internal/models"
	"github.com/patric-chuzhbe/rango/internal/user"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONDB keeps every record in memory. When fileName is set, the cache is
// written to that file after each change and loaded from it by New.
// Transactions are not supported: BeginTransaction returns a nil *sql.Tx.
type JSONDB struct {
	mu       sync.Mutex
	fileName string
	Cache    CacheStruct
}

// CacheStruct is the persisted state. Records are kept in insertion order,
// which is also ascending id order.
type CacheStruct struct {
	Categories     []models.Category
	Pages          []models.Page
	Users          []user.User
	Profiles       []models.UserProfile
	NextCategoryID int64
	NextPageID     int64
	NextUserID     int64
}

// NewCache returns an empty cache with id sequences starting at 1.
func NewCache() CacheStruct {
	return CacheStruct{
		Categories:     []models.Category{},
		Pages:          []models.Page{},
		Users:          []user.User{},
		Profiles:       []models.UserProfile{},
		NextCategoryID: 1,
		NextPageID:     1,
		NextUserID:     1,
	}
}

// NewWithCache returns a store over cache that is never written to disk.
func NewWithCache(cache CacheStruct) *JSONDB {
	return &JSONDB{Cache: cache}
}

// New loads the store from fileName, creating the file when it does not exist.
func New(fileName string) (*JSONDB, error) {
	db := &JSONDB{
		fileName: fileName,
		Cache:    NewCache(),
	}

	err := parseJSONFile(fileName, &db.Cache)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("in internal/db/jsondb/jsondb.go/New(): error while `parseJSONFile()` calling: %w", err)
		}
		if err := writeToJSONFile(fileName, db.Cache); err != nil {
			return nil, err
		}
	}

	return db, nil
}

func writeToJSONFile(fileName string, cache interface{}) error {
	jsonData, err := json.MarshalIndent(cache, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}

	if err := os.WriteFile(fileName, jsonData, 0644); err != nil {
		return fmt.Errorf("error writing to file: %w", err)
	}

	return nil
}

func parseJSONFile(fileName string, cache *CacheStruct) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(cache)
}

// persist must be called with db.mu held.
func (db *JSONDB) persist() error {
	if db.fileName == "" {
		return nil
	}

	return writeToJSONFile(db.fileName, db.Cache)
}

// persistOrRestore persists the cache and puts previous back when the file
// cannot be written, so a failed write leaves no trace in memory.
// It must be called with db.mu held.
func (db *JSONDB) persistOrRestore(previous CacheStruct) error {
	if err := db.persist(); err != nil {
		db.Cache = previous
		return err
	}

	return nil
}

// BeginTransaction is a no-op.
func (db *JSONDB) BeginTransaction() (*sql.Tx, error) {
	return nil, nil
}

// CommitTransaction is a no-op.
func (db *JSONDB) CommitTransaction(transaction *sql.Tx) error {
	return nil
}

// RollbackTransaction is a no-op.
func (db *JSONDB) RollbackTransaction(transaction *sql.Tx) error {
	return nil
}

// Ping always succeeds.
func (db *JSONDB) Ping(ctx context.Context) error {
	return nil
}

// Close flushes the cache to the file.
func (db *JSONDB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.persist()
}

// InsertCategory stores category and assigns its ID.
// Names and slugs are unique.
func (db *JSONDB) InsertCategory(ctx context.Context, category *models.Category, transaction *sql.Tx) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.Cache.Categories {
		if existing.Name == category.Name || existing.Slug == category.Slug {
			return models.ErrConflict
		}
	}

	previous := db.Cache
	category.ID = db.Cache.NextCategoryID
	db.Cache.NextCategoryID++
	db.Cache.Categories = append(db.Cache.Categories, *category)

	return db.persistOrRestore(previous)
}

func (db *JSONDB) findCategory(match func(models.Category) bool) *models.Category {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, category := range db.Cache.Categories {
		if match(category) {
			found := category
			return &found
		}
	}

	return nil
}

// FindCategoryByName returns the category named name.
func (db *JSONDB) FindCategoryByName(ctx context.Context, name string, transaction *sql.Tx) (*models.Category, error) {
	return db.findCategory(func(c models.Category) bool { return c.Name == name }), nil
}

// FindCategoryBySlug returns the category with the given slug.
func (db *JSONDB) FindCategoryBySlug(ctx context.Context, slug string, transaction *sql.Tx) (*models.Category, error) {
	return db.findCategory(func(c models.Category) bool { return c.Slug == slug }), nil
}

// TopCategoriesByLikes returns up to limit categories, most liked first.
func (db *JSONDB) TopCategoriesByLikes(ctx context.Context, limit int) ([]models.Category, error) {
	db.mu.Lock()
	result := make([]models.Category, len(db.Cache.Categories))
	copy(result, db.Cache.Categories)
	db.mu.Unlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Likes > result[j].Likes
	})

	return truncate(result, limit), nil
}

// DeleteCategory removes a category together with its pages.
func (db *JSONDB) DeleteCategory(ctx context.Context, categoryID int64, transaction *sql.Tx) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	previous := db.Cache
	db.Cache.Categories = funk.Filter(db.Cache.Categories, func(c models.Category) bool {
		return c.ID != categoryID
	}).([]models.Category)
	db.Cache.Pages = funk.Filter(db.Cache.Pages, func(p models.Page) bool {
		return p.CategoryID != categoryID
	}).([]models.Page)

	return db.persistOrRestore(previous)
}

// InsertPage stores page and assigns its ID. The category must exist and
// the (category, title, url) triple is unique.
func (db *JSONDB) InsertPage(ctx context.Context, page *models.Page, transaction *sql.Tx) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	categoryExists := funk.Find(db.Cache.Categories, func(c models.Category) bool {
		return c.ID == page.CategoryID
	}) != nil
	if !categoryExists {
		return fmt.Errorf("category %d does not exist", page.CategoryID)
	}

	for _, existing := range db.Cache.Pages {
		if existing.CategoryID == page.CategoryID && existing.Title == page.Title && existing.URL == page.URL {
			return models.ErrConflict
		}
	}

	previous := db.Cache
	page.ID = db.Cache.NextPageID
	db.Cache.NextPageID++
	db.Cache.Pages = append(db.Cache.Pages, *page)

	return db.persistOrRestore(previous)
}

// FindPage returns the page identified by the (category, title, url) triple.
func (db *JSONDB) FindPage(
	ctx context.Context,
	categoryID int64,
	title,
	url string,
	transaction *sql.Tx,
) (*models.Page, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, page := range db.Cache.Pages {
		if page.CategoryID == categoryID && page.Title == title && page.URL == url {
			found := page
			return &found, nil
		}
	}

	return nil, nil
}

// ListPagesForCategory returns the pages of a category in insertion order.
func (db *JSONDB) ListPagesForCategory(ctx context.Context, categoryID int64) ([]models.Page, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	return funk.Filter(db.Cache.Pages, func(p models.Page) bool {
		return p.CategoryID == categoryID
	}).([]models.Page), nil
}

// TopPagesByViews returns up to limit pages, most viewed first.
func (db *JSONDB) TopPagesByViews(ctx context.Context, limit int) ([]models.Page, error) {
	db.mu.Lock()
	result := make([]models.Page, len(db.Cache.Pages))
	copy(result, db.Cache.Pages)
	db.mu.Unlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Views > result[j].Views
	})

	return truncate(result, limit), nil
}

func truncate[T any](items []T, limit int) []T {
	if limit <= 0 {
		return []T{}
	}
	if len(items) > limit {
		return items[:limit]
	}

	return items
}

// CreateUser stores usr and returns its new ID. Usernames are unique.
func (db *JSONDB) CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.Cache.Users {
		if existing.Username == usr.Username {
			return 0, models.ErrConflict
		}
	}

	previous := db.Cache
	usr.ID = db.Cache.NextUserID
	if usr.DateJoined.IsZero() {
		usr.DateJoined = time.Now().UTC()
	}
	db.Cache.NextUserID++
	db.Cache.Users = append(db.Cache.Users, *usr)

	if err := db.persistOrRestore(previous); err != nil {
		return 0, err
	}

	return usr.ID, nil
}

// UpdateUser overwrites the stored account with usr.
func (db *JSONDB) UpdateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for i, existing := range db.Cache.Users {
		if existing.ID == usr.ID {
			db.Cache.Users[i] = *usr
			if err := db.persist(); err != nil {
				db.Cache.Users[i] = existing
				return err
			}
			return nil
		}
	}

	return fmt.Errorf("user %d does not exist", usr.ID)
}

func (db *JSONDB) findUser(match func(user.User) bool) *user.User {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, usr := range db.Cache.Users {
		if match(usr) {
			found := usr
			return &found
		}
	}

	return nil
}

// GetUserByID returns the account with the given ID.
func (db *JSONDB) GetUserByID(ctx context.Context, userID int64, transaction *sql.Tx) (*user.User, error) {
	return db.findUser(func(u user.User) bool { return u.ID == userID }), nil
}

// GetUserByUsername returns the account with the given username.
func (db *JSONDB) GetUserByUsername(ctx context.Context, username string, transaction *sql.Tx) (*user.User, error) {
	return db.findUser(func(u user.User) bool { return u.Username == username }), nil
}

// InsertUserProfile stores the profile of an existing account.
// An account has at most one profile.
func (db *JSONDB) InsertUserProfile(ctx context.Context, profile *models.UserProfile, transaction *sql.Tx) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	userExists := funk.Find(db.Cache.Users, func(u user.User) bool {
		return u.ID == profile.UserID
	}) != nil
	if !userExists {
		return fmt.Errorf("user %d does not exist", profile.UserID)
	}

	for _, existing := range db.Cache.Profiles {
		if existing.UserID == profile.UserID {
			return models.ErrConflict
		}
	}

	previous := db.Cache
	db.Cache.Profiles = append(db.Cache.Profiles, *profile)

	return db.persistOrRestore(previous)
}

// GetUserProfile returns the profile of an account.
func (db *JSONDB) GetUserProfile(ctx context.Context, userID int64, transaction *sql.Tx) (*models.UserProfile, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, profile := range db.Cache.Profiles {
		if profile.UserID == userID {
			found := profile
			return &found, nil
		}
	}

	return nil, nil
}

// GetNumberOfCategories returns the number of stored categories.
func (db *JSONDB) GetNumberOfCategories(ctx context.Context) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	return int64(len(db.Cache.Categories)), nil
}

// GetNumberOfPages returns the number of stored pages.
func (db *JSONDB) GetNumberOfPages(ctx context.Context) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	return int64(len(db.Cache.Pages)), nil
}

// GetNumberOfUsers returns the number of stored accounts.
func (db *JSONDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	return int64(len(db.Cache.Users)), nil
}
