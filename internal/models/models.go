// Package models defines the records of the content directory and the
// constraints shared by every storage implementation.
package models

import (
	"errors"

	"github.com/gosimple/slug"
)

// Field length limits shared by forms and storage schemas.
const (
	CategoryNameMaxLength = 128
	PageTitleMaxLength    = 128
	URLMaxLength          = 200
)

const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeSQLite
	StorageTypeFile
	StorageTypeMemory
)

// ErrConflict is returned by storage when an insert violates a uniqueness constraint.
var ErrConflict = errors.New("record already exists")

// Category groups pages under a human readable name.
// Slug is derived from Name and used as the public lookup key.
type Category struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Views int    `json:"views"`
	Likes int    `json:"likes"`
}

// Page is a curated link that belongs to exactly one category.
type Page struct {
	ID         int64  `json:"id"`
	CategoryID int64  `json:"category_id"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	Views      int    `json:"views"`
}

// UserProfile extends an account with optional public details.
type UserProfile struct {
	UserID  int64  `json:"user_id"`
	Website string `json:"website"`
	Picture string `json:"picture"`
}

// Stats holds row counts reported by the internal stats endpoint.
type Stats struct {
	Categories int64 `json:"categories"`
	Pages      int64 `json:"pages"`
	Users      int64 `json:"users"`
}

// Slugify returns the URL-safe lowercase form of name.
func Slugify(name string) string {
	return slug.Make(name)
}

// NewCategory builds a category with its slug derived from name.
func NewCategory(name string, views, likes int) *Category {
	return &Category{
		Name:  name,
		Slug:  Slugify(name),
		Views: views,
		Likes: likes,
	}
}
