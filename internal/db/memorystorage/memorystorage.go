// Package memorystorage provides a volatile directory store. It is the
// JSON store without a backing file and is used when no other storage
// is configured.
package memorystorage

import (
	"github.com/patric-chuzhbe/rango/internal/db/jsondb"
)

// MemoryStorage loses its content when the process exits.
type MemoryStorage struct {
	*jsondb.JSONDB
}

// New returns an empty MemoryStorage.
func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		JSONDB: jsondb.NewWithCache(jsondb.NewCache()),
	}, nil
}

// Close releases nothing; the content is discarded with the value.
func (theStorage *MemoryStorage) Close() error {
	return nil
}
