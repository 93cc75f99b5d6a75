// Package media stores files uploaded by users below a media root directory.
package media

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ProfileImagesDir is the directory of profile pictures, relative to the media root.
const ProfileImagesDir = "profile_images"

// Store saves uploads below root.
type Store struct {
	root string
}

// New returns a Store writing below root.
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the media root directory.
func (s *Store) Root() string {
	return s.root
}

// SavePicture copies an uploaded profile picture into the media root and
// returns its slash separated path relative to the root. The file gets a
// random name and the extension of its detected content type.
func (s *Store) SavePicture(header *multipart.FileHeader) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("in internal/media/media.go/SavePicture(): error while `header.Open()` calling: %w", err)
	}
	defer src.Close()

	detected, err := mimetype.DetectReader(src)
	if err != nil {
		return "", fmt.Errorf("in internal/media/media.go/SavePicture(): error while `mimetype.DetectReader()` calling: %w", err)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, ProfileImagesDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	name := uuid.New().String() + detected.Extension()
	dst, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(dst.Name())
		return "", err
	}

	if err := dst.Close(); err != nil {
		return "", err
	}

	return path.Join(ProfileImagesDir, name), nil
}

// Remove deletes a file previously returned by SavePicture.
func (s *Store) Remove(rel string) error {
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(rel)))
	if os.IsNotExist(err) {
		return nil
	}

	return err
}
