// Package receipts stores receipt images on the local filesystem.
package receipts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// MaxImageSize is the largest receipt accepted by Upload.
const MaxImageSize = 10 << 20

var (
	ErrEmptyImage    = errors.New("receipt image is empty")
	ErrImageTooLarge = errors.New("receipt image too large")
	ErrNotAnImage    = errors.New("receipt is not an image")
)

// FileStore writes each uploaded image to its own file under a directory.
type FileStore struct {
	dir     string
	baseURL string
}

// NewFileStore creates dir if needed. Returned references are baseURL joined with the file name,
// or file:// URLs when baseURL is empty.
func NewFileStore(dir, baseURL string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create receipts directory: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve receipts directory: %w", err)
	}
	return &FileStore{dir: abs, baseURL: baseURL}, nil
}

// Upload stores image and returns a URL referencing it.
func (s *FileStore) Upload(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(image) == 0 {
		return "", ErrEmptyImage
	}
	if len(image) > MaxImageSize {
		return "", ErrImageTooLarge
	}

	ext, err := extension(image)
	if err != nil {
		return "", err
	}

	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(s.dir, name), image, 0o644); err != nil {
		return "", fmt.Errorf("failed to write receipt: %w", err)
	}

	if s.baseURL == "" {
		return (&url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(s.dir, name))}).String(), nil
	}
	return url.JoinPath(s.baseURL, name)
}

// Dir is the directory images are written to.
func (s *FileStore) Dir() string {
	return s.dir
}

func extension(image []byte) (string, error) {
	switch http.DetectContentType(image) {
	case "image/jpeg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/gif":
		return ".gif", nil
	case "image/webp":
		return ".webp", nil
	default:
		return "", ErrNotAnImage
	}
}
