// Package reportstore archives rendered closure reports.
package reportstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Store persists a report body under key and returns where it landed.
type Store interface {
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// ErrInvalidKey rejects keys that would escape the archive root.
var ErrInvalidKey = errors.New("reportstore: invalid key")

// FileStore writes reports below a local directory.
type FileStore struct {
	root string
}

// NewFileStore creates the root directory if needed.
func NewFileStore(root string) (*FileStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("reportstore: empty root directory")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("reportstore: create root: %w", err)
	}
	return &FileStore{root: root}, nil
}

// Put writes body atomically through a temp file and rename.
func (s *FileStore) Put(ctx context.Context, key, _ string, body []byte) (string, error) {
	if s == nil {
		return "", errors.New("reportstore: nil file store")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	target := filepath.Join(s.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("reportstore: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".report-*")
	if err != nil {
		return "", fmt.Errorf("reportstore: temp file: %w", err)
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("reportstore: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("reportstore: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("reportstore: rename: %w", err)
	}
	return target, nil
}

// Key builds the archive key for a closure report.
func Key(prefix, pointOfSaleID, closureID, format string) string {
	return path.Join(prefix, pointOfSaleID, closureID+"."+format)
}

func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrInvalidKey
	}
	clean := path.Clean("/" + key)[1:]
	if clean == "" || clean != strings.TrimPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return clean, nil
}
