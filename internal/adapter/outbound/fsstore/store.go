package fsstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/i2y/apiportal/internal/usecase"
)

const tempPrefix = ".tmp-"

// ObjectStore implements usecase.ObjectStore on a local directory.
// Keys map to slash-separated paths below the root.
type ObjectStore struct {
	root   string
	logger *slog.Logger
}

// NewObjectStore creates the root directory if needed and returns a store on it.
func NewObjectStore(root string, logger *slog.Logger) (*ObjectStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	if err := os.MkdirAll(filepath.Join(root, filepath.FromSlash(usecase.DocumentPrefix)), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", root, err)
	}
	return &ObjectStore{
		root:   root,
		logger: logger.With("component", "fs_store"),
	}, nil
}

func (s *ObjectStore) pathFor(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || path.Clean(key) != key || strings.HasPrefix(key, "../") || key == ".." {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Get reads the file stored for key.
func (s *ObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	p, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("object %s: %w", key, usecase.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// Put writes body to a temporary file and renames it into place, so readers
// never observe a partial object.
func (s *ObjectStore) Put(ctx context.Context, key string, body []byte) error {
	p, err := s.pathFor(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}
	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", key, err)
	}
	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to move %s into place: %w", key, err)
	}
	s.logger.Debug("Stored object", slog.String("key", key), slog.Int("bytes", len(body)))
	return nil
}

// Delete removes the file for key. A missing file is not an error.
func (s *ObjectStore) Delete(ctx context.Context, key string) error {
	p, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// List walks the root and returns every file whose key starts with prefix.
func (s *ObjectStore) List(ctx context.Context, prefix string) ([]usecase.ObjectInfo, error) {
	var list []usecase.ObjectInfo
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}
		key, ok := s.keyFor(p)
		if !ok || !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		list = append(list, usecase.ObjectInfo{Key: key, LastModified: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Key < list[j].Key })
	return list, nil
}

func (s *ObjectStore) keyFor(p string) (string, bool) {
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
