package boltstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/i2y/apiportal/internal/usecase"
)

var (
	objectsBucket = []byte("objects")

	// ErrCorruptRecord reports a stored value too short to hold its header.
	ErrCorruptRecord = errors.New("corrupt object record")
)

// headerSize is the modification time prefix stored before each body.
const headerSize = 8

// ObjectStore implements usecase.ObjectStore on a single bbolt file.
type ObjectStore struct {
	db     *bolt.DB
	now    func() time.Time
	logger *slog.Logger
}

// Open opens or creates the database at path.
func Open(path string, logger *slog.Logger) (*ObjectStore, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("bolt database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create bolt directory: %w", err)
	}
	db, err := bolt.Open(trimmed, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database %s: %w", trimmed, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(objectsBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create objects bucket: %w", err)
	}
	return &ObjectStore{
		db:     db,
		now:    time.Now,
		logger: logger.With("component", "bolt_store", "path", trimmed),
	}, nil
}

// Close releases the database file lock.
func (s *ObjectStore) Close() error {
	return s.db.Close()
}

// Get returns the body stored for key.
func (s *ObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(objectsBucket).Get([]byte(key))
		if value == nil {
			return fmt.Errorf("object %s: %w", key, usecase.ErrNotFound)
		}
		_, data, err := decode(value)
		if err != nil {
			return fmt.Errorf("object %s: %w", key, err)
		}
		body = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Put replaces the body stored for key in one transaction.
func (s *ObjectStore) Put(ctx context.Context, key string, body []byte) error {
	if key == "" {
		return fmt.Errorf("object key is required")
	}
	value := encode(s.now(), body)
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(objectsBucket).Put([]byte(key), value)
	}); err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	s.logger.Debug("Stored object", slog.String("key", key), slog.Int("bytes", len(body)))
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *ObjectStore) Delete(ctx context.Context, key string) error {
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(objectsBucket).Delete([]byte(key))
	}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// List seeks to prefix and returns keys in byte order.
func (s *ObjectStore) List(ctx context.Context, prefix string) ([]usecase.ObjectInfo, error) {
	var list []usecase.ObjectInfo
	p := []byte(prefix)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(objectsBucket).Cursor()
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			modified, _, err := decode(v)
			if err != nil {
				s.logger.Warn("Skipping corrupt object record", slog.String("key", string(k)))
				continue
			}
			list = append(list, usecase.ObjectInfo{Key: string(k), LastModified: modified})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	return list, nil
}

func encode(modified time.Time, body []byte) []byte {
	value := make([]byte, headerSize+len(body))
	binary.BigEndian.PutUint64(value, uint64(modified.UnixNano()))
	copy(value[headerSize:], body)
	return value
}

func decode(value []byte) (time.Time, []byte, error) {
	if len(value) < headerSize {
		return time.Time{}, nil, ErrCorruptRecord
	}
	nanos := int64(binary.BigEndian.Uint64(value[:headerSize]))
	return time.Unix(0, nanos).UTC(), value[headerSize:], nil
}
