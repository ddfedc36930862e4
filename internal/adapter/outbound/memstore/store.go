package memstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/i2y/apiportal/internal/usecase"
)

type object struct {
	data     []byte
	modified time.Time
}

// ObjectStore provides an in-memory implementation of usecase.ObjectStore.
// NOTE: This implementation is not persistent and data will be lost on restart.
type ObjectStore struct {
	mu      sync.RWMutex
	objects map[string]object
	now     func() time.Time
	logger  *slog.Logger
}

// NewObjectStore creates a new in-memory object store.
func NewObjectStore(logger *slog.Logger) *ObjectStore {
	return &ObjectStore{
		objects: make(map[string]object),
		now:     time.Now,
		logger:  logger.With("component", "mem_store"),
	}
}

// Get returns a copy of the stored body.
func (s *ObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, usecase.ErrNotFound)
	}
	return append([]byte(nil), obj.data...), nil
}

// Put stores a copy of body stamped with the current time.
func (s *ObjectStore) Put(ctx context.Context, key string, body []byte) error {
	s.PutAt(key, body, s.now())
	return nil
}

// PutAt stores body with an explicit modification time.
func (s *ObjectStore) PutAt(key string, body []byte, modified time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[key] = object{data: append([]byte(nil), body...), modified: modified}
	s.logger.Debug("Stored object", slog.String("key", key), slog.Int("bytes", len(body)))
}

// Delete removes key if present.
func (s *ObjectStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, key)
	s.logger.Debug("Deleted object", slog.String("key", key))
	return nil
}

// List returns the objects under prefix ordered by key.
func (s *ObjectStore) List(ctx context.Context, prefix string) ([]usecase.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]usecase.ObjectInfo, 0, len(s.objects))
	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) {
			list = append(list, usecase.ObjectInfo{Key: key, LastModified: obj.modified})
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Key < list[j].Key })
	return list, nil
}
