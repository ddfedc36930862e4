package boltstore_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/apiportal/internal/adapter/outbound/boltstore"
	"github.com/i2y/apiportal/internal/usecase"
)

func openTestStore(t *testing.T, path string) *boltstore.ObjectStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	store, err := boltstore.Open(path, logger)
	require.NoError(t, err)
	return store
}

func TestObjectStore_PutGetDelete(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	store := openTestStore(t, filepath.Join(t.TempDir(), "portal.db"))
	defer store.Close()

	_, err := store.Get(ctx, "sdkGeneration.json")
	assert.ErrorIs(err, usecase.ErrNotFound)

	require.NoError(store.Put(ctx, "sdkGeneration.json", []byte(`{"abc_prod":true}`)))
	got, err := store.Get(ctx, "sdkGeneration.json")
	require.NoError(err)
	assert.Equal(`{"abc_prod":true}`, string(got))

	require.NoError(store.Delete(ctx, "sdkGeneration.json"))
	require.NoError(store.Delete(ctx, "sdkGeneration.json"))
	_, err = store.Get(ctx, "sdkGeneration.json")
	assert.ErrorIs(err, usecase.ErrNotFound)
}

func TestObjectStore_ListAndReopen(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "portal.db")

	store := openTestStore(t, path)
	for _, key := range []string{"catalog/b.json", "catalog/a.json", "catalog.json", "catalogue"} {
		require.NoError(store.Put(ctx, key, []byte("{}")))
	}
	require.NoError(store.Close())

	store = openTestStore(t, path)
	defer store.Close()

	docs, err := store.List(ctx, usecase.DocumentPrefix)
	require.NoError(err)
	keys := make([]string, 0, len(docs))
	for _, d := range docs {
		keys = append(keys, d.Key)
		assert.False(d.LastModified.IsZero())
	}
	assert.Equal([]string{"catalog/a.json", "catalog/b.json"}, keys)
}

func TestOpen_RequiresPath(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	_, err := boltstore.Open("  ", logger)
	assert.Error(t, err)
}
