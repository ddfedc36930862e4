package fsstore_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/apiportal/internal/adapter/outbound/fsstore"
	"github.com/i2y/apiportal/internal/usecase"
)

func newTestStore(t *testing.T) (*fsstore.ObjectStore, string) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	root := t.TempDir()
	store, err := fsstore.NewObjectStore(root, logger)
	require.NoError(t, err)
	return store, root
}

func TestObjectStore_PutGetDelete(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	store, root := newTestStore(t)

	_, err := store.Get(ctx, "catalog/abc_prod.json")
	assert.ErrorIs(err, usecase.ErrNotFound)

	require.NoError(store.Put(ctx, "catalog/abc_prod.json", []byte(`{"swagger":"2.0"}`)))
	got, err := store.Get(ctx, "catalog/abc_prod.json")
	require.NoError(err)
	assert.Equal(`{"swagger":"2.0"}`, string(got))

	entries, err := os.ReadDir(filepath.Join(root, "catalog"))
	require.NoError(err)
	require.Len(entries, 1, "no temp files are left behind")

	require.NoError(store.Delete(ctx, "catalog/abc_prod.json"))
	require.NoError(store.Delete(ctx, "catalog/abc_prod.json"))
	_, err = store.Get(ctx, "catalog/abc_prod.json")
	assert.ErrorIs(err, usecase.ErrNotFound)
}

func TestObjectStore_RejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	for _, key := range []string{"", "../outside.json", "/etc/passwd", "catalog/../../x", "catalog//a.json"} {
		t.Run(key, func(t *testing.T) {
			assert.Error(t, store.Put(ctx, key, []byte("{}")))
		})
	}
}

func TestObjectStore_List(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	store, _ := newTestStore(t)

	for _, key := range []string{"catalog/b.json", "catalog/a.yaml", "catalog.json", "sdkGeneration.json"} {
		require.NoError(store.Put(ctx, key, []byte("{}")))
	}

	docs, err := store.List(ctx, usecase.DocumentPrefix)
	require.NoError(err)
	require.Len(docs, 2)
	assert.Equal("catalog/a.yaml", docs[0].Key)
	assert.Equal("catalog/b.json", docs[1].Key)
	assert.WithinDuration(time.Now(), docs[0].LastModified, time.Minute)

	all, err := store.List(ctx, "")
	require.NoError(err)
	assert.Len(all, 4)
}

func TestObjectStore_Watch(t *testing.T) {
	require := require.New(t)
	store, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batches := make(chan []string, 4)
	done := make(chan error, 1)
	go func() {
		done <- store.Watch(ctx, 50*time.Millisecond, func(_ context.Context, keys []string) {
			batches <- keys
		})
	}()
	// Let the watcher register before writing.
	time.Sleep(100 * time.Millisecond)

	require.NoError(store.Put(context.Background(), "catalog/abc_prod.json", []byte("{}")))

	select {
	case keys := <-batches:
		assert.Contains(t, keys, "catalog/abc_prod.json")
		for _, k := range keys {
			assert.NotContains(t, filepath.Base(k), ".tmp-")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change batch")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}

func TestObjectStore_WatchBatchesSteadyWrites(t *testing.T) {
	require := require.New(t)
	store, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const debounce = 150 * time.Millisecond
	batches := make(chan []string, 8)
	go func() {
		_ = store.Watch(ctx, debounce, func(_ context.Context, keys []string) {
			batches <- keys
		})
	}()
	time.Sleep(100 * time.Millisecond)

	// The writes span longer than debounce but each gap is well inside it.
	var want []string
	for i := 0; i < 8; i++ {
		key := fmt.Sprintf("catalog/doc%d.json", i)
		want = append(want, key)
		require.NoError(store.Put(context.Background(), key, []byte("{}")))
		time.Sleep(40 * time.Millisecond)
	}

	select {
	case keys := <-batches:
		assert.ElementsMatch(t, want, keys)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change batch")
	}
	select {
	case keys := <-batches:
		t.Fatalf("unexpected second batch: %v", keys)
	case <-time.After(3 * debounce):
	}
}
