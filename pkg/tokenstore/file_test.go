package tokenstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Set(context.Background(), AccessTokenKey, "A1"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileStore_RemovesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, Save(ctx, store, Tokens{AccessToken: "A1", RefreshToken: "R1"}))
	require.NoError(t, Save(ctx, store, Tokens{}))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "no stale credential may remain on disk")
}

func TestFileStore_SharedAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	writer, err := NewFileStore(path)
	require.NoError(t, err)
	reader, err := NewFileStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, writer.Set(ctx, RefreshTokenKey, "R1"))
	v, ok, err := reader.Get(ctx, RefreshTokenKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "R1", v)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	store, err := NewFileStore(path)
	require.NoError(t, err)

	_, _, err = store.Get(context.Background(), AccessTokenKey)
	assert.Error(t, err)
}

func TestFileStore_Watch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokens.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- store.Watch(ctx, func() { changes <- struct{}{} })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	// Unrelated files in the directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0600))

	other, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, other.Set(context.Background(), AccessTokenKey, "A9"))

	select {
	case <-changes:
	case <-time.After(5 * time.Second):
		t.Fatal("expected a change notification")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
