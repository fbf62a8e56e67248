package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlcipher/cursorwindow/internal/fs"
)

func TestLocalStore_Lifecycle(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "images")
	store := NewLocalStore(tmpDir)
	ctx := context.Background()

	// 1. Put creates the directory and the blob
	data := []byte("hello world, this is a window image")
	require.NoError(t, store.Put(ctx, "page-001", data))

	_, err := os.Stat(filepath.Join(tmpDir, "page-001"))
	require.NoError(t, err)

	// 2. Open and ReadAt
	blob, err := store.Open(ctx, "page-001")
	require.NoError(t, err)
	defer blob.Close()

	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err := blob.ReadAt(buf, 6)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "world", string(buf))

	// 3. Zero-copy access
	m, ok := blob.(Mappable)
	require.True(t, ok)
	mapped, err := m.Bytes()
	require.NoError(t, err)
	require.Equal(t, data, mapped)

	// 4. List
	require.NoError(t, store.Put(ctx, "page-002", nil))
	require.NoError(t, store.Put(ctx, "other", []byte("x")))

	names, err := store.List(ctx, "page-")
	require.NoError(t, err)
	require.Equal(t, []string{"page-001", "page-002"}, names)

	// 5. Delete
	require.NoError(t, store.Delete(ctx, "page-001"))
	require.NoError(t, store.Delete(ctx, "page-001"))

	names, err = store.List(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []string{"other", "page-002"}, names)

	_, err = store.Open(ctx, "page-001")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_PutReplaces(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "img", []byte("first version")))
	require.NoError(t, store.Put(ctx, "img", []byte("second")))

	blob, err := store.Open(ctx, "img")
	require.NoError(t, err)
	defer blob.Close()

	got, err := ReadAll(blob)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	entries, err := os.ReadDir(store.Root())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestLocalStore_ReadAtBoundaries(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "b", []byte("0123456789")))

	blob, err := store.Open(ctx, "b")
	require.NoError(t, err)
	defer blob.Close()

	buf := make([]byte, 5)
	n, err := blob.ReadAt(buf, 8)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, n)
	assert.Equal(t, "89", string(buf[:n]))

	_, err = blob.ReadAt(buf, 20)
	assert.ErrorIs(t, err, io.EOF)

	_, err = blob.ReadAt(buf, -1)
	assert.ErrorIs(t, err, io.EOF)
}

func TestLocalStore_EmptyBlob(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "empty", nil))

	blob, err := store.Open(ctx, "empty")
	require.NoError(t, err)
	defer blob.Close()

	assert.Zero(t, blob.Size())
	got, err := ReadAll(blob)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLocalStore_InvalidNames(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	for _, name := range []string{"", ".", "..", "a/b", `a\b`, "../escape"} {
		assert.ErrorIs(t, store.Put(ctx, name, []byte("x")), ErrInvalidName, name)
		_, err := store.Open(ctx, name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
}

func TestLocalStore_ListMissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "missing"))
	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLocalStore_Canceled(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.Put(ctx, "x", nil), context.Canceled)
	_, err := store.Open(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalStore_PutFaults(t *testing.T) {
	faults := map[string]fs.Fault{
		"write":  {FailAfterBytes: 3},
		"sync":   {FailAfterBytes: -1, FailOnSync: true},
		"close":  {FailAfterBytes: -1, FailOnClose: true},
		"rename": {FailAfterBytes: -1, FailOnRename: true},
	}
	for name, fault := range faults {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			root := t.TempDir()
			require.NoError(t, NewLocalStore(root).Put(ctx, "img", []byte("old")))

			ffs := fs.NewFaultyFS(nil)
			ffs.AddRule("img", fault)
			store := newLocalStoreFS(root, ffs)

			err := store.Put(ctx, "img", []byte("new image"))
			assert.ErrorIs(t, err, fs.ErrInjected)

			// The previous blob survives and no temporary file is left.
			entries, err := os.ReadDir(root)
			require.NoError(t, err)
			assert.Len(t, entries, 1)

			got, err := os.ReadFile(filepath.Join(root, "img"))
			require.NoError(t, err)
			assert.Equal(t, "old", string(got))
		})
	}
}
