package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub")
	lfs := LocalFS{}
	require.NoError(t, lfs.MkdirAll(dir, 0o755))

	f, err := lfs.CreateTemp(dir, "blob-*")
	require.NoError(t, err)
	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	dst := filepath.Join(dir, "blob")
	require.NoError(t, lfs.Rename(f.Name(), dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	entries, err := lfs.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, lfs.Remove(dst))
	assert.ErrorIs(t, lfs.Remove(dst), os.ErrNotExist)
}

func TestFaultyFS(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("boom")

	ffs := NewFaultyFS(nil)
	ffs.AddRule("short", Fault{FailAfterBytes: 4, Err: boom})
	ffs.AddRule("nosync", Fault{FailAfterBytes: -1, FailOnSync: true})
	ffs.AddRule("noclose", Fault{FailAfterBytes: -1, FailOnClose: true})
	ffs.AddRule("norename", Fault{FailAfterBytes: -1, FailOnRename: true})

	t.Run("write limit", func(t *testing.T) {
		f, err := ffs.CreateTemp(dir, "short-*")
		require.NoError(t, err)
		defer f.Close()

		_, err = f.Write([]byte("abc"))
		require.NoError(t, err)
		_, err = f.Write([]byte("de"))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("sync", func(t *testing.T) {
		f, err := ffs.CreateTemp(dir, "nosync-*")
		require.NoError(t, err)
		defer f.Close()
		assert.ErrorIs(t, f.Sync(), ErrInjected)
	})

	t.Run("close", func(t *testing.T) {
		f, err := ffs.CreateTemp(dir, "noclose-*")
		require.NoError(t, err)
		assert.ErrorIs(t, f.Close(), ErrInjected)
	})

	t.Run("rename", func(t *testing.T) {
		f, err := ffs.CreateTemp(dir, "plain-*")
		require.NoError(t, err)
		require.NoError(t, f.Close())
		assert.ErrorIs(t, ffs.Rename(f.Name(), filepath.Join(dir, "norename")), ErrInjected)
		assert.NoError(t, ffs.Rename(f.Name(), filepath.Join(dir, "ok")))
	})
}
