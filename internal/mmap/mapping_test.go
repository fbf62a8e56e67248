package mmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapAnon(t *testing.T) {
	m, err := MapAnon(4096)
	require.NoError(t, err)
	defer m.Close()

	b := m.Bytes()
	require.Len(t, b, 4096)
	for _, v := range b {
		require.Zero(t, v)
	}
	copy(b, "window")

	_, err = MapAnon(0)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestMapping_Grow(t *testing.T) {
	m, err := MapAnon(4096)
	require.NoError(t, err)
	defer m.Close()

	copy(m.Bytes(), "preserved")
	m.Bytes()[4095] = 0x7f

	require.NoError(t, m.Grow(3*4096))
	b := m.Bytes()
	require.Len(t, b, 3*4096)
	assert.Equal(t, "preserved", string(b[:9]))
	assert.Equal(t, byte(0x7f), b[4095])

	// New tail is usable.
	b[len(b)-1] = 1

	assert.ErrorIs(t, m.Grow(4096), ErrInvalidSize)
	require.NoError(t, m.Grow(3*4096))
}

func TestOpen_ReadOnlyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.bin")
	require.NoError(t, os.WriteFile(path, []byte("CWIN image bytes"), 0o600))

	m, err := Open(path)
	require.NoError(t, err)

	assert.Equal(t, "CWIN image bytes", string(m.Bytes()))
	assert.Equal(t, 16, m.Size())
	assert.ErrorIs(t, m.Grow(32), ErrNotGrowable)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Nil(t, m.Bytes())
	assert.ErrorIs(t, m.Grow(32), ErrClosed)
}

func TestOpen_EmptyAndMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	m, err := Open(path)
	require.NoError(t, err)
	assert.Zero(t, m.Size())
	require.NoError(t, m.Close())

	_, err = Open(filepath.Join(t.TempDir(), "missing.bin"))
	assert.Error(t, err)
}
