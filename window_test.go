package cursorwindow

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWindow(t *testing.T, h *Host, size int) *Window {
	t.Helper()
	w, err := h.NewWindow(t.Name(), size)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestNewWindow(t *testing.T) {
	h := NewHost()

	w := newTestWindow(t, h, 1024)
	assert.Equal(t, t.Name(), w.Name())
	assert.Equal(t, 1024, w.Capacity())
	assert.Equal(t, 1024-MinWindowSize, w.FreeSpace())
	assert.Zero(t, w.NumRows())
	assert.Zero(t, w.NumColumns())
	assert.False(t, w.ReadOnly())

	_, err := h.NewWindow("tiny", MinWindowSize-1)
	assert.ErrorIs(t, err, ErrWindowAllocation)
}

func TestNewHost_MaxWindowSize(t *testing.T) {
	var limit int = MaxWindowSize
	assert.LessOrEqual(t, uint64(limit), uint64(math.MaxUint32))
	assert.LessOrEqual(t, uint64(limit), uint64(math.MaxInt))

	for _, size := range []int{-1, 0, math.MaxInt} {
		h := NewHost(WithMaxWindowSize(size))
		assert.Equal(t, limit, h.maxWindowSize, "size %d", size)
	}
	assert.Equal(t, 8192, NewHost(WithMaxWindowSize(8192)).maxWindowSize)
}

func TestNewWindow_MemoryLimit(t *testing.T) {
	h := NewHost(WithMemoryLimit(3000))

	w1, err := h.NewWindow("a", 2000)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), h.MemoryUsage())

	_, err = h.NewWindow("b", 2000)
	assert.ErrorIs(t, err, ErrWindowAllocation)

	require.NoError(t, w1.Close())
	assert.Zero(t, h.MemoryUsage())
	assert.Equal(t, int64(2000), h.PeakMemoryUsage())

	w2, err := h.NewWindow("b", 2000)
	require.NoError(t, err)
	require.NoError(t, w2.Close())
}

func TestWindow_NullRowsFillUntilFull(t *testing.T) {
	for _, cols := range []int{0, 1, 3, 17} {
		h := NewHost()
		w := newTestWindow(t, h, 8192)
		require.NoError(t, w.SetNumColumns(cols))

		rowSize := cols * 12
		for {
			// One more row needs a field array, plus a chunk every 100 rows.
			need := rowSize
			if w.NumRows()%100 == 0 {
				need += 404
			}
			_, err := w.AllocRow()
			if need <= w.FreeSpace() && err != nil {
				t.Fatalf("cols=%d rows=%d: unexpected failure with %d bytes free: %v", cols, w.NumRows(), w.FreeSpace(), err)
			}
			if err != nil {
				assert.ErrorIs(t, err, ErrCapacityExceeded)
				assert.Less(t, w.FreeSpace(), need)
				break
			}
			if cols == 0 && w.NumRows() > 5000 {
				break
			}
		}
	}
}

func TestWindow_ClearRestoresFreeSpace(t *testing.T) {
	w := newTestWindow(t, NewHost(), 4096)
	require.NoError(t, w.SetNumColumns(2))
	for i := 0; i < 30; i++ {
		row, err := w.AllocRow()
		require.NoError(t, err)
		require.NoError(t, w.PutString(row, 1, "payload"))
	}
	w.SetStartPosition(10)

	require.NoError(t, w.Clear())
	assert.Equal(t, 4096-MinWindowSize, w.FreeSpace())
	assert.Zero(t, w.NumRows())
	assert.Zero(t, w.NumColumns())
	assert.Zero(t, w.StartPosition())

	_, err := w.Type(0, 0)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestWindow_FreeLastRowAfterAlloc(t *testing.T) {
	w := newTestWindow(t, NewHost(), 4096)
	require.NoError(t, w.SetNumColumns(3))
	_, err := w.AllocRow()
	require.NoError(t, err)

	before := w.FreeSpace()
	_, err = w.AllocRow()
	require.NoError(t, err)
	require.NoError(t, w.FreeLastRow())
	assert.Equal(t, before, w.FreeSpace())
	assert.Equal(t, 1, w.NumRows())
}

func TestWindow_SetNumColumns(t *testing.T) {
	w := newTestWindow(t, NewHost(), 1024)

	require.NoError(t, w.SetNumColumns(2))
	assert.ErrorIs(t, w.SetNumColumns(3), ErrInvalidState)
	assert.ErrorIs(t, w.SetNumColumns(-1), ErrInvalidState)

	_, err := w.AllocRow()
	require.NoError(t, err)
	require.NoError(t, w.SetNumColumns(2))
	assert.ErrorIs(t, w.SetNumColumns(1), ErrInvalidState)
}

func TestWindow_TypedReads(t *testing.T) {
	w := newTestWindow(t, NewHost(), 4096)
	require.NoError(t, w.SetNumColumns(5))
	row, err := w.AllocRow()
	require.NoError(t, err)

	require.NoError(t, w.PutInt64(row, 0, 7))
	require.NoError(t, w.PutFloat64(row, 1, 2.5))
	require.NoError(t, w.PutString(row, 2, "héllo"))
	require.NoError(t, w.PutBlob(row, 3, []byte{0, 1, 0}))

	i, err := w.Int64(row, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(7), i)

	f, err := w.Float64(row, 1)
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	s, err := w.String(row, 2)
	require.NoError(t, err)
	assert.Equal(t, "héllo", s)

	b, err := w.Blob(row, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 0}, b)

	typ, err := w.Type(row, 4)
	require.NoError(t, err)
	assert.Equal(t, FieldNull, typ)

	t.Run("null reads as zero", func(t *testing.T) {
		i, err := w.Int64(row, 4)
		require.NoError(t, err)
		assert.Zero(t, i)

		s, err := w.String(row, 4)
		require.NoError(t, err)
		assert.Empty(t, s)

		b, err := w.Blob(row, 4)
		require.NoError(t, err)
		assert.Nil(t, b)

		isNull, err := w.IsNull(row, 4)
		require.NoError(t, err)
		assert.True(t, isNull)
	})

	t.Run("no coercion", func(t *testing.T) {
		_, err := w.Int64(row, 1)
		assert.ErrorIs(t, err, ErrTypeMismatch)
		_, err = w.Float64(row, 0)
		assert.ErrorIs(t, err, ErrTypeMismatch)
		_, err = w.String(row, 3)
		assert.ErrorIs(t, err, ErrTypeMismatch)
		_, err = w.Blob(row, 2)
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})

	t.Run("values", func(t *testing.T) {
		vals, err := w.Row(row)
		require.NoError(t, err)
		assert.Equal(t, []any{int64(7), 2.5, "héllo", []byte{0, 1, 0}, nil}, vals)
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := w.Value(1, 0)
		assert.ErrorIs(t, err, ErrOutOfRange)
		_, err = w.Value(0, 5)
		assert.ErrorIs(t, err, ErrOutOfRange)
		_, err = w.Value(-1, 0)
		assert.ErrorIs(t, err, ErrOutOfRange)
		assert.ErrorIs(t, w.PutInt64(0, -1, 1), ErrOutOfRange)
	})
}

func TestWindow_PutFailureKeepsPriorValue(t *testing.T) {
	w := newTestWindow(t, NewHost(), MinWindowSize+404+12+3)
	require.NoError(t, w.SetNumColumns(1))
	row, err := w.AllocRow()
	require.NoError(t, err)

	err = w.PutString(row, 0, "four")
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	isNull, err := w.IsNull(row, 0)
	require.NoError(t, err)
	assert.True(t, isNull)

	require.NoError(t, w.PutString(row, 0, "ab"))
	s, err := w.String(row, 0)
	require.NoError(t, err)
	assert.Equal(t, "ab", s)
}

func TestWindow_Contains(t *testing.T) {
	w := newTestWindow(t, NewHost(), 4096)
	require.NoError(t, w.SetNumColumns(1))
	for i := 0; i < 10; i++ {
		_, err := w.AllocRow()
		require.NoError(t, err)
	}
	w.SetStartPosition(100)

	assert.False(t, w.Contains(99))
	assert.True(t, w.Contains(100))
	assert.True(t, w.Contains(109))
	assert.False(t, w.Contains(110))
}

func TestWindow_Close(t *testing.T) {
	h := NewHost()
	w, err := h.NewWindow("c", 1024)
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.True(t, w.Closed())
	assert.Zero(t, w.Capacity())
	assert.Zero(t, h.MemoryUsage())

	assert.ErrorIs(t, w.Clear(), ErrInvalidState)
	_, err = w.AllocRow()
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = w.Value(0, 0)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Nil(t, w.Image())
}

func TestWindow_MaybeInflate(t *testing.T) {
	ctx := context.Background()

	t.Run("fixed capacity", func(t *testing.T) {
		w := newTestWindow(t, NewHost(), 1024)
		assert.ErrorIs(t, w.MaybeInflate(ctx), ErrCannotGrow)
		assert.Equal(t, 1024, w.Capacity())
	})

	allocators := map[string]Allocator{
		"heap": HeapAllocator{Growable: true},
		"mmap": MmapAllocator{},
	}
	for name, alloc := range allocators {
		t.Run(name, func(t *testing.T) {
			mc := &BasicMetricsCollector{}
			h := NewHost(WithAllocator(alloc), WithMaxWindowSize(4096), WithMetricsCollector(mc))
			w := newTestWindow(t, h, 1024)

			require.NoError(t, w.SetNumColumns(2))
			for i := 0; i < 10; i++ {
				row, err := w.AllocRow()
				require.NoError(t, err)
				require.NoError(t, w.PutInt64(row, 0, int64(i)))
				require.NoError(t, w.PutString(row, 1, "row"))
			}
			used := w.UsedBytes()

			require.NoError(t, w.MaybeInflate(ctx))
			assert.Equal(t, 2048, w.Capacity())
			assert.Equal(t, 2048-used, w.FreeSpace())
			assert.Equal(t, int64(2048), h.MemoryUsage())

			require.NoError(t, w.MaybeInflate(ctx))
			assert.Equal(t, 4096, w.Capacity())
			assert.ErrorIs(t, w.MaybeInflate(ctx), ErrCannotGrow)

			for i := 0; i < 10; i++ {
				v, err := w.Int64(i, 0)
				require.NoError(t, err)
				assert.Equal(t, int64(i), v)
				s, err := w.String(i, 1)
				require.NoError(t, err)
				assert.Equal(t, "row", s)
			}

			stats := mc.GetStats()
			assert.Equal(t, int64(2), stats.Inflates)
			assert.Equal(t, int64(1), stats.InflateErrors)
		})
	}

	t.Run("memory budget", func(t *testing.T) {
		h := NewHost(WithAllocator(HeapAllocator{Growable: true}), WithMemoryLimit(1500))
		w := newTestWindow(t, h, 1024)
		assert.ErrorIs(t, w.MaybeInflate(ctx), ErrCannotGrow)
		assert.Equal(t, 1024, w.Capacity())
		assert.Equal(t, int64(1024), h.MemoryUsage())
	})
}
