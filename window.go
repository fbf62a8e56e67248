package cursorwindow

import (
	"context"
	"fmt"
	"math"

	"github.com/sqlcipher/cursorwindow/internal/layout"
)

// Window is a fixed-capacity page of result rows stored in one contiguous,
// offset-addressed byte region.
//
// A Window is not safe for concurrent use. Concurrent reads are fine while
// no mutation is in flight. Slices returned by Blob alias the window and
// are valid only until the next Clear, MaybeInflate, row append or Close.
type Window struct {
	name     string
	host     *Host
	backing  Backing
	dir      *layout.Directory
	reserved int64 // bytes charged to the host memory budget
	readOnly bool
	startPos int
	logger   *Logger
}

// Name returns the window name.
func (w *Window) Name() string { return w.name }

// Capacity returns the size of the backing store in bytes.
func (w *Window) Capacity() int {
	if w.dir == nil {
		return 0
	}
	return int(w.dir.Arena().Capacity())
}

// FreeSpace returns the unallocated bytes, capacity minus the free offset.
func (w *Window) FreeSpace() int {
	if w.dir == nil {
		return 0
	}
	return int(w.dir.Arena().Available())
}

// UsedBytes returns the allocated prefix, header included.
func (w *Window) UsedBytes() int {
	if w.dir == nil {
		return 0
	}
	return int(w.dir.Arena().Free())
}

// NumRows returns the number of rows in the window.
func (w *Window) NumRows() int {
	if w.dir == nil {
		return 0
	}
	return int(w.dir.NumRows())
}

// NumColumns returns the column count, 0 if not set.
func (w *Window) NumColumns() int {
	if w.dir == nil {
		return 0
	}
	return int(w.dir.NumColumns())
}

// StartPosition returns the absolute result position of row 0.
func (w *Window) StartPosition() int { return w.startPos }

// SetStartPosition records the absolute result position of row 0.
func (w *Window) SetStartPosition(pos int) { w.startPos = pos }

// Contains reports whether the absolute result position pos is held.
func (w *Window) Contains(pos int) bool {
	return pos >= w.startPos && pos < w.startPos+w.NumRows()
}

// ReadOnly reports whether the window rejects mutations.
func (w *Window) ReadOnly() bool { return w.readOnly }

// Closed reports whether Close was called.
func (w *Window) Closed() bool { return w.dir == nil }

func (w *Window) writable() error {
	if w.dir == nil {
		return fmt.Errorf("%w: window %q is closed", ErrInvalidState, w.name)
	}
	if w.readOnly {
		return fmt.Errorf("%w: window %q is read-only", ErrInvalidState, w.name)
	}
	return nil
}

// Clear drops every row and the column count, keeping the capacity.
// Previously returned blob slices must not be used afterwards.
func (w *Window) Clear() error {
	if err := w.writable(); err != nil {
		return err
	}
	w.dir.Clear()
	w.startPos = 0
	return nil
}

// SetNumColumns fixes the column count. It fails with ErrInvalidState once
// rows exist or a different count was already set.
func (w *Window) SetNumColumns(n int) error {
	if err := w.writable(); err != nil {
		return err
	}
	if n < 0 || n > layout.MaxColumns {
		return fmt.Errorf("%w: column count %d", ErrInvalidState, n)
	}
	return translateError(w.dir.SetNumColumns(uint32(n)))
}

// AllocRow appends a row whose fields are NULL and returns its index.
// On ErrCapacityExceeded the window is unchanged.
func (w *Window) AllocRow() (int, error) {
	if err := w.writable(); err != nil {
		return 0, err
	}
	row, err := w.dir.AllocRow()
	if err != nil {
		return 0, translateError(err)
	}
	return int(row), nil
}

// FreeLastRow removes the most recently appended row. Payload bytes already
// written for it stay allocated until the next Clear.
func (w *Window) FreeLastRow() error {
	if err := w.writable(); err != nil {
		return err
	}
	return translateError(w.dir.FreeLastRow())
}

// coords validates and converts a coordinate pair.
func coords(row, col int) (uint32, uint32, error) {
	if row < 0 || col < 0 || uint64(row) > math.MaxUint32 || uint64(col) > math.MaxUint32 {
		return 0, 0, fmt.Errorf("%w: (%d, %d)", ErrOutOfRange, row, col)
	}
	return uint32(row), uint32(col), nil
}

func (w *Window) put(row, col int, fn func(r, c uint32) error) error {
	if err := w.writable(); err != nil {
		return err
	}
	r, c, err := coords(row, col)
	if err != nil {
		return err
	}
	return translateError(fn(r, c))
}

// PutNull sets (row, col) to NULL.
func (w *Window) PutNull(row, col int) error {
	return w.put(row, col, w.dir.PutNull)
}

// PutInt64 stores an integer at (row, col).
func (w *Window) PutInt64(row, col int, v int64) error {
	return w.put(row, col, func(r, c uint32) error { return w.dir.PutInt64(r, c, v) })
}

// PutFloat64 stores a double at (row, col).
func (w *Window) PutFloat64(row, col int, v float64) error {
	return w.put(row, col, func(r, c uint32) error { return w.dir.PutFloat64(r, c, v) })
}

// PutString copies s into the window. On ErrCapacityExceeded the field
// keeps its previous value.
func (w *Window) PutString(row, col int, s string) error {
	return w.put(row, col, func(r, c uint32) error { return w.dir.PutString(r, c, s) })
}

// PutBlob copies b into the window. On ErrCapacityExceeded the field
// keeps its previous value.
func (w *Window) PutBlob(row, col int, b []byte) error {
	return w.put(row, col, func(r, c uint32) error { return w.dir.PutBlob(r, c, b) })
}

func (w *Window) field(row, col int) (layout.Field, error) {
	if w.dir == nil {
		return layout.Field{}, fmt.Errorf("%w: window %q is closed", ErrInvalidState, w.name)
	}
	r, c, err := coords(row, col)
	if err != nil {
		return layout.Field{}, err
	}
	f, err := w.dir.Field(r, c)
	if err != nil {
		return layout.Field{}, translateError(err)
	}
	return f, nil
}

func mismatch(f layout.Field, want FieldType) error {
	return fmt.Errorf("%w: field is %s, not %s", ErrTypeMismatch, FieldType(f.Type), want)
}

// Type returns the type of the field at (row, col).
func (w *Window) Type(row, col int) (FieldType, error) {
	f, err := w.field(row, col)
	if err != nil {
		return FieldNull, err
	}
	return FieldType(f.Type), nil
}

// IsNull reports whether the field at (row, col) is NULL.
func (w *Window) IsNull(row, col int) (bool, error) {
	t, err := w.Type(row, col)
	return t == FieldNull, err
}

// Int64 returns the integer at (row, col). NULL reads as 0.
func (w *Window) Int64(row, col int) (int64, error) {
	f, err := w.field(row, col)
	if err != nil {
		return 0, err
	}
	switch FieldType(f.Type) {
	case FieldInteger:
		return f.Int, nil
	case FieldNull:
		return 0, nil
	}
	return 0, mismatch(f, FieldInteger)
}

// Float64 returns the double at (row, col). NULL reads as 0.
func (w *Window) Float64(row, col int) (float64, error) {
	f, err := w.field(row, col)
	if err != nil {
		return 0, err
	}
	switch FieldType(f.Type) {
	case FieldFloat:
		return f.Float, nil
	case FieldNull:
		return 0, nil
	}
	return 0, mismatch(f, FieldFloat)
}

// String returns the string at (row, col) without its terminator.
// NULL reads as "".
func (w *Window) String(row, col int) (string, error) {
	f, err := w.field(row, col)
	if err != nil {
		return "", err
	}
	switch FieldType(f.Type) {
	case FieldString:
		return stringData(f.Data), nil
	case FieldNull:
		return "", nil
	}
	return "", mismatch(f, FieldString)
}

// Blob returns the blob at (row, col). NULL reads as nil.
// The slice aliases the window.
func (w *Window) Blob(row, col int) ([]byte, error) {
	f, err := w.field(row, col)
	if err != nil {
		return nil, err
	}
	switch FieldType(f.Type) {
	case FieldBlob:
		return f.Data, nil
	case FieldNull:
		return nil, nil
	}
	return nil, mismatch(f, FieldBlob)
}

// Value returns the field at (row, col) as nil, int64, float64, string or
// a copied []byte.
func (w *Window) Value(row, col int) (any, error) {
	f, err := w.field(row, col)
	if err != nil {
		return nil, err
	}
	switch FieldType(f.Type) {
	case FieldInteger:
		return f.Int, nil
	case FieldFloat:
		return f.Float, nil
	case FieldString:
		return stringData(f.Data), nil
	case FieldBlob:
		return append([]byte(nil), f.Data...), nil
	default:
		return nil, nil
	}
}

// Row returns every field of row as Value would.
func (w *Window) Row(row int) ([]any, error) {
	n := w.NumColumns()
	out := make([]any, n)
	for col := 0; col < n; col++ {
		v, err := w.Value(row, col)
		if err != nil {
			return nil, err
		}
		out[col] = v
	}
	return out, nil
}

func stringData(b []byte) string {
	if n := len(b); n > 0 && b[n-1] == 0 {
		b = b[:n-1]
	}
	return string(b)
}

// MaybeInflate doubles the capacity, bounded by the host's maximum window
// size. It returns ErrCannotGrow when the backing store has no growth
// capability, the maximum is reached or the memory budget is exhausted.
// Rows and offsets are preserved.
func (w *Window) MaybeInflate(ctx context.Context) error {
	if err := w.writable(); err != nil {
		return err
	}
	oldSize := w.Capacity()

	err := w.inflate(oldSize)
	if w.host != nil {
		w.host.metrics.RecordInflate(w.Capacity(), err)
	}
	w.logger.LogInflate(ctx, oldSize, w.Capacity(), err)
	return err
}

func (w *Window) inflate(oldSize int) error {
	g, ok := w.backing.(Growable)
	if !ok {
		return fmt.Errorf("%w: fixed-capacity backing", ErrCannotGrow)
	}
	maxSize := MaxWindowSize
	if w.host != nil {
		maxSize = w.host.maxWindowSize
	}
	newSize := maxSize
	if oldSize <= maxSize/2 {
		newSize = oldSize * 2
	}
	if newSize <= oldSize {
		return fmt.Errorf("%w: size %d is at the maximum", ErrCannotGrow, oldSize)
	}

	delta := int64(newSize - oldSize)
	if w.host != nil {
		if err := w.host.resources.AcquireMemory(delta); err != nil {
			return fmt.Errorf("%w: %w", ErrCannotGrow, err)
		}
	}
	release := func() {
		if w.host != nil {
			w.host.resources.ReleaseMemory(delta)
		}
	}

	if err := g.Grow(newSize); err != nil {
		release()
		return fmt.Errorf("%w: %w", ErrCannotGrow, err)
	}
	buf := w.backing.Bytes()
	if len(buf) < newSize {
		release()
		return fmt.Errorf("%w: backing returned %d bytes", ErrCannotGrow, len(buf))
	}
	if err := w.dir.Arena().Remap(buf[:newSize:newSize]); err != nil {
		release()
		return fmt.Errorf("%w: %w", ErrCannotGrow, err)
	}
	w.reserved += delta
	return nil
}

// Close releases the backing store. It is idempotent.
func (w *Window) Close() error {
	if w.dir == nil {
		return nil
	}
	w.dir = nil
	var err error
	if w.backing != nil {
		err = w.backing.Close()
		w.backing = nil
	}
	if w.host != nil {
		w.host.resources.ReleaseMemory(w.reserved)
	}
	w.reserved = 0
	w.logger.Debug("window closed")
	return err
}
