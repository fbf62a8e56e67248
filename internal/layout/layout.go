// Package layout implements the binary window format on top of a flat arena:
// the header, the paged row directory and the per-row field slot arrays.
//
// Byte layout (all integers little-endian, all references are offsets from
// the arena base):
//
//	header      freeOffset u32 | firstChunkOffset u32 | numRows u32 | numColumns u32
//	row chunk   100 × rowOffset u32 | nextChunkOffset u32
//	field slot  type u32 | payload 8 bytes (int64, float64 bits, or offset u32 + size u32)
//
// Chunks, field arrays and string/blob payloads share one forward-growing
// region in allocation order.
package layout

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/sqlcipher/cursorwindow/internal/arena"
)

const (
	// HeaderSize is the size of the window header.
	HeaderSize = 16
	// RowSlotChunkRows is the number of row slots per directory chunk.
	RowSlotChunkRows = 100
	// RowSlotSize is the size of one row slot.
	RowSlotSize = 4
	// RowSlotChunkSize is the size of one directory chunk including its link.
	RowSlotChunkSize = RowSlotChunkRows*RowSlotSize + 4
	// FieldSlotSize is the size of one packed field slot.
	FieldSlotSize = 12

	// MaxColumns bounds the column count so a field array size fits in uint32.
	MaxColumns = math.MaxUint32 / FieldSlotSize
)

const (
	hdrFreeOffset       = 0
	hdrFirstChunkOffset = 4
	hdrNumRows          = 8
	hdrNumColumns       = 12

	chunkNextOffset = RowSlotChunkRows * RowSlotSize
)

// FieldType is the type tag stored in a field slot.
type FieldType uint32

const (
	FieldNull    FieldType = 0
	FieldInteger FieldType = 1
	FieldFloat   FieldType = 2
	FieldString  FieldType = 3
	FieldBlob    FieldType = 4
)

var (
	// ErrCapacityExceeded is returned when an allocation does not fit.
	ErrCapacityExceeded = errors.New("layout: capacity exceeded")
	// ErrInvalidState is returned when the operation is not allowed in the current state.
	ErrInvalidState = errors.New("layout: invalid state")
	// ErrOutOfRange is returned for coordinates outside the populated rows and columns.
	ErrOutOfRange = errors.New("layout: row or column out of range")
	// ErrCorrupt is returned when an existing image fails validation.
	ErrCorrupt = errors.New("layout: corrupt image")
)

// rowMark records how to undo the most recent AllocRow.
type rowMark struct {
	valid bool
	row   uint32
	mark  uint32 // arena boundary before the row
	link  uint32 // offset of the chunk link written for the row, 0 if none
	end   uint32 // arena boundary right after the row's field array
}

// Directory is the window structure inside one arena.
type Directory struct {
	a    *arena.Flat
	last rowMark
}

// New initializes an empty directory in a fresh arena.
func New(a *arena.Flat) *Directory {
	d := &Directory{a: a}
	d.Clear()
	return d
}

// Open validates an arena that already holds a window image.
func Open(a *arena.Flat) (*Directory, error) {
	d := &Directory{a: a}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Arena returns the underlying arena.
func (d *Directory) Arena() *arena.Flat {
	return d.a
}

// Clear drops every row and the column count. Capacity is unchanged.
func (d *Directory) Clear() {
	d.a.Reset()
	d.put32(hdrFirstChunkOffset, 0)
	d.put32(hdrNumRows, 0)
	d.put32(hdrNumColumns, 0)
	d.last = rowMark{}
}

// NumRows returns the number of rows.
func (d *Directory) NumRows() uint32 { return d.get32(hdrNumRows) }

// NumColumns returns the number of columns.
func (d *Directory) NumColumns() uint32 { return d.get32(hdrNumColumns) }

// FirstChunkOffset returns the offset of the first row slot chunk, 0 if none.
func (d *Directory) FirstChunkOffset() uint32 { return d.get32(hdrFirstChunkOffset) }

// SetNumColumns fixes the column count. Once a count is set or rows exist,
// only the same value is accepted.
func (d *Directory) SetNumColumns(n uint32) error {
	if n > MaxColumns {
		return ErrInvalidState
	}
	cur := d.NumColumns()
	if (cur > 0 || d.NumRows() > 0) && cur != n {
		return ErrInvalidState
	}
	d.put32(hdrNumColumns, n)
	return nil
}

// AllocRow appends a row whose fields are all NULL and returns its index.
// The call is all-or-nothing: on ErrCapacityExceeded nothing was allocated.
func (d *Directory) AllocRow() (uint32, error) {
	row := d.NumRows()
	if row == math.MaxUint32 {
		return 0, ErrCapacityExceeded
	}
	mark := d.a.Mark()

	slot, link, err := d.allocRowSlot(row)
	if err != nil {
		return 0, err
	}

	size := d.NumColumns() * FieldSlotSize
	fieldDir, err := d.a.Alloc(size, true)
	if err != nil {
		d.undo(mark, link)
		return 0, ErrCapacityExceeded
	}
	clear(d.a.Bytes()[fieldDir : fieldDir+size])

	d.put32(slot, fieldDir)
	d.put32(hdrNumRows, row+1)
	d.last = rowMark{valid: true, row: row, mark: mark, link: link, end: d.a.Free()}
	return row, nil
}

// FreeLastRow removes the most recently added row. When nothing was allocated
// after that row's field array, the row's directory space is reclaimed too;
// otherwise bytes stay allocated until the next Clear.
func (d *Directory) FreeLastRow() error {
	n := d.NumRows()
	if n == 0 {
		return ErrInvalidState
	}
	d.put32(hdrNumRows, n-1)
	if d.last.valid && d.last.row == n-1 && d.a.Free() == d.last.end {
		d.undo(d.last.mark, d.last.link)
	}
	d.last = rowMark{}
	return nil
}

func (d *Directory) undo(mark, link uint32) {
	if link != 0 {
		d.put32(link, 0)
	}
	// mark was taken from this arena and nothing before it was released.
	_ = d.a.Truncate(mark)
}

// allocRowSlot returns the offset of the slot for row, allocating a new chunk
// when the tail chunk is full. link is the offset of the chunk pointer that
// was written, or 0 when an existing chunk was used.
func (d *Directory) allocRowSlot(row uint32) (slot, link uint32, err error) {
	pos := row % RowSlotChunkRows

	var linkAt uint32
	if row == 0 {
		linkAt = hdrFirstChunkOffset
	} else {
		tail, err := d.chunkFor(row - 1)
		if err != nil {
			return 0, 0, err
		}
		if pos != 0 {
			return tail + pos*RowSlotSize, 0, nil
		}
		linkAt = tail + chunkNextOffset
	}

	// A chunk left behind by an unreclaimed FreeLastRow is reused.
	if next := d.get32(linkAt); next != 0 {
		return next, 0, nil
	}

	chunk, err := d.a.Alloc(RowSlotChunkSize, true)
	if err != nil {
		return 0, 0, ErrCapacityExceeded
	}
	clear(d.a.Bytes()[chunk : chunk+RowSlotChunkSize])
	d.put32(linkAt, chunk)
	return chunk, linkAt, nil
}

// chunkFor walks the chunk list to the chunk holding row.
func (d *Directory) chunkFor(row uint32) (uint32, error) {
	chunk := d.FirstChunkOffset()
	for i := row / RowSlotChunkRows; i > 0; i-- {
		if chunk == 0 {
			return 0, ErrCorrupt
		}
		chunk = d.get32(chunk + chunkNextOffset)
	}
	if chunk == 0 {
		return 0, ErrCorrupt
	}
	return chunk, nil
}

// rowOffset returns the field array offset of row.
func (d *Directory) rowOffset(row uint32) (uint32, error) {
	if row >= d.NumRows() {
		return 0, ErrOutOfRange
	}
	chunk, err := d.chunkFor(row)
	if err != nil {
		return 0, err
	}
	return d.get32(chunk + (row%RowSlotChunkRows)*RowSlotSize), nil
}

// fieldSlot returns the offset of the slot at (row, col).
func (d *Directory) fieldSlot(row, col uint32) (uint32, error) {
	if col >= d.NumColumns() {
		return 0, ErrOutOfRange
	}
	off, err := d.rowOffset(row)
	if err != nil {
		return 0, err
	}
	return off + col*FieldSlotSize, nil
}

func (d *Directory) get32(off uint32) uint32 {
	return binary.LittleEndian.Uint32(d.a.Bytes()[off:])
}

func (d *Directory) put32(off, v uint32) {
	binary.LittleEndian.PutUint32(d.a.Bytes()[off:], v)
}

// validate checks that the header and directory of an existing image only
// reference allocated bytes.
func (d *Directory) validate() error {
	if d.a.Reserved() != HeaderSize {
		return ErrCorrupt
	}
	free := d.a.Free()
	rows := d.NumRows()
	cols := d.NumColumns()
	if cols > MaxColumns {
		return ErrCorrupt
	}
	rowSize := uint64(cols) * FieldSlotSize

	inBounds := func(off uint32, size uint64) bool {
		return off >= HeaderSize && uint64(off)+size <= uint64(free)
	}

	// Chunks and field arrays are distinct allocations, so the rows a header
	// claims must fit in the allocated prefix.
	chunks := (uint64(rows) + RowSlotChunkRows - 1) / RowSlotChunkRows
	if chunks*RowSlotChunkSize+uint64(rows)*rowSize > uint64(free)-HeaderSize {
		return ErrCorrupt
	}

	chunk := d.FirstChunkOffset()
	if rows == 0 {
		if chunk != 0 && !inBounds(chunk, RowSlotChunkSize) {
			return ErrCorrupt
		}
		return nil
	}
	for row := uint32(0); row < rows; row++ {
		if row%RowSlotChunkRows == 0 && row > 0 {
			chunk = d.get32(chunk + chunkNextOffset)
		}
		if !inBounds(chunk, RowSlotChunkSize) {
			return ErrCorrupt
		}
		fieldDir := d.get32(chunk + (row%RowSlotChunkRows)*RowSlotSize)
		if !inBounds(fieldDir, rowSize) {
			return ErrCorrupt
		}
	}
	return nil
}
