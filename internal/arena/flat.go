package arena

import (
	"encoding/binary"
	"errors"
	"math"
)

var (
	// ErrArenaFull is returned when an allocation does not fit in the remaining capacity.
	ErrArenaFull = errors.New("arena: full")
	// ErrInvalidMark is returned when a truncation target is not a live boundary.
	ErrInvalidMark = errors.New("arena: invalid mark")
	// ErrOutOfBounds is returned when a region lies outside the allocated bytes.
	ErrOutOfBounds = errors.New("arena: out of bounds")
	// ErrInvalidBuffer is returned when a buffer cannot back an arena.
	ErrInvalidBuffer = errors.New("arena: invalid buffer")
)

// Alignment is the boundary applied to aligned allocations.
const Alignment = 4

// freeWord is the offset of the free-offset word inside the reserved header.
const freeWord = 0

// Flat is a contiguous memory arena addressed by uint32 offsets.
type Flat struct {
	buf      []byte
	reserved uint32
	free     uint32
}

// NewFlat creates an empty arena over buf. The first reserved bytes are kept
// for the caller's header and are zeroed.
func NewFlat(buf []byte, reserved uint32) (*Flat, error) {
	if reserved < 4 || uint64(len(buf)) < uint64(reserved) || uint64(len(buf)) > math.MaxUint32 {
		return nil, ErrInvalidBuffer
	}
	a := &Flat{buf: buf, reserved: reserved}
	clear(a.buf[:reserved])
	a.setFree(reserved)
	return a, nil
}

// Attach wraps a buffer that already holds an arena image. The stored free
// offset must lie within [reserved, len(buf)].
func Attach(buf []byte, reserved uint32) (*Flat, error) {
	if reserved < 4 || uint64(len(buf)) < uint64(reserved) || uint64(len(buf)) > math.MaxUint32 {
		return nil, ErrInvalidBuffer
	}
	free := binary.LittleEndian.Uint32(buf[freeWord:])
	if free < reserved || uint64(free) > uint64(len(buf)) {
		return nil, ErrInvalidBuffer
	}
	return &Flat{buf: buf, reserved: reserved, free: free}, nil
}

// Alloc reserves size bytes and returns their offset. Aligned requests first
// round the free offset up to Alignment; the padding counts against capacity.
// On ErrArenaFull the arena is left untouched.
func (a *Flat) Alloc(size uint32, aligned bool) (uint32, error) {
	cur := a.Free()
	var padding uint32
	if aligned {
		padding = (Alignment - cur%Alignment) % Alignment
	}
	off := uint64(cur) + uint64(padding)
	next := off + uint64(size)
	if next > uint64(len(a.buf)) {
		return 0, ErrArenaFull
	}
	a.setFree(uint32(next))
	return uint32(off), nil
}

// Mark returns the current free offset, usable later with Truncate.
func (a *Flat) Mark() uint32 {
	return a.Free()
}

// Truncate rewinds the free offset to mark, releasing everything allocated
// after it. The mark must not be past the current free offset.
func (a *Flat) Truncate(mark uint32) error {
	if mark < a.reserved || mark > a.Free() {
		return ErrInvalidMark
	}
	a.setFree(mark)
	return nil
}

// Reset releases every allocation.
func (a *Flat) Reset() {
	a.setFree(a.reserved)
}

// Free returns the offset of the lowest unused byte.
func (a *Flat) Free() uint32 {
	return a.free
}

func (a *Flat) setFree(v uint32) {
	a.free = v
	binary.LittleEndian.PutUint32(a.buf[freeWord:], v)
}

// Capacity returns the size of the backing buffer.
func (a *Flat) Capacity() uint32 {
	return uint32(len(a.buf))
}

// Available returns the bytes left after the free offset.
func (a *Flat) Available() uint32 {
	return a.Capacity() - a.Free()
}

// Reserved returns the size of the header prefix.
func (a *Flat) Reserved() uint32 {
	return a.reserved
}

// Slice returns the allocated region [off, off+size).
// WARNING: The returned slice is valid only until the backing buffer is remapped.
func (a *Flat) Slice(off, size uint32) ([]byte, error) {
	end := uint64(off) + uint64(size)
	if off < a.reserved || end > uint64(a.free) {
		return nil, ErrOutOfBounds
	}
	return a.buf[off:end:end], nil
}

// Header returns the reserved prefix, including the free-offset word.
func (a *Flat) Header() []byte {
	return a.buf[:a.reserved:a.reserved]
}

// Bytes returns the whole backing buffer.
func (a *Flat) Bytes() []byte {
	return a.buf
}

// Used returns the allocated prefix [0, Free()).
func (a *Flat) Used() []byte {
	free := a.Free()
	return a.buf[:free:free]
}

// Remap switches the arena to a new backing buffer holding the same bytes,
// typically after the buffer was grown or moved. Offsets stay valid.
func (a *Flat) Remap(buf []byte) error {
	if uint64(len(buf)) > math.MaxUint32 || uint64(len(buf)) < uint64(a.free) {
		return ErrInvalidBuffer
	}
	if binary.LittleEndian.Uint32(buf[freeWord:]) != a.free {
		return ErrInvalidBuffer
	}
	a.buf = buf
	return nil
}
