package cursorwindow

import (
	"errors"
	"fmt"

	"github.com/sqlcipher/cursorwindow/internal/mmap"
)

// Backing is a contiguous byte region that stores one window.
type Backing interface {
	// Bytes returns the region. The slice may change after Grow.
	Bytes() []byte
	// Close releases the region. Bytes must not be used afterwards.
	Close() error
}

// Growable is implemented by backings that can be enlarged while keeping
// their contents. A window whose backing does not implement it has a fixed
// capacity, which is a normal configuration.
type Growable interface {
	Grow(newSize int) error
}

// Allocator obtains backings for new windows.
type Allocator interface {
	Allocate(size int) (Backing, error)
}

// HeapAllocator allocates windows on the Go heap.
type HeapAllocator struct {
	// Growable lets windows inflate by copying into a larger slice.
	Growable bool
}

// Allocate implements Allocator.
func (a HeapAllocator) Allocate(size int) (Backing, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: invalid size %d", ErrWindowAllocation, size)
	}
	b := &heapBacking{buf: make([]byte, size)}
	if a.Growable {
		return &growableHeapBacking{heapBacking: b}, nil
	}
	return b, nil
}

type heapBacking struct {
	buf []byte
}

func (b *heapBacking) Bytes() []byte { return b.buf }

func (b *heapBacking) Close() error {
	b.buf = nil
	return nil
}

type growableHeapBacking struct {
	*heapBacking
}

func (b *growableHeapBacking) Grow(newSize int) error {
	if newSize < len(b.buf) {
		return fmt.Errorf("grow to %d: smaller than %d", newSize, len(b.buf))
	}
	buf := make([]byte, newSize)
	copy(buf, b.buf)
	b.buf = buf
	return nil
}

// MmapAllocator allocates windows in anonymous memory mappings outside the
// Go heap. Mappings grow in place where the OS supports it.
type MmapAllocator struct{}

// Allocate implements Allocator.
func (MmapAllocator) Allocate(size int) (Backing, error) {
	m, err := mmap.MapAnon(size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWindowAllocation, err)
	}
	return &mmapBacking{m: m}, nil
}

type mmapBacking struct {
	m *mmap.Mapping
}

func (b *mmapBacking) Bytes() []byte { return b.m.Bytes() }

func (b *mmapBacking) Close() error { return b.m.Close() }

func (b *mmapBacking) Grow(newSize int) error {
	if err := b.m.Grow(newSize); err != nil {
		if errors.Is(err, mmap.ErrNotGrowable) {
			return fmt.Errorf("%w: %w", ErrCannotGrow, err)
		}
		return err
	}
	return nil
}
