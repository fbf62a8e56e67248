package mmap

import (
	"os"
	"sync/atomic"
)

// Mapping represents a memory mapping.
// It owns the underlying byte slice and is responsible for unmapping it.
type Mapping struct {
	data   []byte
	anon   bool
	closed atomic.Bool
	// unmap is the platform-specific function to unmap the memory.
	unmap func([]byte) error
}

// Open maps the file at path into memory.
// The file is mapped as read-only.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := fi.Size()
	if size == 0 {
		return &Mapping{}, nil
	}
	if size < 0 || int64(int(size)) != size {
		return nil, ErrInvalidSize
	}

	data, unmapFunc, err := osMap(f, int(size))
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data, unmap: unmapFunc}, nil
}

// MapAnon creates a zero-filled read-write anonymous mapping of size bytes.
func MapAnon(size int) (*Mapping, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	data, unmapFunc, err := osMapAnon(size)
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data, anon: true, unmap: unmapFunc}, nil
}

// Grow resizes an anonymous mapping to newSize bytes, preserving contents.
// The mapping may move; callers must refetch Bytes.
func (m *Mapping) Grow(newSize int) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if !m.anon {
		return ErrNotGrowable
	}
	if newSize < len(m.data) {
		return ErrInvalidSize
	}
	if newSize == len(m.data) {
		return nil
	}
	data, unmapFunc, err := osRemap(m.data, m.unmap, newSize)
	if err != nil {
		return err
	}
	m.data = data
	m.unmap = unmapFunc
	return nil
}

// Close unmaps the memory. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil // Already closed
	}
	if m.unmap != nil && m.data != nil {
		return m.unmap(m.data)
	}
	return nil
}

// Bytes returns the underlying byte slice.
// Warning: The slice is valid only until Close() or Grow() is called.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the size of the mapping in bytes.
func (m *Mapping) Size() int {
	return len(m.data)
}

// remapCopy grows by mapping a fresh region and copying the old one into it.
func remapCopy(old []byte, unmap func([]byte) error, newSize int) ([]byte, func([]byte) error, error) {
	data, unmapFunc, err := osMapAnon(newSize)
	if err != nil {
		return nil, nil, err
	}
	copy(data, old)
	if unmap != nil {
		if err := unmap(old); err != nil {
			_ = unmapFunc(data)
			return nil, nil, err
		}
	}
	return data, unmapFunc, nil
}
