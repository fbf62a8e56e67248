//go:build linux

package mmap

import "golang.org/x/sys/unix"

// osRemap lets the kernel resize the mapping, moving it when the adjacent
// address range is taken.
func osRemap(old []byte, _ func([]byte) error, newSize int) ([]byte, func([]byte) error, error) {
	data, err := unix.Mremap(old, newSize, unix.MREMAP_MAYMOVE)
	if err != nil {
		return nil, nil, err
	}
	return data, unix.Munmap, nil
}
