//go:build !linux

package mmap

func osRemap(old []byte, unmap func([]byte) error, newSize int) ([]byte, func([]byte) error, error) {
	return remapCopy(old, unmap, newSize)
}
