package mmap

import "errors"

var (
	// ErrClosed is returned when attempting to access a closed mapping.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidSize is returned when the requested or file size is invalid.
	ErrInvalidSize = errors.New("mmap: invalid size")
	// ErrNotGrowable is returned when growing a mapping that does not support it.
	ErrNotGrowable = errors.New("mmap: mapping cannot grow")
)
