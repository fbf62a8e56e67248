// Package mmap provides memory mappings used as window backing stores.
//
// # Anonymous Mappings
//
// MapAnon creates a read-write anonymous mapping outside the Go heap. Such a
// mapping can be grown with Grow: on Linux the kernel resizes it with
// mremap(2) and may move it; elsewhere a larger mapping is created and the
// contents are copied. Either way the returned bytes are preserved, so callers
// that address the region by offset keep working after a grow.
//
// # File Mappings
//
// Open maps an existing file read-only. File mappings cannot grow.
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2), plus mremap(2) on Linux
//   - Windows: CreateFileMapping/MapViewOfFile for files, VirtualAlloc for anonymous memory
//
// # Thread Safety
//
// Close is idempotent. Bytes must not be used after Close or after a Grow
// that returned a different slice.
package mmap
