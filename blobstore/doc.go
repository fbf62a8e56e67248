// Package blobstore stores named, immutable window images.
//
// Store is the interface for reading and writing blobs. Implementations
// must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem, atomic writes, mmap reads
//   - MemoryStore: in-process map, mostly for tests
//
// Blobs returned by LocalStore implement Mappable so callers can decode an
// image without copying it first.
package blobstore
