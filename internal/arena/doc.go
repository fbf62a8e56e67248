// Package arena provides a fixed-capacity, offset-addressed bump allocator.
//
// The arena hands out byte offsets relative to the start of its buffer, never
// addresses, so the whole region can be copied or remapped and every stored
// offset stays valid.
//
// # Layout
//
// The first ReservedSize bytes of the buffer belong to the caller's header.
// The first four of them hold the free offset (little-endian uint32); the
// arena keeps that word current on every allocation, truncation and reset so
// the buffer is self-describing at all times.
//
// # Reclamation
//
// Memory is reclaimed only in LIFO order: Truncate rewinds the free offset to
// a boundary previously returned by Mark, and Reset rewinds to the end of the
// reserved header. Padding introduced by aligned allocations is never reused
// except through one of those two paths.
//
// # Concurrency
//
// A Flat arena is not safe for concurrent mutation. Readers may share it only
// while no mutation is in flight.
package arena
