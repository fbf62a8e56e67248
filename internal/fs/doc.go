// Package fs is the file system seam used by blobstore.LocalStore.
//
//   - [LocalFS] forwards to the os package.
//   - [FaultyFS] wraps another FileSystem and injects write, sync, close or
//     rename failures for tests.
//
// Reads go through internal/mmap and are not covered here.
package fs
