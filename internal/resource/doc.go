// Package resource tracks and limits the memory held by window backing stores.
//
// Memory tracking uses a weighted semaphore for the hard limit and an atomic
// counter for usage. AcquireMemory is non-blocking and fails fast with
// ErrMemoryLimitExceeded:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 64 << 20,
//	})
//
//	if err := rc.AcquireMemory(2 << 20); err != nil {
//	    // window allocation refused
//	}
//	defer rc.ReleaseMemory(2 << 20)
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully; they become no-ops.
package resource
