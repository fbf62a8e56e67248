package cursorwindow

import (
	"time"
)

const (
	// DefaultBusyRetryLimit is the number of consecutive busy signals a fill
	// tolerates. The next one fails the fill with ErrBusyTimeout.
	DefaultBusyRetryLimit = 50

	// DefaultBusyBackoff is the pause between busy retries.
	DefaultBusyBackoff = time.Millisecond

	// DefaultWindowSize is the window size used by the CLI and Pager callers
	// that do not pick one.
	DefaultWindowSize = 2 << 20
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	allocator        Allocator
	memoryLimit      int64
	maxWindowSize    int
	busyRetryLimit   int
	busyBackoff      time.Duration
}

// Option configures a Host.
type Option func(*options)

// WithLogger configures the logger used for fill and window events.
//
// If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector configures the metrics collector.
//
// If nil is passed, NoopMetricsCollector is used.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithAllocator configures how window backing stores are obtained.
//
// The default is a fixed-capacity heap allocator. Use a growable allocator
// (HeapAllocator{Growable: true} or MmapAllocator{}) to let full windows
// inflate before they are treated as full.
func WithAllocator(a Allocator) Option {
	return func(o *options) {
		if a != nil {
			o.allocator = a
		}
	}
}

// WithMemoryLimit bounds the total bytes of all open windows of the host.
// Zero means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithMaxWindowSize caps the size a window may inflate to.
// Zero means windows only inflate up to the 4 GiB offset limit.
func WithMaxWindowSize(size int) Option {
	return func(o *options) {
		o.maxWindowSize = size
	}
}

// WithBusyRetryLimit sets how many consecutive busy signals a fill tolerates.
func WithBusyRetryLimit(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.busyRetryLimit = n
		}
	}
}

// WithBusyBackoff sets the pause between busy retries.
// Zero or negative disables pausing.
func WithBusyBackoff(d time.Duration) Option {
	return func(o *options) {
		o.busyBackoff = d
	}
}
