package cursorwindow

import (
	"fmt"
	"math"
	"time"

	"github.com/sqlcipher/cursorwindow/internal/arena"
	"github.com/sqlcipher/cursorwindow/internal/layout"
	"github.com/sqlcipher/cursorwindow/internal/resource"
)

// MaxWindowSize is the largest window addressable with 32-bit offsets,
// further bounded by int on 32-bit platforms.
const MaxWindowSize = min(math.MaxUint32, math.MaxInt)

// MinWindowSize is the smallest window: the header alone.
const MinWindowSize = layout.HeaderSize

// Host is the explicit configuration context for windows and fills.
// It replaces process-wide settings; every window is created by a host
// and every fill runs under one.
//
// A Host is safe for concurrent use. The windows it creates are not.
type Host struct {
	logger         *Logger
	metrics        MetricsCollector
	allocator      Allocator
	resources      *resource.Controller
	maxWindowSize  int
	busyRetryLimit int
	busyBackoff    time.Duration
}

// NewHost creates a Host configured by optFns.
func NewHost(optFns ...Option) *Host {
	opts := options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		allocator:        HeapAllocator{},
		busyRetryLimit:   DefaultBusyRetryLimit,
		busyBackoff:      DefaultBusyBackoff,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	maxSize := opts.maxWindowSize
	if maxSize <= 0 || maxSize > MaxWindowSize {
		maxSize = MaxWindowSize
	}

	return &Host{
		logger:         opts.logger,
		metrics:        opts.metricsCollector,
		allocator:      opts.allocator,
		resources:      resource.NewController(resource.Config{MemoryLimitBytes: opts.memoryLimit}),
		maxWindowSize:  maxSize,
		busyRetryLimit: opts.busyRetryLimit,
		busyBackoff:    opts.busyBackoff,
	}
}

// Logger returns the host logger.
func (h *Host) Logger() *Logger { return h.logger }

// MemoryUsage returns the bytes currently held by open windows of the host.
func (h *Host) MemoryUsage() int64 { return h.resources.MemoryUsage() }

// PeakMemoryUsage returns the highest MemoryUsage observed.
func (h *Host) PeakMemoryUsage() int64 { return h.resources.PeakMemoryUsage() }

// NewWindow creates an empty window whose backing store holds exactly size
// bytes, header included.
func (h *Host) NewWindow(name string, size int) (*Window, error) {
	if size < MinWindowSize || size > h.maxWindowSize {
		return nil, fmt.Errorf("%w: size %d outside [%d, %d]", ErrWindowAllocation, size, MinWindowSize, h.maxWindowSize)
	}
	if err := h.resources.AcquireMemory(int64(size)); err != nil {
		return nil, translateError(err)
	}

	b, err := h.allocator.Allocate(size)
	if err != nil {
		h.resources.ReleaseMemory(int64(size))
		return nil, err
	}

	buf := b.Bytes()
	if len(buf) < size {
		_ = b.Close()
		h.resources.ReleaseMemory(int64(size))
		return nil, fmt.Errorf("%w: allocator returned %d bytes, want %d", ErrWindowAllocation, len(buf), size)
	}
	a, err := arena.NewFlat(buf[:size:size], layout.HeaderSize)
	if err != nil {
		_ = b.Close()
		h.resources.ReleaseMemory(int64(size))
		return nil, fmt.Errorf("%w: %w", ErrWindowAllocation, err)
	}

	w := &Window{
		name:     name,
		host:     h,
		backing:  b,
		dir:      layout.New(a),
		reserved: int64(size),
		logger:   h.logger.WithWindow(name),
	}
	w.logger.Debug("window created", "size", size)
	return w, nil
}
