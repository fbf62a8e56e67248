package cursorwindow

import (
	"errors"
	"fmt"

	"github.com/sqlcipher/cursorwindow/internal/arena"
	"github.com/sqlcipher/cursorwindow/internal/compress"
	"github.com/sqlcipher/cursorwindow/internal/layout"
	"github.com/sqlcipher/cursorwindow/internal/mmap"
	"github.com/sqlcipher/cursorwindow/internal/resource"
)

var (
	// ErrCapacityExceeded is returned when a window allocation does not fit.
	// Fills recover from it by accepting the page as full or restarting.
	ErrCapacityExceeded = errors.New("window capacity exceeded")

	// ErrRowTooLarge is returned when a single row does not fit in an empty window.
	ErrRowTooLarge = fmt.Errorf("%w: row exceeds window capacity", ErrCapacityExceeded)

	// ErrInvalidState is returned for mutations the window does not allow in
	// its current state: changing the column count once rows exist, or writing
	// to a read-only or closed window.
	ErrInvalidState = errors.New("invalid window state")

	// ErrOutOfRange is returned for row or column coordinates outside the window.
	ErrOutOfRange = errors.New("row or column out of range")

	// ErrTypeMismatch is returned when a typed read does not match the stored type.
	ErrTypeMismatch = errors.New("field type mismatch")

	// ErrCannotGrow is returned by MaybeInflate when the backing store cannot
	// be enlarged. It is an answer, not a failure of the window.
	ErrCannotGrow = errors.New("window cannot grow")

	// ErrWindowAllocation is returned when backing storage for a window cannot be obtained.
	ErrWindowAllocation = errors.New("window allocation failed")

	// ErrEngine is returned when the cursor reports a failure. It is not retried.
	ErrEngine = errors.New("engine error")

	// ErrBusyTimeout is returned when the cursor stays busy for longer than
	// the retry budget.
	ErrBusyTimeout = fmt.Errorf("%w: busy retry limit exceeded", ErrEngine)

	// ErrContractViolation is returned when the cursor reports a column type
	// the window cannot store. It is never retried.
	ErrContractViolation = errors.New("cursor contract violation")

	// ErrCanceled is returned when the fill observes cancellation.
	ErrCanceled = errors.New("fill canceled")

	// ErrCorruptImage is returned when a window image fails validation.
	ErrCorruptImage = errors.New("corrupt window image")
)

// FillError describes a terminal failure of a fill.
//
// The taxonomy sentinel and the underlying error (if any) can be matched
// with errors.Is / errors.As.
type FillError struct {
	// Op is the fill step that failed ("step", "copy", "restart", ...).
	Op string
	// Pos is the absolute result row being processed, -1 if none.
	Pos   int
	cause error
}

func (e *FillError) Error() string {
	if e.Pos < 0 {
		return fmt.Sprintf("fill %s: %v", e.Op, e.cause)
	}
	return fmt.Sprintf("fill %s at row %d: %v", e.Op, e.Pos, e.cause)
}

func (e *FillError) Unwrap() error { return e.cause }

func fillError(op string, pos int, err error) error {
	return &FillError{Op: op, Pos: pos, cause: err}
}

// translateError maps errors of the internal layers onto the public taxonomy.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, layout.ErrCapacityExceeded), errors.Is(err, arena.ErrArenaFull):
		return fmt.Errorf("%w: %w", ErrCapacityExceeded, err)
	case errors.Is(err, layout.ErrInvalidState):
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	case errors.Is(err, layout.ErrOutOfRange):
		return fmt.Errorf("%w: %w", ErrOutOfRange, err)
	case errors.Is(err, layout.ErrCorrupt),
		errors.Is(err, arena.ErrInvalidBuffer),
		errors.Is(err, arena.ErrOutOfBounds),
		errors.Is(err, compress.ErrUnknownType),
		errors.Is(err, compress.ErrSizeMismatch):
		return fmt.Errorf("%w: %w", ErrCorruptImage, err)
	case errors.Is(err, resource.ErrMemoryLimitExceeded),
		errors.Is(err, mmap.ErrInvalidSize):
		return fmt.Errorf("%w: %w", ErrWindowAllocation, err)
	}

	return err
}
