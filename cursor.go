package cursorwindow

import (
	"context"
	"fmt"

	"github.com/sqlcipher/cursorwindow/internal/layout"
)

// FieldType is the type of a stored field or of a cursor column value.
// The numeric values are part of the window binary layout.
type FieldType uint32

const (
	FieldNull    = FieldType(layout.FieldNull)
	FieldInteger = FieldType(layout.FieldInteger)
	FieldFloat   = FieldType(layout.FieldFloat)
	FieldString  = FieldType(layout.FieldString)
	FieldBlob    = FieldType(layout.FieldBlob)
)

func (t FieldType) String() string {
	switch t {
	case FieldNull:
		return "NULL"
	case FieldInteger:
		return "INTEGER"
	case FieldFloat:
		return "FLOAT"
	case FieldString:
		return "STRING"
	case FieldBlob:
		return "BLOB"
	default:
		return fmt.Sprintf("FieldType(%d)", uint32(t))
	}
}

// StepResult is the outcome of advancing a cursor.
type StepResult int

const (
	// StepRow means a row is available through the column accessors.
	StepRow StepResult = iota
	// StepDone means the result set is exhausted.
	StepDone
	// StepBusy means the engine could not make progress because a lock is
	// held elsewhere. The cursor did not advance and may be stepped again.
	StepBusy
)

func (r StepResult) String() string {
	switch r {
	case StepRow:
		return "row"
	case StepDone:
		return "done"
	case StepBusy:
		return "busy"
	default:
		return fmt.Sprintf("StepResult(%d)", int(r))
	}
}

// Cursor is a forward-only result cursor supplied by a query engine.
//
// Step returns a non-nil error for engine failures other than busy/locked,
// which are reported as StepBusy. Implementations should observe ctx
// between rows. Column accessors are valid only after Step returned StepRow
// and until the next Step or Reset.
type Cursor interface {
	Step(ctx context.Context) (StepResult, error)
	ColumnCount() int
	ColumnType(i int) FieldType
	Int64(i int) int64
	Float64(i int) float64
	Text(i int) string
	Blob(i int) []byte
	// Reset rewinds the cursor so the next Step starts over.
	Reset() error
}
