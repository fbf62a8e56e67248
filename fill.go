package cursorwindow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// FillRequest selects the rows a fill copies.
type FillRequest struct {
	// StartPos is the first absolute result position to copy.
	StartPos int
	// RequiredPos is the position that must end up in the window. The fill
	// restarts at a later position when the window fills before reaching it.
	RequiredPos int
	// CountAllRows keeps stepping the cursor after the window is full so
	// TotalRows is exact.
	CountAllRows bool
}

// FillResult describes a completed fill.
type FillResult struct {
	// StartPos is the absolute position of window row 0.
	StartPos int
	// TotalRows is the number of rows the cursor produced. It is exact when
	// Exhausted is true.
	TotalRows int
	// AddedRows is the number of rows copied into the window.
	AddedRows int
	// Restarts counts pages discarded to reach RequiredPos.
	Restarts int
	// Exhausted reports that the cursor returned StepDone.
	Exhausted bool
}

// Fill steps cur from the beginning and copies rows into win.
//
// The window is cleared and its column count set from the cursor. Rows
// before req.StartPos are counted but not copied. When the window runs out
// of space it is first inflated, if its backing allows growth; otherwise a
// non-empty page that has not reached req.RequiredPos is discarded and the
// fill restarts at the first row not yet copied. A row that does not fit
// in an empty window fails the fill with ErrRowTooLarge.
//
// The cursor is reset before Fill returns, whatever the outcome. On error
// the window content is unspecified and should be discarded.
func (h *Host) Fill(ctx context.Context, cur Cursor, win *Window, req FillRequest) (FillResult, error) {
	if cur == nil || win == nil {
		return FillResult{}, fmt.Errorf("%w: nil cursor or window", ErrInvalidState)
	}
	if req.StartPos < 0 || req.RequiredPos < 0 {
		return FillResult{StartPos: req.StartPos}, fmt.Errorf("%w: negative position", ErrOutOfRange)
	}

	start := time.Now()
	f := &filler{
		host:   h,
		cur:    cur,
		win:    win,
		req:    req,
		logger: win.logger,
		res:    FillResult{StartPos: req.StartPos},
	}
	err := f.run(ctx)

	if rerr := cur.Reset(); rerr != nil {
		f.logger.WarnContext(ctx, "failed to reset cursor", "error", rerr)
	}
	if err == nil {
		win.SetStartPosition(f.res.StartPos)
	}

	duration := time.Since(start)
	h.metrics.RecordFill(f.res, duration, err)
	f.logger.LogFill(ctx, f.res, duration, err)
	return f.res, err
}

type filler struct {
	host    *Host
	cur     Cursor
	win     *Window
	req     FillRequest
	logger  *Logger
	res     FillResult
	columns int
}

func (f *filler) run(ctx context.Context) error {
	if err := f.win.Clear(); err != nil {
		return fillError("clear", -1, err)
	}
	f.columns = f.cur.ColumnCount()
	if err := f.win.SetNumColumns(f.columns); err != nil {
		return fillError("set columns", -1, err)
	}

	limiter := f.busyLimiter()
	busy := 0
	full := false

	for !full || f.req.CountAllRows {
		if err := ctx.Err(); err != nil {
			return f.canceled(err)
		}

		step, err := f.cur.Step(ctx)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return f.canceled(cerr)
			}
			return fillError("step", f.res.TotalRows, fmt.Errorf("%w: %w", ErrEngine, err))
		}

		switch step {
		case StepDone:
			f.res.Exhausted = true
			f.logger.DebugContext(ctx, "processed all rows")
			return nil

		case StepBusy:
			busy++
			f.host.metrics.RecordBusyRetry()
			f.logger.LogBusy(ctx, busy, f.host.busyRetryLimit)
			if busy > f.host.busyRetryLimit {
				return fillError("step", f.res.TotalRows, ErrBusyTimeout)
			}
			if err := limiter.Wait(ctx); err != nil {
				return f.canceled(err)
			}

		case StepRow:
			busy = 0
			pos := f.res.TotalRows
			f.res.TotalRows++
			if pos < f.res.StartPos || full {
				continue
			}
			accepted, err := f.copyOrRestart(ctx, pos)
			if err != nil {
				return err
			}
			if !accepted {
				full = true
				f.logger.LogPageFull(ctx, f.res.StartPos, f.res.AddedRows, f.win.UsedBytes())
				if !f.req.CountAllRows {
					// The row that did not fit is reported by the next fill.
					f.res.TotalRows--
				}
			}

		default:
			return fillError("step", f.res.TotalRows, fmt.Errorf("%w: unknown step result %s", ErrContractViolation, step))
		}
	}
	return nil
}

// copyOrRestart copies the row at absolute position pos. It reports false
// when the page is accepted as full.
func (f *filler) copyOrRestart(ctx context.Context, pos int) (bool, error) {
	err := f.copyRowGrowing(ctx, pos)
	if err == nil {
		f.res.AddedRows++
		return true, nil
	}
	if !errors.Is(err, ErrCapacityExceeded) {
		return false, fillError("copy", pos, err)
	}

	if f.res.AddedRows == 0 {
		return false, fillError("copy", pos, fmt.Errorf("%w: %w", ErrRowTooLarge, err))
	}
	if f.res.StartPos+f.res.AddedRows > f.req.RequiredPos {
		return false, nil
	}

	// The page filled before the required row. Start over at this row.
	if err := f.win.Clear(); err != nil {
		return false, fillError("restart", pos, err)
	}
	if err := f.win.SetNumColumns(f.columns); err != nil {
		return false, fillError("restart", pos, err)
	}
	oldStart := f.res.StartPos
	f.res.StartPos += f.res.AddedRows
	f.res.AddedRows = 0
	f.res.Restarts++
	f.host.metrics.RecordRestart()
	f.logger.LogRestart(ctx, oldStart, f.res.StartPos, f.req.RequiredPos)

	if err := f.copyRowGrowing(ctx, pos); err != nil {
		if errors.Is(err, ErrCapacityExceeded) {
			err = fmt.Errorf("%w: %w", ErrRowTooLarge, err)
		}
		return false, fillError("copy", pos, err)
	}
	f.res.AddedRows++
	return true, nil
}

// copyRowGrowing copies the current row, inflating the window while the
// row does not fit and the window can still grow.
func (f *filler) copyRowGrowing(ctx context.Context, pos int) error {
	for {
		err := f.copyRow(pos)
		if !errors.Is(err, ErrCapacityExceeded) {
			return err
		}
		if ierr := f.win.MaybeInflate(ctx); ierr != nil {
			return err
		}
	}
}

// copyRow appends the cursor's current row. On failure the partial row is
// removed again.
func (f *filler) copyRow(pos int) error {
	row, err := f.win.AllocRow()
	if err != nil {
		f.logger.Debug("failed allocating row", "pos", pos, "error", err)
		return err
	}

	for col := 0; col < f.columns; col++ {
		if err = f.copyField(row, col); err != nil {
			f.logger.Debug("failed copying field", "pos", pos, "column", col, "error", err)
			break
		}
	}
	if err != nil {
		if ferr := f.win.FreeLastRow(); ferr != nil {
			return errors.Join(err, ferr)
		}
	}
	return err
}

func (f *filler) copyField(row, col int) error {
	switch t := f.cur.ColumnType(col); t {
	case FieldNull:
		return f.win.PutNull(row, col)
	case FieldInteger:
		return f.win.PutInt64(row, col, f.cur.Int64(col))
	case FieldFloat:
		return f.win.PutFloat64(row, col, f.cur.Float64(col))
	case FieldString:
		return f.win.PutString(row, col, f.cur.Text(col))
	case FieldBlob:
		return f.win.PutBlob(row, col, f.cur.Blob(col))
	default:
		return fmt.Errorf("%w: unknown column type %s in column %d", ErrContractViolation, t, col)
	}
}

func (f *filler) canceled(cause error) error {
	return fillError("step", f.res.TotalRows, fmt.Errorf("%w: %w", ErrCanceled, cause))
}

func (f *filler) busyLimiter() *rate.Limiter {
	if f.host.busyBackoff <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	l := rate.NewLimiter(rate.Every(f.host.busyBackoff), 1)
	// Drain the initial token so the first retry waits too.
	l.Allow()
	return l
}
