package cursorwindow

import (
	"context"
	"fmt"
)

// PickStartPosition returns where a fill should start so that pos lands in
// the upper two thirds of a window holding rowsPerWindow rows. This keeps
// a few rows before pos for callers that step backwards.
func PickStartPosition(pos, rowsPerWindow int) int {
	return max(pos-rowsPerWindow/3, 0)
}

// Pager keeps one window positioned around a moving cursor position.
//
// The first fill counts every row and learns how many rows fit in the
// window. Later fills only happen when the requested position lies outside
// the window and stop as soon as the window is full.
type Pager struct {
	host          *Host
	cur           Cursor
	win           *Window
	forwardOnly   bool
	count         int
	rowsPerWindow int
	filled        bool
}

// PagerOption configures a Pager.
type PagerOption func(*Pager)

// WithForwardOnly makes refills start exactly at the requested position.
func WithForwardOnly() PagerOption {
	return func(p *Pager) {
		p.forwardOnly = true
	}
}

// NewPager creates a pager that fills win from cur.
// The pager does not own either of them.
func (h *Host) NewPager(cur Cursor, win *Window, optFns ...PagerOption) *Pager {
	p := &Pager{host: h, cur: cur, win: win, count: -1}
	for _, fn := range optFns {
		fn(p)
	}
	return p
}

// Window returns the paged window.
func (p *Pager) Window() *Window { return p.win }

// Count returns the number of rows in the result, filling the window from
// position 0 if nothing was filled yet.
func (p *Pager) Count(ctx context.Context) (int, error) {
	if p.count < 0 {
		if err := p.fill(ctx, 0); err != nil {
			return 0, err
		}
	}
	return p.count, nil
}

// MoveTo makes sure the absolute position pos is held by the window.
func (p *Pager) MoveTo(ctx context.Context, pos int) error {
	if pos < 0 {
		return fmt.Errorf("%w: position %d", ErrOutOfRange, pos)
	}
	if p.filled && p.win.Contains(pos) {
		return nil
	}
	if p.count >= 0 && pos >= p.count {
		return fmt.Errorf("%w: position %d beyond %d rows", ErrOutOfRange, pos, p.count)
	}
	if err := p.fill(ctx, pos); err != nil {
		return err
	}
	if !p.win.Contains(pos) {
		return fmt.Errorf("%w: position %d beyond %d rows", ErrOutOfRange, pos, p.count)
	}
	return nil
}

// Row returns the row at absolute position pos.
func (p *Pager) Row(ctx context.Context, pos int) ([]any, error) {
	if err := p.MoveTo(ctx, pos); err != nil {
		return nil, err
	}
	return p.win.Row(pos - p.win.StartPosition())
}

func (p *Pager) fill(ctx context.Context, pos int) error {
	req := FillRequest{StartPos: pos, RequiredPos: pos}
	first := p.count < 0
	switch {
	case first:
		req.CountAllRows = true
	case !p.forwardOnly:
		req.StartPos = PickStartPosition(pos, p.rowsPerWindow)
	}

	p.filled = false
	res, err := p.host.Fill(ctx, p.cur, p.win, req)
	if err != nil {
		return err
	}
	if first {
		p.count = res.TotalRows
		p.rowsPerWindow = p.win.NumRows()
	}
	p.filled = true
	return nil
}
