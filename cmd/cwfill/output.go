package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"

	"github.com/sqlcipher/cursorwindow"
	"github.com/sqlcipher/cursorwindow/codec"
)

// byteSize is a size flag such as "2MiB" or "512k".
type byteSize int

func (b *byteSize) Decode(ctx *kong.DecodeContext) error {
	var s string
	if err := ctx.Scan.PopValueInto("size", &s); err != nil {
		return err
	}
	n, err := parseByteSize(s)
	if err != nil {
		return err
	}
	*b = n
	return nil
}

func parseByteSize(s string) (byteSize, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	if n > cursorwindow.MaxWindowSize {
		return 0, fmt.Errorf("size %s exceeds %s", s, humanize.IBytes(cursorwindow.MaxWindowSize))
	}
	return byteSize(n), nil
}

func newPage(win *cursorwindow.Window, columns []string, totalRows int, exhausted bool) (*codec.Page, error) {
	page := &codec.Page{
		Window:    win.Name(),
		StartPos:  win.StartPosition(),
		TotalRows: totalRows,
		Exhausted: exhausted,
		Columns:   columns,
		Rows:      make([][]any, 0, win.NumRows()),
	}
	for r := 0; r < win.NumRows(); r++ {
		row, err := win.Row(r)
		if err != nil {
			return nil, err
		}
		page.Rows = append(page.Rows, row)
	}
	return page, nil
}

func writeJSON(w io.Writer, c codec.Codec, page *codec.Page) error {
	b, err := codec.EncodePage(c, page)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", b)
	return err
}

func writeTable(w io.Writer, page *codec.Page) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(page.Columns) > 0 {
		fmt.Fprintf(tw, "#\t%s\n", strings.Join(page.Columns, "\t"))
	}
	for i, row := range page.Rows {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = formatValue(v)
		}
		fmt.Fprintf(tw, "%d\t%s\n", page.StartPos+i, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return fmt.Sprintf("x'%x'", v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
