package main

import (
	"fmt"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"

	"github.com/sqlcipher/cursorwindow"
	"github.com/sqlcipher/cursorwindow/blobstore"
	"github.com/sqlcipher/cursorwindow/codec"
)

// InspectCmd prints a saved window image.
type InspectCmd struct {
	ImageDir string `name:"image-dir" type:"existingdir" default:"." env:"CWFILL_IMAGE_DIR" help:"Directory holding window images"`
	Format   string `name:"format" enum:"table,json" default:"table" env:"CWFILL_FORMAT" help:"Output format (${enum})"`
	Limit    int    `name:"limit" default:"0" help:"Print at most this many rows (0 for all)"`

	Name string `arg:"" help:"Image name"`
}

func (c *InspectCmd) Run(kctx *kong.Context, e *env) error {
	host := cursorwindow.NewHost(cursorwindow.WithLogger(e.logger))
	win, err := host.LoadImage(e.ctx, blobstore.NewLocalStore(c.ImageDir), c.Name)
	if err != nil {
		return err
	}
	defer win.Close()

	page, err := newPage(win, nil, win.NumRows(), false)
	if err != nil {
		return err
	}
	if c.Limit > 0 && len(page.Rows) > c.Limit {
		page.Rows = page.Rows[:c.Limit]
	}
	if c.Format == "json" {
		return writeJSON(kctx.Stdout, codec.Default, page)
	}
	fmt.Fprintf(kctx.Stdout, "%s: %d rows, %d columns, %s\n",
		c.Name, win.NumRows(), win.NumColumns(), humanize.IBytes(uint64(win.Capacity())))
	return writeTable(kctx.Stdout, page)
}

// ImagesCmd lists saved window images.
type ImagesCmd struct {
	ImageDir string `name:"image-dir" type:"existingdir" default:"." env:"CWFILL_IMAGE_DIR" help:"Directory holding window images"`

	Prefix string `arg:"" optional:"" help:"Only list names with this prefix"`
}

func (c *ImagesCmd) Run(kctx *kong.Context, e *env) error {
	store := blobstore.NewLocalStore(c.ImageDir)
	names, err := store.List(e.ctx, c.Prefix)
	if err != nil {
		return err
	}
	for _, name := range names {
		size := "?"
		if b, err := store.Open(e.ctx, name); err == nil {
			size = humanize.IBytes(uint64(b.Size()))
			_ = b.Close()
		}
		fmt.Fprintf(kctx.Stdout, "%s\t%s\n", name, size)
	}
	return nil
}
