package main

import (
	"fmt"
	"time"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"

	"github.com/sqlcipher/cursorwindow"
	"github.com/sqlcipher/cursorwindow/blobstore"
	"github.com/sqlcipher/cursorwindow/codec"
	"github.com/sqlcipher/cursorwindow/sqlite"
)

// QueryCmd fills one window from a query.
type QueryCmd struct {
	DB            string        `name:"db" required:"" type:"existingfile" env:"CWFILL_DB" help:"SQLite database file"`
	WindowSize    byteSize      `name:"window-size" default:"2MiB" env:"CWFILL_WINDOW_SIZE" help:"Initial window capacity"`
	MaxWindowSize byteSize      `name:"max-window-size" default:"0" env:"CWFILL_MAX_WINDOW_SIZE" help:"Let a full window grow up to this size (0 keeps it fixed)"`
	MemoryLimit   byteSize      `name:"memory-limit" default:"0" env:"CWFILL_MEMORY_LIMIT" help:"Total window memory budget (0 for unlimited)"`
	Start         int           `name:"start" default:"0" help:"First position to copy"`
	Required      int           `name:"required" default:"0" help:"Position that must end up in the window"`
	CountAll      bool          `name:"count-all" help:"Step through the whole result to count rows"`
	BusyTimeout   time.Duration `name:"busy-timeout" default:"0s" env:"CWFILL_BUSY_TIMEOUT" help:"SQLite busy timeout"`
	BusyRetries   int           `name:"busy-retries" default:"50" env:"CWFILL_BUSY_RETRIES" help:"Busy retries before a fill fails"`
	Format        string        `name:"format" enum:"table,json" default:"table" env:"CWFILL_FORMAT" help:"Output format (${enum})"`
	Codec         string        `name:"codec" enum:"go-json,json" default:"go-json" help:"JSON codec (${enum})"`
	SaveImage     string        `name:"save-image" placeholder:"NAME" help:"Save the window image under NAME"`
	ImageDir      string        `name:"image-dir" type:"path" default:"." env:"CWFILL_IMAGE_DIR" help:"Directory holding window images"`
	Compression   string        `name:"compression" enum:"none,lz4,zstd,xz" default:"zstd" help:"Image compression (${enum})"`

	SQL  string   `arg:"" help:"Query to run"`
	Args []string `arg:"" optional:"" help:"Query arguments"`
}

func (c *QueryCmd) hostOptions(e *env) []cursorwindow.Option {
	opts := []cursorwindow.Option{
		cursorwindow.WithLogger(e.logger),
		cursorwindow.WithBusyRetryLimit(c.BusyRetries),
	}
	if c.MaxWindowSize > c.WindowSize {
		opts = append(opts,
			cursorwindow.WithAllocator(cursorwindow.HeapAllocator{Growable: true}),
			cursorwindow.WithMaxWindowSize(int(c.MaxWindowSize)),
		)
	}
	if c.MemoryLimit > 0 {
		opts = append(opts, cursorwindow.WithMemoryLimit(int64(c.MemoryLimit)))
	}
	return opts
}

func (c *QueryCmd) Run(kctx *kong.Context, e *env) error {
	ctx := e.ctx
	comp, err := cursorwindow.ParseCompression(c.Compression)
	if err != nil {
		return err
	}
	cdc, _ := codec.ByName(c.Codec)

	db, err := sqlite.Open(ctx, sqlite.DSN(c.DB, c.BusyTimeout))
	if err != nil {
		return fmt.Errorf("open %s: %w", c.DB, err)
	}
	defer db.Close()

	host := cursorwindow.NewHost(c.hostOptions(e)...)
	win, err := host.NewWindow("query", int(c.WindowSize))
	if err != nil {
		return err
	}
	defer win.Close()

	args := make([]any, len(c.Args))
	for i, a := range c.Args {
		args[i] = a
	}
	cur, err := sqlite.Query(ctx, db, c.SQL, args...)
	if err != nil {
		return err
	}
	defer cur.Close()

	res, err := host.Fill(ctx, cur, win, cursorwindow.FillRequest{
		StartPos:     c.Start,
		RequiredPos:  max(c.Required, c.Start),
		CountAllRows: c.CountAll,
	})
	if err != nil {
		return err
	}

	if c.SaveImage != "" {
		store := blobstore.NewLocalStore(c.ImageDir)
		if err := host.SaveImage(ctx, store, win, c.SaveImage, comp); err != nil {
			return err
		}
		e.logger.InfoContext(ctx, "window image saved",
			"name", c.SaveImage,
			"dir", c.ImageDir,
			"size", humanize.IBytes(uint64(win.UsedBytes())),
		)
	}

	page, err := newPage(win, cur.Columns(), res.TotalRows, res.Exhausted)
	if err != nil {
		return err
	}
	if c.Format == "json" {
		return writeJSON(kctx.Stdout, cdc, page)
	}
	fmt.Fprintf(kctx.Stdout, "start %d, %d rows in window, %d rows seen, %d restarts, %s of %s used\n",
		res.StartPos, win.NumRows(), res.TotalRows, res.Restarts,
		humanize.IBytes(uint64(win.UsedBytes())), humanize.IBytes(uint64(win.Capacity())))
	return writeTable(kctx.Stdout, page)
}
