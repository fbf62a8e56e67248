// Package cursorwindow provides paginated row buffers for query results.
//
// A Window is a fixed-capacity byte region holding one page of result rows
// in a compact binary layout. Every internal reference is an offset from
// the window base, so a window image can be copied, persisted and reopened
// without fixups.
//
// # Quick Start
//
//	host := cursorwindow.NewHost(cursorwindow.WithLogger(cursorwindow.NewTextLogger(slog.LevelInfo)))
//	win, _ := host.NewWindow("users", 2<<20)
//	defer win.Close()
//
//	cur := ... // any Cursor, e.g. sqlite.Query(ctx, db, "SELECT ...")
//	res, err := host.Fill(ctx, cur, win, cursorwindow.FillRequest{RequiredPos: 500})
//	// res.StartPos is the absolute position of window row 0.
//	name, _ := win.String(500-res.StartPos, 1)
//
// # Filling
//
// Host.Fill steps a Cursor from the beginning and copies rows into a
// window. Rows are never measured in advance: when the window runs out of
// space before the required row was copied, the page is discarded and the
// fill restarts at the first row not yet copied. Each restart moves the
// start strictly forward, so fills terminate. A row that does not fit in an
// empty window fails with ErrRowTooLarge.
//
// Busy signals from the cursor are retried with a short pause up to a fixed
// budget (WithBusyRetryLimit). There is no wall-clock timeout; cancel the
// context to abort a fill.
//
// # Growth
//
// Window growth is a negotiated capability of the Allocator. The default
// heap allocator gives fixed-capacity windows. HeapAllocator{Growable: true}
// and MmapAllocator let a full window double in size (bounded by
// WithMaxWindowSize) before the page is treated as full.
//
// # Paging
//
// Pager keeps a window positioned around a moving cursor position and only
// refills when the position leaves the window.
//
// # Images
//
// Window.Image returns the allocated bytes of a window. EncodeImage frames
// an image with a BLAKE3 checksum and optional lz4, zstd or xz compression;
// Host.SaveImage and Host.LoadImage persist frames in a blobstore.Store.
// Reopened windows are read-only.
//
// # Concurrency
//
// A Host is safe for concurrent use. A Window and a Cursor are used by one
// goroutine at a time.
package cursorwindow
