package cursorwindow_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/sqlcipher/cursorwindow"
	"github.com/sqlcipher/cursorwindow/blobstore"
	"github.com/sqlcipher/cursorwindow/sqlite"
)

// Example_fill copies the page holding row 250 of a query into a window.
func Example_fill() {
	ctx := context.Background()
	dir, err := os.MkdirTemp("", "cursorwindow-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	db, err := sqlite.Open(ctx, sqlite.DSN(filepath.Join(dir, "example.db"), 0))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, `
		CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT);
		WITH RECURSIVE n(i) AS (SELECT 0 UNION ALL SELECT i+1 FROM n WHERE i < 999)
		INSERT INTO users SELECT i, 'user-' || i FROM n;`)
	if err != nil {
		log.Fatal(err)
	}

	host := cursorwindow.NewHost()
	win, err := host.NewWindow("users", 8*1024)
	if err != nil {
		log.Fatal(err)
	}
	defer win.Close()

	cur, err := sqlite.Query(ctx, db, `SELECT id, name FROM users ORDER BY id`)
	if err != nil {
		log.Fatal(err)
	}
	defer cur.Close()

	res, err := host.Fill(ctx, cur, win, cursorwindow.FillRequest{RequiredPos: 250, CountAllRows: true})
	if err != nil {
		log.Fatal(err)
	}

	name, _ := win.String(250-res.StartPos, 1)
	fmt.Println(res.TotalRows, win.Contains(250), name)
	// Output: 1000 true user-250
}

// Example_pager walks a query result through a small window.
func Example_pager() {
	ctx := context.Background()
	dir, err := os.MkdirTemp("", "cursorwindow-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	db, err := sqlite.Open(ctx, sqlite.DSN(filepath.Join(dir, "example.db"), 0))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	host := cursorwindow.NewHost()
	win, err := host.NewWindow("squares", 2048)
	if err != nil {
		log.Fatal(err)
	}
	defer win.Close()

	cur, err := sqlite.Query(ctx, db, `
		WITH RECURSIVE n(i) AS (SELECT 0 UNION ALL SELECT i+1 FROM n WHERE i < 299)
		SELECT i, i*i FROM n`)
	if err != nil {
		log.Fatal(err)
	}
	defer cur.Close()

	pager := host.NewPager(cur, win)
	count, err := pager.Count(ctx)
	if err != nil {
		log.Fatal(err)
	}
	for _, pos := range []int{3, 120, 299} {
		row, err := pager.Row(ctx, pos)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(row...)
	}
	fmt.Println("rows:", count)
	// Output:
	// 3 9
	// 120 14400
	// 299 89401
	// rows: 300
}

// Example_saveImage persists a filled window and reopens it read-only.
func Example_saveImage() {
	ctx := context.Background()
	host := cursorwindow.NewHost()

	win, err := host.NewWindow("page", 4096)
	if err != nil {
		log.Fatal(err)
	}
	defer win.Close()
	if err := win.SetNumColumns(1); err != nil {
		log.Fatal(err)
	}
	row, _ := win.AllocRow()
	if err := win.PutString(row, 0, "hello"); err != nil {
		log.Fatal(err)
	}

	store := blobstore.NewMemoryStore()
	if err := host.SaveImage(ctx, store, win, "page-0", cursorwindow.CompressionZstd); err != nil {
		log.Fatal(err)
	}

	ro, err := host.LoadImage(ctx, store, "page-0")
	if err != nil {
		log.Fatal(err)
	}
	defer ro.Close()

	s, _ := ro.String(0, 0)
	fmt.Println(s, ro.ReadOnly())
	// Output: hello true
}
