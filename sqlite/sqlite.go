package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/time/rate"

	"github.com/sqlcipher/cursorwindow"
)

// TimeFormat is the layout time.Time column values are rendered with.
const TimeFormat = "2006-01-02 15:04:05.999999999-07:00"

// fieldUnknown is reported for driver values the window cannot store.
const fieldUnknown = cursorwindow.FieldType(0xff)

// ErrClosed is returned when a closed cursor is used.
var ErrClosed = errors.New("sqlite: cursor is closed")

// Open opens the database described by dsn and checks that it is reachable.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Cursor is a cursorwindow.Cursor over one SQLite query.
//
// The query runs on a connection reserved from db until Close. Driver
// objects are only touched inside sql.Conn.Raw callbacks.
type Cursor struct {
	conn    *sql.Conn
	query   string
	args    []driver.NamedValue
	stmt    driver.Stmt
	rows    driver.Rows
	columns []string
	dest    []driver.Value
	pos     int // rows returned since the query was (re)started
	closed  bool
}

var _ cursorwindow.Cursor = (*Cursor)(nil)

// Query prepares and starts query on a connection reserved from db.
func Query(ctx context.Context, db *sql.DB, query string, args ...any) (*Cursor, error) {
	named, err := namedValues(args)
	if err != nil {
		return nil, err
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}

	c := &Cursor{conn: conn, query: query, args: named}
	limiter := rate.NewLimiter(rate.Every(cursorwindow.DefaultBusyBackoff), 1)
	limiter.Allow()
	for busy := 0; ; busy++ {
		err = conn.Raw(func(dc any) error {
			return c.start(ctx, dc)
		})
		if err == nil {
			return c, nil
		}
		if !isBusy(err) || busy >= cursorwindow.DefaultBusyRetryLimit {
			break
		}
		if werr := limiter.Wait(ctx); werr != nil {
			err = werr
			break
		}
	}

	_ = c.Close()
	if isBusy(err) {
		err = fmt.Errorf("%w: %w", cursorwindow.ErrBusyTimeout, err)
	}
	return nil, fmt.Errorf("query %q: %w", query, err)
}

// start prepares the statement once and runs it. It must run inside conn.Raw.
func (c *Cursor) start(ctx context.Context, dc any) error {
	if c.stmt == nil {
		stmt, err := prepare(ctx, dc, c.query)
		if err != nil {
			return err
		}
		c.stmt = stmt
	}
	return c.open(ctx)
}

// Columns returns the result column names.
func (c *Cursor) Columns() []string { return c.columns }

// ColumnCount implements cursorwindow.Cursor.
func (c *Cursor) ColumnCount() int { return len(c.columns) }

// Step implements cursorwindow.Cursor.
func (c *Cursor) Step(ctx context.Context) (cursorwindow.StepResult, error) {
	if c.closed {
		return cursorwindow.StepDone, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return cursorwindow.StepDone, err
	}

	var res cursorwindow.StepResult
	err := c.conn.Raw(func(any) error {
		var err error
		res, err = c.step(ctx)
		return err
	})
	return res, err
}

func (c *Cursor) step(ctx context.Context) (cursorwindow.StepResult, error) {
	if c.rows == nil {
		if err := c.open(ctx); err != nil {
			if isBusy(err) {
				return cursorwindow.StepBusy, nil
			}
			return cursorwindow.StepDone, err
		}
		// A busy query is restarted from the top. Skip what was already returned.
		for i := 0; i < c.pos; i++ {
			if err := c.rows.Next(c.dest); err != nil {
				return c.nextFailed(err)
			}
		}
	}

	if err := c.rows.Next(c.dest); err != nil {
		return c.nextFailed(err)
	}
	c.pos++
	return cursorwindow.StepRow, nil
}

func (c *Cursor) nextFailed(err error) (cursorwindow.StepResult, error) {
	if errors.Is(err, io.EOF) {
		return cursorwindow.StepDone, nil
	}
	_ = c.closeRows()
	if isBusy(err) {
		return cursorwindow.StepBusy, nil
	}
	return cursorwindow.StepDone, err
}

// open starts the statement. It must run inside conn.Raw.
func (c *Cursor) open(ctx context.Context) error {
	rows, err := query(ctx, c.stmt, c.args)
	if err != nil {
		return err
	}
	c.rows = rows
	if c.columns == nil {
		c.columns = rows.Columns()
		c.dest = make([]driver.Value, len(c.columns))
	}
	return nil
}

func (c *Cursor) closeRows() error {
	if c.rows == nil {
		return nil
	}
	err := c.rows.Close()
	c.rows = nil
	clear(c.dest)
	return err
}

// Reset implements cursorwindow.Cursor. The query restarts on the next Step.
func (c *Cursor) Reset() error {
	if c.closed {
		return ErrClosed
	}
	c.pos = 0
	return c.conn.Raw(func(any) error {
		return c.closeRows()
	})
}

// Close releases the statement and the connection. It is idempotent.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.conn.Raw(func(any) error {
		err := c.closeRows()
		if c.stmt != nil {
			err = errors.Join(err, c.stmt.Close())
			c.stmt = nil
		}
		return err
	})
	return errors.Join(err, c.conn.Close())
}

// ColumnType implements cursorwindow.Cursor.
func (c *Cursor) ColumnType(i int) cursorwindow.FieldType {
	switch c.dest[i].(type) {
	case nil:
		return cursorwindow.FieldNull
	case int64, bool:
		return cursorwindow.FieldInteger
	case float64:
		return cursorwindow.FieldFloat
	case string, time.Time:
		return cursorwindow.FieldString
	case []byte:
		return cursorwindow.FieldBlob
	default:
		return fieldUnknown
	}
}

// Int64 implements cursorwindow.Cursor.
func (c *Cursor) Int64(i int) int64 {
	switch v := c.dest[i].(type) {
	case int64:
		return v
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

// Float64 implements cursorwindow.Cursor.
func (c *Cursor) Float64(i int) float64 {
	v, _ := c.dest[i].(float64)
	return v
}

// Text implements cursorwindow.Cursor.
func (c *Cursor) Text(i int) string {
	switch v := c.dest[i].(type) {
	case string:
		return v
	case time.Time:
		return v.Format(TimeFormat)
	}
	return ""
}

// Blob implements cursorwindow.Cursor. The slice is owned by the driver
// and valid until the next Step.
func (c *Cursor) Blob(i int) []byte {
	v, _ := c.dest[i].([]byte)
	return v
}

func prepare(ctx context.Context, dc any, query string) (driver.Stmt, error) {
	switch conn := dc.(type) {
	case driver.ConnPrepareContext:
		return conn.PrepareContext(ctx, query)
	case driver.Conn:
		return conn.Prepare(query)
	default:
		return nil, fmt.Errorf("sqlite: unsupported driver connection %T", dc)
	}
}

func query(ctx context.Context, stmt driver.Stmt, args []driver.NamedValue) (driver.Rows, error) {
	if sq, ok := stmt.(driver.StmtQueryContext); ok {
		return sq.QueryContext(ctx, args)
	}
	values := make([]driver.Value, len(args))
	for i, a := range args {
		if a.Name != "" {
			return nil, fmt.Errorf("sqlite: driver does not support named argument %q", a.Name)
		}
		values[i] = a.Value
	}
	//nolint:staticcheck // fallback for drivers without context support
	return stmt.Query(values)
}

func namedValues(args []any) ([]driver.NamedValue, error) {
	out := make([]driver.NamedValue, len(args))
	for i, arg := range args {
		nv := driver.NamedValue{Ordinal: i + 1}
		if na, ok := arg.(sql.NamedArg); ok {
			nv.Name = na.Name
			arg = na.Value
		}
		v, err := driver.DefaultParameterConverter.ConvertValue(arg)
		if err != nil {
			return nil, fmt.Errorf("sqlite: argument %d: %w", i+1, err)
		}
		nv.Value = v
		out[i] = nv
	}
	return out, nil
}
