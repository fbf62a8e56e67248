// Package sqlite adapts SQLite queries to the cursorwindow.Cursor capability.
//
// The default build uses the pure-Go modernc.org/sqlite driver. Building
// with the cgo_sqlite tag switches to github.com/mattn/go-sqlite3. Both
// register with database/sql; the driver in use is DriverName.
//
// A Cursor pins one connection of the pool for its lifetime and drives the
// driver's statement directly, so busy and locked conditions surface as
// cursorwindow.StepBusy instead of ending the result set.
package sqlite
