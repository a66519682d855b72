package store

import (
	"errors"
	"log"
	"os"

	"zombiezen.com/go/sqlite"
)

// ErrJourneyNotFound is returned by Txn operations that look up a journey by
// id when no such row exists. Per spec.md §7 this is a sentinel "absent"
// value for update-style operations that require the row to already exist
// (read operations instead return an explicit ok bool, never this error).
var ErrJourneyNotFound = errors.New("store: journey not found")

// defaultLogger mirrors the teacher's own logger construction
// (log.New(os.Stdout/os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)) so
// every long-lived store component has somewhere to write diagnostics when
// the caller doesn't inject one.
func defaultLogger() *log.Logger {
	return log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

// columnBlob copies a BLOB/TEXT column's bytes out of stmt. zombiezen's
// Stmt only exposes a copy-into-buffer accessor for non-UTF8 columns, so
// callers size the buffer with ColumnLen first.
func columnBlob(stmt *sqlite.Stmt, col int) []byte {
	buf := make([]byte, stmt.ColumnLen(col))
	stmt.ColumnBytes(col, buf)
	return buf
}
