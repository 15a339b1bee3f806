// Package tqldb is the connection and execution engine: it owns the
// embedded SQLite handle, applies safe pragmas on open, classifies and
// runs statements, and tracks transaction and cancellation state.
//
// It is built on zombiezen.com/go/sqlite rather than database/sql, because
// the kernel needs a raw, interruptible handle and a typed cell model
// (Null|Integer|Real|Text|Blob) that a database/sql driver would hide
// behind its own value conversion.
package tqldb

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mrorigo/tuiql/internal/kernelerr"
	"github.com/mrorigo/tuiql/internal/obslog"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// DefaultPageSize is the page_size pragma hint applied to new files. It is
// only effective before the first table is created, so it is best-effort.
const DefaultPageSize = 4096

// Connection is the opaque handle the kernel operates on: a SQLite
// connection plus the path, readonly flag, transaction state, and a shared
// cancellation flag that a signal handler may set from any goroutine.
type Connection struct {
	conn     *sqlite.Conn
	path     string
	readonly bool
	tx       TxState
	cancel   atomic.Bool
	interrupt chan struct{}
}

// Open opens path (or ":memory:") and applies the safe pragmas: foreign
// keys on, WAL journal mode (downgraded silently if rejected), and a
// page_size hint.
func Open(path string, readonly bool) (*Connection, error) {
	flags := sqlite.OpenCreate | sqlite.OpenReadWrite | sqlite.OpenWAL
	if readonly {
		flags = sqlite.OpenReadOnly
	}
	conn, err := sqlite.OpenConn(path, flags)
	if err != nil {
		return nil, kernelerr.Wrap(kernelerr.Database, fmt.Sprintf("open %q", path), err)
	}

	c := &Connection{conn: conn, path: path, readonly: readonly, interrupt: make(chan struct{})}
	conn.SetInterrupt(c.interrupt)

	if err := sqlitex.ExecuteTransient(conn, "PRAGMA foreign_keys = ON", nil); err != nil {
		_ = conn.Close()
		return nil, kernelerr.Wrap(kernelerr.Database, "enable foreign_keys", err)
	}
	if err := sqlitex.ExecuteTransient(conn, "PRAGMA journal_mode = WAL", nil); err != nil {
		obslog.Log.Warn().Err(err).Msg("WAL journal mode rejected, continuing without it")
	}
	if err := sqlitex.ExecuteTransient(conn, fmt.Sprintf("PRAGMA page_size = %d", DefaultPageSize), nil); err != nil {
		obslog.Log.Warn().Err(err).Msg("page_size pragma rejected")
	}

	return c, nil
}

// Path returns the path the connection was opened with.
func (c *Connection) Path() string { return c.path }

// Readonly reports whether the connection was opened read-only.
func (c *Connection) Readonly() bool { return c.readonly }

// TxState returns the current transaction state.
func (c *Connection) TxState() TxState { return c.tx }

// Raw exposes the underlying handle for packages (catalog, plan, fts5,
// json1) that need to run their own statements against the same
// connection. They must not hold it across a Close.
func (c *Connection) Raw() *sqlite.Conn { return c.conn }

// Interrupt sets the shared cancellation flag and fires the driver's
// interrupt primitive. Safe to call from a signal handler goroutine.
func (c *Connection) Interrupt() {
	c.cancel.Store(true)
	close(c.interrupt)
	c.interrupt = make(chan struct{})
	c.conn.SetInterrupt(c.interrupt)
}

// resetCancel clears the cancellation flag at the start of a new statement.
func (c *Connection) resetCancel() { c.cancel.Store(false) }

func classify(sql string) string {
	trimmed := strings.TrimSpace(sql)
	upper := strings.ToUpper(trimmed)
	for _, kw := range []string{"SELECT", "WITH", "PRAGMA", "EXPLAIN"} {
		if strings.HasPrefix(upper, kw) {
			return kw
		}
	}
	return "OTHER"
}

// isSchemaChange reports whether sql is a DDL statement that should trigger
// a catalog refresh after it succeeds.
func isSchemaChange(sql string) bool {
	upper := strings.ToUpper(strings.TrimSpace(sql))
	for _, kw := range []string{"CREATE", "ALTER", "DROP", "ATTACH", "DETACH"} {
		if strings.HasPrefix(upper, kw) {
			return true
		}
	}
	return false
}

// IsSchemaChange is the exported form dispatchers use to decide whether to
// refresh the catalog after a successful non-query statement.
func IsSchemaChange(sql string) bool { return isSchemaChange(sql) }

// Execute runs a single SQL statement and classifies the result. SELECT,
// WITH, PRAGMA and EXPLAIN produce a Rows result; everything else produces
// a Changes result.
func (c *Connection) Execute(sql string) (Result, error) {
	c.resetCancel()
	start := time.Now()

	kind := classify(sql)
	if kind == "OTHER" {
		return c.executeChanges(sql, start)
	}
	return c.executeRows(sql, start)
}

func (c *Connection) executeRows(sql string, start time.Time) (Result, error) {
	stmt, _, err := c.conn.PrepareTransient(sql)
	if err != nil {
		return Result{}, classifyExecError(err)
	}
	defer func() { _ = stmt.Finalize() }()

	n := stmt.ColumnCount()
	columns := make([]string, n)
	for i := 0; i < n; i++ {
		columns[i] = stmt.ColumnName(i)
	}

	var rows [][]Cell
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			return Result{}, classifyExecError(err)
		}
		if !hasRow {
			break
		}
		rows = append(rows, decodeRow(stmt, n))
	}

	return RowsResult(columns, rows, time.Since(start)), nil
}

func (c *Connection) executeChanges(sql string, start time.Time) (Result, error) {
	if err := sqlitex.ExecuteTransient(c.conn, sql, nil); err != nil {
		return Result{}, classifyExecError(err)
	}
	n := c.conn.Changes()
	return ChangesResult(int64(n), time.Since(start)), nil
}

// decodeRow pulls every column of the current row into a Cell, degrading a
// single cell's decode failure to the string "NULL" rather than aborting
// the whole row stream.
func decodeRow(stmt *sqlite.Stmt, n int) []Cell {
	row := make([]Cell, n)
	for i := 0; i < n; i++ {
		func() {
			defer func() {
				if recover() != nil {
					row[i] = TextCell("NULL")
				}
			}()
			switch stmt.ColumnType(i) {
			case sqlite.TypeNull:
				row[i] = NullCell()
			case sqlite.TypeInteger:
				row[i] = IntegerCell(stmt.ColumnInt64(i))
			case sqlite.TypeFloat:
				row[i] = RealCell(stmt.ColumnFloat(i))
			case sqlite.TypeText:
				row[i] = TextCell(stmt.ColumnText(i))
			case sqlite.TypeBlob:
				n := stmt.ColumnLen(i)
				buf := make([]byte, n)
				stmt.ColumnBytes(i, buf)
				row[i] = BlobCell(buf)
			default:
				row[i] = NullCell()
			}
		}()
	}
	return row
}

// classifyExecError turns a driver error into a kernel error, surfacing
// Cancelled and Readonly distinctly from a generic Query failure. The
// readonly case is detected from SQLite's own SQLITE_READONLY result code
// rather than by pre-parsing the SQL text, so the flag is enforced at the
// connection level the way SQLite itself enforces it.
func classifyExecError(err error) error {
	if err == nil {
		return nil
	}
	switch sqlite.ErrCode(err) {
	case sqlite.ResultInterrupt:
		return kernelerr.ErrCancelled
	case sqlite.ResultReadOnly:
		return kernelerr.ErrReadonly
	}
	return kernelerr.Wrap(kernelerr.Query, "statement failed", err)
}

// ExecuteBatch runs multiple ';'-terminated statements in order, stopping
// at the first error and returning the (0-based) index of the statement
// that failed.
func (c *Connection) ExecuteBatch(sql string) (failedIndex int, err error) {
	statements := splitStatements(sql)
	for i, stmt := range statements {
		if c.cancel.Load() {
			return i, kernelerr.ErrCancelled
		}
		trimmed := strings.TrimSpace(stmt)
		if trimmed == "" {
			continue
		}
		if _, err := c.Execute(trimmed); err != nil {
			return i, err
		}
	}
	return -1, nil
}

// splitStatements performs a simple ';'-terminated split that respects
// single- and double-quoted string literals.
func splitStatements(sql string) []string {
	var out []string
	var cur strings.Builder
	inSingle, inDouble := false, false
	for _, r := range sql {
		switch {
		case r == '\'' && !inDouble:
			inSingle = !inSingle
		case r == '"' && !inSingle:
			inDouble = !inDouble
		}
		if r == ';' && !inSingle && !inDouble {
			out = append(out, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteRune(r)
	}
	if strings.TrimSpace(cur.String()) != "" {
		out = append(out, cur.String())
	}
	return out
}

// Begin starts a transaction. From TxActive it fails with
// ErrNestedTransaction without touching SQLite.
func (c *Connection) Begin() error {
	if c.tx == TxActive {
		return kernelerr.ErrNestedTransaction
	}
	if err := sqlitex.ExecuteTransient(c.conn, "BEGIN", nil); err != nil {
		return kernelerr.Wrap(kernelerr.Database, "BEGIN", err)
	}
	c.tx = TxActive
	return nil
}

// Commit ends the active transaction. From TxNone it fails with
// ErrNoActiveTransaction without touching SQLite.
func (c *Connection) Commit() error {
	if c.tx == TxNone {
		return kernelerr.ErrNoActiveTransaction
	}
	if err := sqlitex.ExecuteTransient(c.conn, "COMMIT", nil); err != nil {
		return kernelerr.Wrap(kernelerr.Database, "COMMIT", err)
	}
	c.tx = TxNone
	return nil
}

// Rollback discards the active transaction. From TxNone it fails with
// ErrNoActiveTransaction without touching SQLite.
func (c *Connection) Rollback() error {
	if c.tx == TxNone {
		return kernelerr.ErrNoActiveTransaction
	}
	if err := sqlitex.ExecuteTransient(c.conn, "ROLLBACK", nil); err != nil {
		return kernelerr.Wrap(kernelerr.Database, "ROLLBACK", err)
	}
	c.tx = TxNone
	return nil
}

// Close releases the handle. It refuses while a transaction is active so a
// caller never silently loses uncommitted work.
func (c *Connection) Close() error {
	if c.tx == TxActive {
		return kernelerr.ErrUnflushedTransaction
	}
	return c.conn.Close()
}
