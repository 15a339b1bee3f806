// Package tqlcatalog is the schema-introspection cache: a per-database
// snapshot of tables, views, indexes and foreign keys, refreshed after any
// DDL statement the dispatcher sees.
package tqlcatalog

import (
	"time"

	"github.com/mrorigo/tuiql/internal/kernelerr"
	"github.com/mrorigo/tuiql/internal/obslog"
	"github.com/mrorigo/tuiql/internal/quoting"
	"github.com/mrorigo/tuiql/internal/tqldb"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// rowCountTimeout bounds how long a single table's COUNT(*) may run before
// the catalog gives up and marks the row count unknown.
const rowCountTimeout = 500 * time.Millisecond

// Column describes one column of a table or view.
type Column struct {
	Name         string
	Type         string
	NotNull      bool
	DefaultValue string
	PrimaryKey   bool
	Position     int
}

// Index describes one index on a table.
type Index struct {
	Name    string
	Unique  bool
	Origin  string // "c" explicit, "u" auto-unique, "pk" primary key
	Columns []string
}

// ForeignKey describes one foreign-key constraint.
type ForeignKey struct {
	FromTable  string
	FromColumn []string
	ToTable    string
	ToColumn   []string
	OnDelete   string
	OnUpdate   string
	Deferrable bool
}

// Table is a table or view plus its introspected members.
type Table struct {
	Name         string
	Kind         string // "table" or "view"
	SQL          string
	Columns      []Column
	Indexes      []Index
	ForeignKeys  []ForeignKey
	RowCount     int64
	RowCountKnown bool
}

// Catalog is the per-database snapshot. It is safe to read concurrently;
// Refresh replaces the Tables slice wholesale rather than mutating in
// place, so a reader holding an old snapshot never observes a half-built
// one.
type Catalog struct {
	Tables []Table
}

// Load builds a fresh catalog from conn.
func Load(conn *tqldb.Connection) (*Catalog, error) {
	names, err := listNamed(conn.Raw())
	if err != nil {
		return nil, err
	}

	cat := &Catalog{}
	for _, n := range names {
		t, err := loadTable(conn.Raw(), n.name, n.kind, n.sql)
		if err != nil {
			return nil, err
		}
		cat.Tables = append(cat.Tables, t)
	}
	return cat, nil
}

// Refresh re-reads either a single named table or the whole catalog when
// table is empty.
func (c *Catalog) Refresh(conn *tqldb.Connection, table string) error {
	if table == "" {
		fresh, err := Load(conn)
		if err != nil {
			return err
		}
		c.Tables = fresh.Tables
		return nil
	}

	kind, sql, err := lookupOne(conn.Raw(), table)
	if err != nil {
		return err
	}
	fresh, err := loadTable(conn.Raw(), table, kind, sql)
	if err != nil {
		return err
	}
	tables := make([]Table, len(c.Tables), len(c.Tables)+1)
	copy(tables, c.Tables)
	for i, t := range tables {
		if t.Name == table {
			tables[i] = fresh
			c.Tables = tables
			return nil
		}
	}
	c.Tables = append(tables, fresh)
	return nil
}

// Table looks up a table by exact name.
func (c *Catalog) Table(name string) (Table, bool) {
	for _, t := range c.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

type namedEntity struct {
	name, kind, sql string
}

func listNamed(conn *sqlite.Conn) ([]namedEntity, error) {
	var out []namedEntity
	err := sqlitex.ExecuteTransient(conn,
		"SELECT name, type, sql FROM sqlite_master WHERE type IN ('table','view','index','trigger') ORDER BY name",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				kind := stmt.ColumnText(1)
				if kind != "table" && kind != "view" {
					return nil
				}
				out = append(out, namedEntity{
					name: stmt.ColumnText(0),
					kind: kind,
					sql:  stmt.ColumnText(2),
				})
				return nil
			},
		})
	if err != nil {
		return nil, kernelerr.Wrap(kernelerr.Schema, "read sqlite_master", err)
	}
	return out, nil
}

func lookupOne(conn *sqlite.Conn, name string) (kind, sql string, err error) {
	err = sqlitex.ExecuteTransient(conn,
		"SELECT type, sql FROM sqlite_master WHERE name = ? AND type IN ('table','view')",
		&sqlitex.ExecOptions{
			Args: []interface{}{name},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				kind = stmt.ColumnText(0)
				sql = stmt.ColumnText(1)
				return nil
			},
		})
	if err != nil {
		return "", "", kernelerr.Wrap(kernelerr.Schema, "lookup "+name, err)
	}
	return kind, sql, nil
}

func loadTable(conn *sqlite.Conn, name, kind, sql string) (Table, error) {
	t := Table{Name: name, Kind: kind, SQL: sql}

	cols, err := tableInfo(conn, name)
	if err != nil {
		return Table{}, err
	}
	t.Columns = cols

	idx, err := indexList(conn, name)
	if err != nil {
		return Table{}, err
	}
	t.Indexes = idx

	fks, err := foreignKeyList(conn, name)
	if err != nil {
		return Table{}, err
	}
	t.ForeignKeys = fks

	if kind == "table" {
		n, known := countRows(conn, name)
		t.RowCount = n
		t.RowCountKnown = known
	}

	return t, nil
}

func tableInfo(conn *sqlite.Conn, table string) ([]Column, error) {
	var cols []Column
	err := sqlitex.ExecuteTransient(conn, `PRAGMA table_info(`+quoteIdent(table)+`)`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			cols = append(cols, Column{
				Position:     int(stmt.ColumnInt64(0)),
				Name:         stmt.ColumnText(1),
				Type:         stmt.ColumnText(2),
				NotNull:      stmt.ColumnInt64(3) != 0,
				DefaultValue: stmt.ColumnText(4),
				PrimaryKey:   stmt.ColumnInt64(5) != 0,
			})
			return nil
		},
	})
	if err != nil {
		return nil, kernelerr.Wrap(kernelerr.Schema, "table_info("+table+")", err)
	}
	return cols, nil
}

func indexList(conn *sqlite.Conn, table string) ([]Index, error) {
	var names []struct {
		name, origin string
		unique       bool
	}
	err := sqlitex.ExecuteTransient(conn, `PRAGMA index_list(`+quoteIdent(table)+`)`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			names = append(names, struct {
				name, origin string
				unique       bool
			}{
				name:   stmt.ColumnText(1),
				unique: stmt.ColumnInt64(2) != 0,
				origin: stmt.ColumnText(3),
			})
			return nil
		},
	})
	if err != nil {
		return nil, kernelerr.Wrap(kernelerr.Schema, "index_list("+table+")", err)
	}

	out := make([]Index, 0, len(names))
	for _, n := range names {
		var cols []string
		err := sqlitex.ExecuteTransient(conn, `PRAGMA index_info(`+quoteIdent(n.name)+`)`, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				cols = append(cols, stmt.ColumnText(2))
				return nil
			},
		})
		if err != nil {
			return nil, kernelerr.Wrap(kernelerr.Schema, "index_info("+n.name+")", err)
		}
		out = append(out, Index{Name: n.name, Unique: n.unique, Origin: n.origin, Columns: cols})
	}
	return out, nil
}

func foreignKeyList(conn *sqlite.Conn, table string) ([]ForeignKey, error) {
	grouped := map[int]*ForeignKey{}
	var order []int
	err := sqlitex.ExecuteTransient(conn, `PRAGMA foreign_key_list(`+quoteIdent(table)+`)`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			id := int(stmt.ColumnInt64(0))
			fk, ok := grouped[id]
			if !ok {
				fk = &ForeignKey{
					FromTable: table,
					ToTable:   stmt.ColumnText(2),
					OnUpdate:  stmt.ColumnText(5),
					OnDelete:  stmt.ColumnText(6),
				}
				grouped[id] = fk
				order = append(order, id)
			}
			fk.FromColumn = append(fk.FromColumn, stmt.ColumnText(3))
			fk.ToColumn = append(fk.ToColumn, stmt.ColumnText(4))
			return nil
		},
	})
	if err != nil {
		return nil, kernelerr.Wrap(kernelerr.Schema, "foreign_key_list("+table+")", err)
	}
	out := make([]ForeignKey, 0, len(order))
	for _, id := range order {
		out = append(out, *grouped[id])
	}
	return out, nil
}

// countRows runs SELECT COUNT(*) guarded by a soft timeout. On timeout it
// interrupts the statement and reports the count as unknown rather than
// blocking the catalog load.
func countRows(conn *sqlite.Conn, table string) (int64, bool) {
	done := make(chan struct{})
	old := conn.SetInterrupt(done)
	defer conn.SetInterrupt(old)

	timer := time.AfterFunc(rowCountTimeout, func() { close(done) })
	defer timer.Stop()

	var n int64
	var known = true
	err := sqlitex.ExecuteTransient(conn, `SELECT COUNT(*) FROM `+quoteIdent(table), &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			n = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		known = false
		obslog.Log.Debug().Str("table", table).Msg("row count estimate timed out")
	}
	return n, known
}

func quoteIdent(name string) string { return quoting.DoubleQuote(name) }
