// Package tqldiff compares two catalog snapshots and produces a stable,
// canonically-ordered list of differences usable for DDL generation and
// golden tests.
package tqldiff

import (
	"fmt"
	"sort"

	"github.com/mrorigo/tuiql/internal/tqlcatalog"
)

// Kind tags the variant of an Entry.
type Kind int

const (
	TableAdded Kind = iota
	TableRemoved
	ColumnAdded
	ColumnRemoved
	ColumnChanged
	IndexAdded
	IndexRemoved
	ForeignKeyAdded
	ForeignKeyRemoved
)

func (k Kind) String() string {
	return [...]string{
		"TableAdded", "TableRemoved", "ColumnAdded", "ColumnRemoved", "ColumnChanged",
		"IndexAdded", "IndexRemoved", "ForeignKeyAdded", "ForeignKeyRemoved",
	}[k]
}

// Entry is a single tagged difference between two catalogs.
type Entry struct {
	Kind    Kind
	Table   string
	Column  string
	Changed []string // for ColumnChanged: the changed attribute names
	From    string
	To      string
}

func (e Entry) String() string {
	switch e.Kind {
	case TableAdded, TableRemoved:
		return fmt.Sprintf("%s(%s)", e.Kind, e.Table)
	case ColumnChanged:
		return fmt.Sprintf("%s(%s.%s, %v)", e.Kind, e.Table, e.Column, e.Changed)
	case ColumnAdded, ColumnRemoved:
		return fmt.Sprintf("%s(%s.%s)", e.Kind, e.Table, e.Column)
	default:
		return fmt.Sprintf("%s(%s)", e.Kind, e.Table)
	}
}

// Diff compares a (before) against b (after) and returns a deterministic,
// stable-sorted list of differences: first by Kind, then lexically by
// table then column.
func Diff(a, b *tqlcatalog.Catalog) []Entry {
	var out []Entry

	aTables := indexTables(a)
	bTables := indexTables(b)

	for _, name := range sortedKeys(aTables) {
		if _, ok := bTables[name]; !ok {
			out = append(out, Entry{Kind: TableRemoved, Table: name})
		}
	}
	for _, name := range sortedKeys(bTables) {
		if _, ok := aTables[name]; !ok {
			out = append(out, Entry{Kind: TableAdded, Table: name})
		}
	}

	for _, name := range sortedKeys(aTables) {
		bt, ok := bTables[name]
		if !ok {
			continue
		}
		at := aTables[name]
		out = append(out, diffColumns(name, at, bt)...)
		out = append(out, diffIndexes(name, at, bt)...)
		out = append(out, diffForeignKeys(name, at, bt)...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		if out[i].Table != out[j].Table {
			return out[i].Table < out[j].Table
		}
		return out[i].Column < out[j].Column
	})
	return out
}

func indexTables(cat *tqlcatalog.Catalog) map[string]tqlcatalog.Table {
	out := make(map[string]tqlcatalog.Table, len(cat.Tables))
	for _, t := range cat.Tables {
		out[t.Name] = t
	}
	return out
}

func sortedKeys(m map[string]tqlcatalog.Table) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func diffColumns(table string, a, b tqlcatalog.Table) []Entry {
	var out []Entry
	aCols := map[string]tqlcatalog.Column{}
	for _, c := range a.Columns {
		aCols[c.Name] = c
	}
	bCols := map[string]tqlcatalog.Column{}
	for _, c := range b.Columns {
		bCols[c.Name] = c
	}

	for name, ac := range aCols {
		bc, ok := bCols[name]
		if !ok {
			out = append(out, Entry{Kind: ColumnRemoved, Table: table, Column: name})
			continue
		}
		if changed := changedAttributes(ac, bc); len(changed) > 0 {
			out = append(out, Entry{Kind: ColumnChanged, Table: table, Column: name, Changed: changed})
		}
	}
	for name := range bCols {
		if _, ok := aCols[name]; !ok {
			out = append(out, Entry{Kind: ColumnAdded, Table: table, Column: name})
		}
	}
	return out
}

func changedAttributes(a, b tqlcatalog.Column) []string {
	var out []string
	if a.Type != b.Type {
		out = append(out, "type")
	}
	if a.NotNull != b.NotNull {
		out = append(out, "notnull")
	}
	if a.DefaultValue != b.DefaultValue {
		out = append(out, "default")
	}
	if a.PrimaryKey != b.PrimaryKey {
		out = append(out, "pk")
	}
	sort.Strings(out)
	return out
}

func diffIndexes(table string, a, b tqlcatalog.Table) []Entry {
	var out []Entry
	aSet := indexKeySet(a.Indexes)
	bSet := indexKeySet(b.Indexes)

	for key := range aSet {
		if !bSet[key] {
			out = append(out, Entry{Kind: IndexRemoved, Table: table, Column: key})
		}
	}
	for key := range bSet {
		if !aSet[key] {
			out = append(out, Entry{Kind: IndexAdded, Table: table, Column: key})
		}
	}
	return out
}

// indexKeySet keys auto-created unique indexes by their covered columns so
// two indexes with different SQLite-generated names but the same columns
// compare equal.
func indexKeySet(indexes []tqlcatalog.Index) map[string]bool {
	out := map[string]bool{}
	for _, idx := range indexes {
		key := fmt.Sprintf("%v", idx.Columns)
		if idx.Origin == "c" {
			key = idx.Name + "|" + key
		}
		out[key] = true
	}
	return out
}

func diffForeignKeys(table string, a, b tqlcatalog.Table) []Entry {
	var out []Entry
	aSet := fkKeySet(a.ForeignKeys)
	bSet := fkKeySet(b.ForeignKeys)

	for key := range aSet {
		if !bSet[key] {
			out = append(out, Entry{Kind: ForeignKeyRemoved, Table: table, Column: key})
		}
	}
	for key := range bSet {
		if !aSet[key] {
			out = append(out, Entry{Kind: ForeignKeyAdded, Table: table, Column: key})
		}
	}
	return out
}

func fkKeySet(fks []tqlcatalog.ForeignKey) map[string]bool {
	out := map[string]bool{}
	for _, fk := range fks {
		key := fmt.Sprintf("%v|%s|%v", fk.FromColumn, fk.ToTable, fk.ToColumn)
		out[key] = true
	}
	return out
}
