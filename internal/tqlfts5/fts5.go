// Package tqlfts5 composes FTS5 statements as plain SQL text. The helpers
// never touch a connection themselves — execution goes through the engine
// in internal/tqldb — which keeps them testable without a database.
package tqlfts5

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mrorigo/tuiql/internal/quoting"
)

// virtualTableRE matches "CREATE VIRTUAL TABLE <name> USING fts5" in a
// sqlite_master.sql column, case-insensitively. The name may be bare or
// double-quoted (a quoted name may contain spaces).
var virtualTableRE = regexp.MustCompile(`(?is)CREATE\s+VIRTUAL\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?("[^"]*"|\S+)\s+USING\s+fts5`)

// List extracts the names of FTS5 virtual tables from a set of
// sqlite_master.sql values.
func List(createStatements []string) []string {
	var out []string
	for _, s := range createStatements {
		if m := virtualTableRE.FindStringSubmatch(s); m != nil {
			out = append(out, strings.Trim(m[1], `"'`+"`"))
		}
	}
	return out
}

// Create emits the CREATE VIRTUAL TABLE DDL for a new FTS5 index over cols
// using tokenizer (empty for the SQLite default, "unicode61" / "porter" /
// "trigram" otherwise).
func Create(name string, cols []string, tokenizer string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE VIRTUAL TABLE %s USING fts5(%s", quoting.DoubleQuote(name), strings.Join(cols, ", "))
	if tokenizer != "" {
		fmt.Fprintf(&b, ", tokenize = '%s'", tokenizer)
	}
	b.WriteString(")")
	return b.String()
}

// Populate emits an INSERT ... SELECT that copies cols from source into
// the FTS5 table name.
func Populate(name, source string, cols []string) string {
	colList := strings.Join(cols, ", ")
	return fmt.Sprintf("INSERT INTO %s(%s) SELECT %s FROM %s",
		quoting.DoubleQuote(name), colList, colList, quoting.DoubleQuote(source))
}

// SearchOptions controls the SELECT composed by Search. Columns is the
// FTS5 table's own column list in declaration order, needed to resolve a
// HighlightSpec/SnippetSpec column name to the positional index that
// highlight()/snippet() take.
type SearchOptions struct {
	RankOrder bool
	Columns   []string
	Highlight *HighlightSpec
	Snippet   *SnippetSpec
	Limit     int
}

// HighlightSpec parameterizes an highlight() projection.
type HighlightSpec struct {
	Column    string
	StartTag  string
	EndTag    string
}

// SnippetSpec parameterizes a snippet() projection.
type SnippetSpec struct {
	Column       string
	StartTag     string
	EndTag       string
	Ellipsis     string
	TokenContext int
}

// Search composes a SELECT against an FTS5 table using MATCH, with an
// optional rank ordering and an optional highlight()/snippet() projection.
// highlight()/snippet() take the target column as a 0-based positional
// index, not a column name, so HighlightSpec/SnippetSpec's Column is
// resolved against opts.Columns before being emitted.
func Search(name, matchExpr string, opts SearchOptions) string {
	projection := "*"
	if opts.Highlight != nil {
		h := opts.Highlight
		idx := columnIndex(opts.Columns, h.Column)
		projection = fmt.Sprintf("highlight(%s, %d, '%s', '%s')",
			quoting.DoubleQuote(name), idx, quoting.EscapeString(h.StartTag), quoting.EscapeString(h.EndTag))
	} else if opts.Snippet != nil {
		s := opts.Snippet
		idx := columnIndex(opts.Columns, s.Column)
		projection = fmt.Sprintf("snippet(%s, %d, '%s', '%s', '%s', %d)",
			quoting.DoubleQuote(name), idx,
			quoting.EscapeString(s.StartTag), quoting.EscapeString(s.EndTag), quoting.EscapeString(s.Ellipsis), s.TokenContext)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s WHERE %s MATCH '%s'", projection, quoting.DoubleQuote(name), quoting.DoubleQuote(name), quoting.EscapeString(matchExpr))
	if opts.RankOrder {
		b.WriteString(" ORDER BY rank")
	}
	if opts.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", opts.Limit)
	}
	return b.String()
}

// columnIndex resolves name to its 0-based position in columns. A name
// that isn't found resolves to -1, which highlight()/snippet() both treat
// as "every column" rather than rejecting the statement outright.
func columnIndex(columns []string, name string) int {
	for i, c := range columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}
