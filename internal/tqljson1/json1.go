// Package tqljson1 composes JSON1-extension SQL fragments as text, the
// same way tqlfts5 composes FTS5 fragments: apart from Probe, no connection
// is involved, so the helpers are pure and testable on their own.
package tqljson1

import (
	"fmt"
	"strings"

	"github.com/mrorigo/tuiql/internal/quoting"
	"github.com/mrorigo/tuiql/internal/tqldb"
)

// ProbeStatement is the statement Probe runs to detect JSON1 support.
const ProbeStatement = "SELECT json('1')"

// Probe runs ProbeStatement against conn and reports whether the JSON1
// extension is available. It keeps no state: the result is not cached, so
// every call runs the probe again.
func Probe(conn *tqldb.Connection) bool {
	_, err := conn.Execute(ProbeStatement)
	return err == nil
}

// Extract composes a json_extract(column, path) expression.
func Extract(column, path string) string {
	return fmt.Sprintf("json_extract(%s, '%s')", quoting.DoubleQuote(column), quoting.EscapeString(path))
}

// Each composes a json_each(column[, path]) table-valued-function call
// suitable for use in a FROM clause.
func Each(column string, path string) string {
	if path == "" {
		return fmt.Sprintf("json_each(%s)", quoting.DoubleQuote(column))
	}
	return fmt.Sprintf("json_each(%s, '%s')", quoting.DoubleQuote(column), quoting.EscapeString(path))
}

// Tree composes a json_tree(column[, path]) table-valued-function call.
func Tree(column string, path string) string {
	if path == "" {
		return fmt.Sprintf("json_tree(%s)", quoting.DoubleQuote(column))
	}
	return fmt.Sprintf("json_tree(%s, '%s')", quoting.DoubleQuote(column), quoting.EscapeString(path))
}

// Array composes a json_array(expr, ...) expression.
func Array(exprs ...string) string {
	return fmt.Sprintf("json_array(%s)", strings.Join(exprs, ", "))
}

// Object composes a json_object(key, expr, ...) expression. pairs must
// have an even length; keys are quoted string literals.
func Object(pairs ...string) string {
	var b strings.Builder
	b.WriteString("json_object(")
	for i := 0; i < len(pairs); i += 2 {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "'%s', %s", quoting.EscapeString(pairs[i]), pairs[i+1])
	}
	b.WriteString(")")
	return b.String()
}
