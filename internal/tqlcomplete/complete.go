// Package tqlcomplete is the completion engine: a pure, idempotent
// function from a prefix and a catalog snapshot to an ordered suggestion
// list. It performs no I/O, so it is testable without a connection.
package tqlcomplete

import (
	"sort"
	"strings"

	"github.com/mrorigo/tuiql/internal/tqlcatalog"
)

// keywords is the reserved-word set offered at the start of a statement.
var keywords = []string{
	"ALTER", "AND", "AS", "ASC", "ATTACH", "BEGIN", "BETWEEN", "BY", "CASE",
	"COLLATE", "COLUMN", "COMMIT", "CREATE", "CROSS", "DEFAULT", "DELETE",
	"DESC", "DETACH", "DISTINCT", "DROP", "ELSE", "END", "ESCAPE", "EXCEPT",
	"EXISTS", "EXPLAIN", "FOREIGN", "FROM", "FULL", "GLOB", "GROUP", "HAVING",
	"IN", "INDEX", "INNER", "INSERT", "INTERSECT", "INTO", "IS", "ISNULL",
	"JOIN", "KEY", "LEFT", "LIKE", "LIMIT", "NATURAL", "NOT", "NOTNULL",
	"NULL", "OFFSET", "ON", "OR", "ORDER", "OUTER", "PRAGMA", "PRIMARY",
	"REFERENCES", "RIGHT", "ROLLBACK", "SELECT", "SET", "TABLE", "TEMP",
	"THEN", "TRANSACTION", "TRIGGER", "UNION", "UNIQUE", "UPDATE", "USING",
	"VALUES", "VIEW", "WHEN", "WHERE", "WITH",
}

// functions is the built-in-function set, rendered with a trailing paren
// so the caret lands inside it once inserted.
var functions = []string{
	"ABS()", "AVG()", "CAST()", "COALESCE()", "COUNT()", "DATE()",
	"DATETIME()", "GLOB()", "GROUP_CONCAT()", "IFNULL()", "INSTR()",
	"JSON()", "JSON_ARRAY()", "JSON_EACH()", "JSON_EXTRACT()", "JSON_OBJECT()",
	"JSON_TREE()", "LENGTH()", "LIKE()", "LOWER()", "LTRIM()", "MAX()",
	"MIN()", "NULLIF()", "PRINTF()", "RANDOM()", "REPLACE()", "ROUND()",
	"RTRIM()", "STRFTIME()", "SUBSTR()", "SUM()", "TIME()", "TOTAL()",
	"TRIM()", "TYPEOF()", "UNICODE()", "UPPER()", "ZEROBLOB()", "HIGHLIGHT()",
	"SNIPPET()", "RANK()",
}

// pragmas is the pragma-name set, offered when the prefix begins with
// "PRAGMA ".
var pragmas = []string{
	"foreign_keys", "journal_mode", "page_size", "table_info", "index_list",
	"index_info", "foreign_key_list", "cache_size", "synchronous",
	"temp_store", "user_version", "application_id", "integrity_check",
}

// Suggest returns an ordered, de-duplicated suggestion list for prefix
// against cat. Matching is case-insensitive; an exact-prefix match sorts
// ahead of a case-insensitive one, then ties break alphabetically.
func Suggest(prefix string, cat *tqlcatalog.Catalog) []string {
	upper := strings.ToUpper(strings.TrimSpace(prefix))

	if strings.HasPrefix(upper, "PRAGMA ") {
		arg := strings.TrimSpace(prefix[len("PRAGMA "):])
		return rank(pragmas, arg)
	}

	var pool []string
	pool = append(pool, keywords...)
	pool = append(pool, functions...)
	if cat != nil {
		pool = append(pool, tableAndColumnNames(prefix, cat)...)
	}
	return rank(pool, prefix)
}

// tableAndColumnNames unions every table name with every column name of
// every table, qualifying columns as table.column once the prefix itself
// contains a dot.
func tableAndColumnNames(prefix string, cat *tqlcatalog.Catalog) []string {
	if idx := strings.LastIndexByte(prefix, '.'); idx >= 0 {
		tableName := prefix[:idx]
		t, ok := cat.Table(tableName)
		if !ok {
			return nil
		}
		out := make([]string, 0, len(t.Columns))
		for _, c := range t.Columns {
			out = append(out, tableName+"."+c.Name)
		}
		return out
	}

	var out []string
	for _, t := range cat.Tables {
		out = append(out, t.Name)
		for _, c := range t.Columns {
			out = append(out, c.Name)
		}
	}
	return out
}

// rank filters pool to items sharing prefix case-insensitively, then sorts
// exact-case matches before case-folded-only matches, then alphabetically.
func rank(pool []string, prefix string) []string {
	lowerPrefix := strings.ToLower(prefix)
	seen := make(map[string]bool)
	var exact, folded []string

	for _, item := range pool {
		if !strings.HasPrefix(strings.ToLower(item), lowerPrefix) {
			continue
		}
		if seen[item] {
			continue
		}
		seen[item] = true
		if strings.HasPrefix(item, prefix) {
			exact = append(exact, item)
		} else {
			folded = append(folded, item)
		}
	}

	sort.Strings(exact)
	sort.Strings(folded)
	return append(exact, folded...)
}
