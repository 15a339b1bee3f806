// Package tqllint is the SQL analyzer: a pure pass over a parsed
// statement's text that emits warnings without ever blocking execution.
// The dispatcher decides what to do with Danger findings; the linter only
// classifies.
package tqllint

import (
	"regexp"
	"strings"
)

// Severity ranks a finding. Danger findings require explicit confirmation
// from the dispatcher unless the session has disabled the safety prompt.
type Severity int

const (
	Info Severity = iota
	Warn
	Danger
)

func (s Severity) String() string {
	switch s {
	case Danger:
		return "Danger"
	case Warn:
		return "Warn"
	default:
		return "Info"
	}
}

// Finding is one lint result against a single statement.
type Finding struct {
	Severity Severity
	Message  string
}

var (
	updateNoWhere = regexp.MustCompile(`(?is)^\s*UPDATE\s+\S+\s+SET\s+.*$`)
	hasWhere      = regexp.MustCompile(`(?is)\bWHERE\b`)
	implicitJoin  = regexp.MustCompile(`(?is)^\s*SELECT\b.*\bFROM\s+\S+\s*,\s*\S+.*\bWHERE\b`)
	ddlKeyword    = regexp.MustCompile(`(?is)^\s*(CREATE|ALTER|DROP)\b`)
	selectStar    = regexp.MustCompile(`(?is)^\s*SELECT\s+\*\s+FROM\b`)
)

// Lint inspects a single statement. txActive reports whether the session
// currently has a transaction open (needed for the DDL-during-tx warning);
// isSnippet reports whether the statement is being saved rather than run
// immediately (needed for the SELECT * info note).
func Lint(sql string, txActive bool, isSnippet bool) []Finding {
	var out []Finding

	trimmed := strings.TrimSpace(sql)
	upper := strings.ToUpper(trimmed)

	if strings.HasPrefix(upper, "UPDATE") && updateNoWhere.MatchString(trimmed) && !hasWhere.MatchString(trimmed) {
		out = append(out, Finding{Danger, "UPDATE with no WHERE clause affects every row"})
	}
	if strings.HasPrefix(upper, "DELETE") && !hasWhere.MatchString(trimmed) {
		out = append(out, Finding{Danger, "DELETE with no WHERE clause removes every row"})
	}

	if implicitJoin.MatchString(trimmed) {
		out = append(out, Finding{Warn, "comma-separated FROM with a WHERE predicate reads as an implicit join"})
	}

	if ddlKeyword.MatchString(trimmed) && txActive {
		out = append(out, Finding{Warn, "DDL statement executed inside an active transaction"})
	}

	if isSnippet && selectStar.MatchString(trimmed) {
		out = append(out, Finding{Info, "SELECT * in a saved snippet will silently pick up future columns"})
	}

	return dedupe(out)
}

func dedupe(in []Finding) []Finding {
	seen := make(map[string]bool, len(in))
	var out []Finding
	for _, f := range in {
		key := f.Severity.String() + "|" + f.Message
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out
}

// HasDanger reports whether any finding is Danger severity.
func HasDanger(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == Danger {
			return true
		}
	}
	return false
}
