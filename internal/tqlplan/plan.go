// Package tqlplan parses EXPLAIN QUERY PLAN output into a forest and
// renders it as an ASCII tree. It also supports an "enhanced" mode that
// overlays a measured wall-clock elapsed time and per-node hints.
package tqlplan

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mrorigo/tuiql/internal/tqlcatalog"
	"github.com/mrorigo/tuiql/internal/tqldb"
)

// OpKind classifies a plan node by regex on its detail string.
type OpKind int

const (
	OpScan OpKind = iota
	OpSearch
	OpSubquery
	OpOther
)

func (k OpKind) String() string {
	switch k {
	case OpScan:
		return "SCAN"
	case OpSearch:
		return "SEARCH"
	case OpSubquery:
		return "SUBQUERY"
	default:
		return "OTHER"
	}
}

var (
	scanRE     = regexp.MustCompile(`^SCAN `)
	searchRE   = regexp.MustCompile(`^SEARCH .+ USING (INDEX|COVERING INDEX|INTEGER PRIMARY KEY)`)
	subqueryRE = regexp.MustCompile(`SUBQUERY`)
	tableRE    = regexp.MustCompile(`(?:SCAN|SEARCH) (\S+)`)
	indexRE    = regexp.MustCompile(`USING (?:COVERING )?INDEX (\S+)`)
)

// Node is one row of EXPLAIN QUERY PLAN plus its derived fields.
type Node struct {
	ID        int
	ParentID  int
	Detail    string
	Kind      OpKind
	Table     string
	Index     string
	Elapsed   time.Duration
	EstRows   int64
	HasEst    bool
	MayNeedIndex bool
	Hint      string
	Children  []*Node
}

func classify(detail string) OpKind {
	switch {
	case searchRE.MatchString(detail):
		return OpSearch
	case scanRE.MatchString(detail):
		return OpScan
	case subqueryRE.MatchString(detail):
		return OpSubquery
	default:
		return OpOther
	}
}

func extractTable(detail string) string {
	if m := tableRE.FindStringSubmatch(detail); m != nil {
		return m[1]
	}
	return ""
}

func extractIndex(detail string) string {
	if m := indexRE.FindStringSubmatch(detail); m != nil {
		return m[1]
	}
	return ""
}

// Parse runs EXPLAIN QUERY PLAN against conn and builds the forest. cat,
// if non-nil, is used to flag a full scan that has an alternative index
// available on the same table.
func Parse(conn *tqldb.Connection, sql string, cat *tqlcatalog.Catalog) ([]*Node, error) {
	res, err := conn.Execute("EXPLAIN QUERY PLAN " + sql)
	if err != nil {
		return nil, err
	}
	return build(res, cat), nil
}

func build(res tqldb.Result, cat *tqlcatalog.Catalog) []*Node {
	byID := make(map[int]*Node)
	var order []int

	for _, row := range res.Rows {
		id := int(row[0].Int)
		parent := int(row[1].Int)
		detail := row[3].Text

		n := &Node{ID: id, ParentID: parent, Detail: detail, Kind: classify(detail)}
		n.Table = extractTable(detail)
		n.Index = extractIndex(detail)
		if n.Kind == OpScan && cat != nil {
			n.MayNeedIndex = hasAlternativeIndex(cat, n.Table)
			if n.MayNeedIndex {
				n.Hint = "may need index"
			}
		}
		byID[id] = n
		order = append(order, id)
	}

	var roots []*Node
	for _, id := range order {
		n := byID[id]
		if n.ParentID == 0 {
			roots = append(roots, n)
			continue
		}
		if parent, ok := byID[n.ParentID]; ok {
			parent.Children = append(parent.Children, n)
		} else {
			roots = append(roots, n)
		}
	}
	return roots
}

func hasAlternativeIndex(cat *tqlcatalog.Catalog, table string) bool {
	t, ok := cat.Table(table)
	if !ok {
		return false
	}
	for _, idx := range t.Indexes {
		if idx.Origin != "pk" {
			return true
		}
	}
	return false
}

// rowsThreshold is the estimated-row-count floor past which an enhanced
// scan node is flagged as dominating elapsed time.
const rowsThreshold = 10000

// Enhanced runs sql under a measured timer and attaches elapsed/estimated
// row counts plus a "dominated elapsed time" hint where applicable.
func Enhanced(conn *tqldb.Connection, sql string, cat *tqlcatalog.Catalog) ([]*Node, time.Duration, error) {
	roots, err := Parse(conn, sql, cat)
	if err != nil {
		return nil, 0, err
	}

	start := time.Now()
	if _, err := conn.Execute(sql); err != nil {
		return nil, 0, err
	}
	elapsed := time.Since(start)

	visit(roots, func(n *Node) {
		n.Elapsed = elapsed
		if cat == nil || n.Table == "" {
			return
		}
		if t, ok := cat.Table(n.Table); ok && t.RowCountKnown {
			n.EstRows = t.RowCount
			n.HasEst = true
			if n.Kind == OpScan && t.RowCount > rowsThreshold {
				n.Hint = "this scan dominated elapsed time"
			}
		}
	})

	return roots, elapsed, nil
}

func visit(nodes []*Node, fn func(*Node)) {
	for _, n := range nodes {
		fn(n)
		visit(n.Children, fn)
	}
}

// Render draws the forest as an ASCII tree using ├── / └── connectors,
// preserving the original row order among siblings.
func Render(roots []*Node) string {
	var b strings.Builder
	for i, r := range roots {
		renderNode(&b, r, "", i == len(roots)-1)
	}
	return b.String()
}

func renderNode(b *strings.Builder, n *Node, prefix string, last bool) {
	connector := "├── "
	childPrefix := prefix + "│   "
	if last {
		connector = "└── "
		childPrefix = prefix + "    "
	}

	fmt.Fprintf(b, "%s%s%s [%s]", prefix, connector, n.Detail, n.Kind)
	if n.Hint != "" {
		fmt.Fprintf(b, " (%s)", n.Hint)
	}
	if n.Elapsed > 0 {
		fmt.Fprintf(b, " elapsed=%s", n.Elapsed)
	}
	b.WriteByte('\n')

	for i, c := range n.Children {
		renderNode(b, c, childPrefix, i == len(n.Children)-1)
	}
}
