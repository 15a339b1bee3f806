// Package tqlschema derives the entity-relationship graph from a catalog
// snapshot and renders it as a deterministic text document.
package tqlschema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mrorigo/tuiql/internal/tqlcatalog"
)

// Node is one table's derived graph fields.
type Node struct {
	Name        string
	InDegree    int
	OutDegree   int
	ComponentID int
	PartOfCycle bool
}

// Graph is the full derived ER graph over a catalog snapshot.
type Graph struct {
	Nodes map[string]*Node
	// Edges maps a child table to the parent tables its foreign keys
	// reference.
	Edges map[string][]string
}

// Build derives in/out-degree, weakly connected components, and cycle
// membership from cat.
func Build(cat *tqlcatalog.Catalog) *Graph {
	g := &Graph{Nodes: map[string]*Node{}, Edges: map[string][]string{}}

	for _, t := range cat.Tables {
		g.Nodes[t.Name] = &Node{Name: t.Name}
	}
	for _, t := range cat.Tables {
		for _, fk := range t.ForeignKeys {
			if _, ok := g.Nodes[fk.ToTable]; !ok {
				continue
			}
			g.Edges[t.Name] = append(g.Edges[t.Name], fk.ToTable)
			g.Nodes[fk.ToTable].InDegree++
			g.Nodes[t.Name].OutDegree++
		}
	}

	g.assignComponents()
	g.markCycles()
	return g
}

// assignComponents computes weakly connected components by treating every
// edge as undirected, union-find style via BFS.
func (g *Graph) assignComponents() {
	undirected := map[string][]string{}
	for from, tos := range g.Edges {
		for _, to := range tos {
			undirected[from] = append(undirected[from], to)
			undirected[to] = append(undirected[to], from)
		}
	}

	names := sortedNames(g.Nodes)
	visited := map[string]bool{}
	compID := 0
	for _, name := range names {
		if visited[name] {
			continue
		}
		queue := []string{name}
		visited[name] = true
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			g.Nodes[cur].ComponentID = compID
			for _, n := range undirected[cur] {
				if !visited[n] {
					visited[n] = true
					queue = append(queue, n)
				}
			}
		}
		compID++
	}
}

// markCycles uses a three-color DFS (white/gray/black) to detect cycles
// and flags every table that participates in one.
func (g *Graph) markCycles() {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	inCycle := map[string]bool{}

	var dfs func(node string, stack []string)
	dfs = func(node string, stack []string) {
		color[node] = gray
		stack = append(stack, node)
		for _, next := range g.Edges[node] {
			switch color[next] {
			case white:
				dfs(next, stack)
			case gray:
				// next is an ancestor on the current stack: every node
				// from next to the top of stack is part of the cycle.
				start := indexOf(stack, next)
				for _, n := range stack[start:] {
					inCycle[n] = true
				}
			}
		}
		color[node] = black
	}

	for _, name := range sortedNames(g.Nodes) {
		if color[name] == white {
			dfs(name, nil)
		}
	}
	for name, flag := range inCycle {
		g.Nodes[name].PartOfCycle = flag
	}
}

func indexOf(stack []string, name string) int {
	for i, s := range stack {
		if s == name {
			return i
		}
	}
	return 0
}

func sortedNames(nodes map[string]*Node) []string {
	out := make([]string, 0, len(nodes))
	for n := range nodes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// RenderOptions controls ERD rendering. Focus, when non-empty, restricts
// the document to a single table and its immediate relationships instead
// of the full highly-connected/independent grouping.
type RenderOptions struct {
	Unicode bool
	Focus   string
}

// Render produces a deterministic text document: tables grouped into
// "highly connected" (in-degree >= 2 or cycle member) and "independent",
// each group's tables sorted lexicographically, columns in declared order,
// relationships listed below each table. With opts.Focus set, it renders
// only that table instead.
func Render(cat *tqlcatalog.Catalog, g *Graph, opts RenderOptions) string {
	arrow := "->"
	bullet := "-"
	if opts.Unicode {
		arrow = "→"
		bullet = "•"
	}

	if opts.Focus != "" {
		return renderFocus(cat, g, opts.Focus, bullet, arrow)
	}

	var highlyConnected, independent []string
	for _, name := range sortedNames(g.Nodes) {
		n := g.Nodes[name]
		if n.InDegree >= 2 || n.PartOfCycle {
			highlyConnected = append(highlyConnected, name)
		} else {
			independent = append(independent, name)
		}
	}

	var b strings.Builder
	writeGroup(&b, "Highly Connected", highlyConnected, cat, g, bullet, arrow)
	writeGroup(&b, "Independent", independent, cat, g, bullet, arrow)
	return b.String()
}

func writeGroup(b *strings.Builder, title string, names []string, cat *tqlcatalog.Catalog, g *Graph, bullet, arrow string) {
	if len(names) == 0 {
		return
	}
	fmt.Fprintf(b, "== %s ==\n", title)
	for _, name := range names {
		t, ok := cat.Table(name)
		if !ok {
			continue
		}
		n := g.Nodes[name]
		fmt.Fprintf(b, "%s (in=%d out=%d", name, n.InDegree, n.OutDegree)
		if n.PartOfCycle {
			b.WriteString(", cycle")
		}
		b.WriteString(")\n")
		for _, c := range t.Columns {
			fmt.Fprintf(b, "  %s %s\n", bullet, c.Name)
		}
		for _, fk := range t.ForeignKeys {
			fmt.Fprintf(b, "  %s %s %s(%s)\n", bullet, arrow, fk.ToTable, strings.Join(fk.ToColumn, ", "))
		}
	}
	b.WriteByte('\n')
}

// renderFocus documents a single table: its own columns and outgoing
// foreign keys, then every other table whose foreign key points back at it.
func renderFocus(cat *tqlcatalog.Catalog, g *Graph, focus, bullet, arrow string) string {
	t, ok := cat.Table(focus)
	if !ok {
		return fmt.Sprintf("no such table %q\n", focus)
	}
	n := g.Nodes[focus]

	var b strings.Builder
	fmt.Fprintf(&b, "%s (in=%d out=%d", focus, n.InDegree, n.OutDegree)
	if n.PartOfCycle {
		b.WriteString(", cycle")
	}
	b.WriteString(")\n")
	for _, c := range t.Columns {
		fmt.Fprintf(&b, "  %s %s\n", bullet, c.Name)
	}
	for _, fk := range t.ForeignKeys {
		fmt.Fprintf(&b, "  %s %s %s(%s)\n", bullet, arrow, fk.ToTable, strings.Join(fk.ToColumn, ", "))
	}
	for _, other := range sortedNames(g.Nodes) {
		if other == focus {
			continue
		}
		for _, to := range g.Edges[other] {
			if to == focus {
				fmt.Fprintf(&b, "  %s %s %s (referenced by)\n", bullet, arrow, other)
			}
		}
	}
	return b.String()
}
