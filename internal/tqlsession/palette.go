package tqlsession

import (
	"sort"
	"strings"
)

// closestCommands ranks the closest three command names to name by edit
// distance, for UnknownCommand suggestions and the ":help <partial>"
// fuzzy filter.
func closestCommands(name string, candidates []string) []string {
	type scored struct {
		name string
		dist int
	}
	ranked := make([]scored, 0, len(candidates))
	for _, n := range candidates {
		ranked = append(ranked, scored{n, levenshtein(strings.ToLower(name), strings.ToLower(n))})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].dist < ranked[j].dist })

	out := make([]string, 0, 3)
	for i := 0; i < len(ranked) && i < 3; i++ {
		out = append(out, ranked[i].name)
	}
	return out
}

// levenshtein calculates the edit distance between two strings.
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
		matrix[i][0] = i
	}
	for j := 0; j <= len(b); j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			matrix[i][j] = minInt(
				matrix[i-1][j]+1,
				matrix[i][j-1]+1,
				matrix[i-1][j-1]+cost,
			)
		}
	}
	return matrix[len(a)][len(b)]
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
