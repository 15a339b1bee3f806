package tqlplan

import (
	"testing"
	"time"

	"github.com/mrorigo/tuiql/internal/testutil"
	"github.com/mrorigo/tuiql/internal/tqldb"
)

func rowsResult(rows [][4]interface{}) tqldb.Result {
	columns := []string{"id", "parent", "notused", "detail"}
	out := make([][]tqldb.Cell, len(rows))
	for i, r := range rows {
		out[i] = []tqldb.Cell{
			tqldb.IntegerCell(int64(r[0].(int))),
			tqldb.IntegerCell(int64(r[1].(int))),
			tqldb.IntegerCell(0),
			tqldb.TextCell(r[3].(string)),
		}
	}
	return tqldb.RowsResult(columns, out, time.Millisecond)
}

func TestBuildClassifiesScanAndSearch(t *testing.T) {
	res := rowsResult([][4]interface{}{
		{1, 0, 0, "SEARCH books USING INDEX idx_books_author (author_id=?)"},
		{2, 0, 0, "SCAN authors"},
	})
	roots := build(res, nil)
	testutil.AssertEqual(t, len(roots), 2)
	testutil.AssertEqual(t, roots[0].Kind, OpSearch)
	testutil.AssertEqual(t, roots[1].Kind, OpScan)
}

func TestBuildLinksChildrenToParent(t *testing.T) {
	res := rowsResult([][4]interface{}{
		{1, 0, 0, "SCAN a"},
		{2, 1, 0, "SUBQUERY 1"},
	})
	roots := build(res, nil)
	testutil.AssertEqual(t, len(roots), 1)
	testutil.AssertEqual(t, len(roots[0].Children), 1)
	testutil.AssertEqual(t, roots[0].Children[0].Kind, OpSubquery)
}

func TestRenderUsesTreeConnectors(t *testing.T) {
	res := rowsResult([][4]interface{}{
		{1, 0, 0, "SCAN a"},
		{2, 0, 0, "SCAN b"},
	})
	roots := build(res, nil)
	out := Render(roots)
	if !contains(out, "├── SCAN a") || !contains(out, "└── SCAN b") {
		t.Fatalf("unexpected render:\n%s", out)
	}
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && indexOf(s, sub) >= 0
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
