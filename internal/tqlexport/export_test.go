package tqlexport

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/mrorigo/tuiql/internal/testutil"
	"github.com/mrorigo/tuiql/internal/tqldb"
)

func sampleResult() tqldb.Result {
	return tqldb.RowsResult(
		[]string{"id", "name"},
		[][]tqldb.Cell{
			{tqldb.IntegerCell(1), tqldb.TextCell("Ada")},
			{tqldb.IntegerCell(2), tqldb.NullCell()},
		},
		time.Millisecond,
	)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	testutil.AssertNoError(t, Write(&buf, sampleResult(), CSV, Options{}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	testutil.AssertEqual(t, len(lines), 3)
	testutil.AssertEqual(t, lines[0], "id,name")
}

func TestWriteJSONPretty(t *testing.T) {
	var buf bytes.Buffer
	testutil.AssertNoError(t, Write(&buf, sampleResult(), JSON, Options{PrettyJSON: true}))
	if !strings.Contains(buf.String(), "\n  {") {
		t.Fatalf("expected indented JSON, got %s", buf.String())
	}
}

func TestWriteMarkdownEmptyResult(t *testing.T) {
	var buf bytes.Buffer
	empty := tqldb.RowsResult([]string{"id"}, nil, 0)
	testutil.AssertNoError(t, Write(&buf, empty, Markdown, Options{}))
	testutil.AssertEqual(t, strings.TrimSpace(buf.String()), "(0 rows)")
}

func TestWriteChangesResultIgnoresFormat(t *testing.T) {
	var buf bytes.Buffer
	changes := tqldb.ChangesResult(4, time.Millisecond)
	testutil.AssertNoError(t, Write(&buf, changes, CSV, Options{}))
	testutil.AssertEqual(t, strings.TrimSpace(buf.String()), "4 rows affected")
}
