package tqljson1

import (
	"testing"

	"github.com/mrorigo/tuiql/internal/testutil"
	"github.com/mrorigo/tuiql/internal/tqldb"
)

func TestProbeDetectsJSON1Support(t *testing.T) {
	conn, err := tqldb.Open(":memory:", false)
	testutil.AssertNoError(t, err)
	defer conn.Close()

	if !Probe(conn) {
		t.Fatal("expected JSON1 to be available on a modern SQLite build")
	}
}

func TestExtractAndArray(t *testing.T) {
	testutil.AssertEqual(t, Extract("payload", "$.name"), `json_extract("payload", '$.name')`)
	testutil.AssertEqual(t, Array("1", "2"), "json_array(1, 2)")
}

func TestObjectPairsKeysAreQuoted(t *testing.T) {
	got := Object("name", "'Ada'", "age", "37")
	testutil.AssertEqual(t, got, "json_object('name', 'Ada', 'age', 37)")
}
