package tqldb

import (
	"strings"
	"testing"

	"github.com/mrorigo/tuiql/internal/kernelerr"
	"github.com/mrorigo/tuiql/internal/testutil"
)

func openMemory(t *testing.T) *Connection {
	t.Helper()
	conn, err := Open(":memory:", false)
	testutil.AssertNoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestOpenAppliesPragmas(t *testing.T) {
	conn := openMemory(t)
	res, err := conn.Execute("PRAGMA foreign_keys")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(res.Rows), 1)
	testutil.AssertEqual(t, res.Rows[0][0].Int, int64(1))
}

func TestExecuteClassifiesRowsVsChanges(t *testing.T) {
	conn := openMemory(t)

	if _, err := conn.Execute("CREATE TABLE t(id INTEGER PRIMARY KEY, name TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}

	res, err := conn.Execute("INSERT INTO t(name) VALUES ('a'), ('b')")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, res.Kind, ResultChanges)
	testutil.AssertEqual(t, res.Changes, int64(2))

	res, err = conn.Execute("SELECT id, name FROM t ORDER BY id")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, res.Kind, ResultRows)
	testutil.AssertEqual(t, len(res.Rows), 2)
	testutil.AssertEqual(t, res.Rows[0][1].Text, "a")
}

func TestTransactionStateMachine(t *testing.T) {
	conn := openMemory(t)

	if err := conn.Commit(); err != kernelerr.ErrNoActiveTransaction {
		t.Fatalf("commit with no tx: got %v", err)
	}
	if err := conn.Rollback(); err != kernelerr.ErrNoActiveTransaction {
		t.Fatalf("rollback with no tx: got %v", err)
	}

	testutil.AssertNoError(t, conn.Begin())
	testutil.AssertEqual(t, conn.TxState(), TxActive)

	if err := conn.Begin(); err != kernelerr.ErrNestedTransaction {
		t.Fatalf("double begin: got %v", err)
	}

	testutil.AssertNoError(t, conn.Commit())
	testutil.AssertEqual(t, conn.TxState(), TxNone)
}

func TestCloseRefusesWithActiveTransaction(t *testing.T) {
	conn, err := Open(":memory:", false)
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, conn.Begin())

	if err := conn.Close(); err != kernelerr.ErrUnflushedTransaction {
		t.Fatalf("close with active tx: got %v", err)
	}
	testutil.AssertNoError(t, conn.Rollback())
	testutil.AssertNoError(t, conn.Close())
}

func TestReadonlyRejectsWrites(t *testing.T) {
	conn := openMemory(t)
	defer conn.Close()

	ro, err := Open(conn.Path(), true)
	if err == nil {
		defer ro.Close()
		_, err = ro.Execute("CREATE TABLE x(id INTEGER)")
		if err != kernelerr.ErrReadonly {
			t.Fatalf("expected ErrReadonly, got %v", err)
		}
	}
}

func TestExecuteBatchStopsAtFirstError(t *testing.T) {
	conn := openMemory(t)

	idx, err := conn.ExecuteBatch("CREATE TABLE t(id INTEGER); INSERT INTO nosuchtable VALUES (1); CREATE TABLE u(id INTEGER)")
	if err == nil {
		t.Fatal("expected an error from the batch")
	}
	testutil.AssertEqual(t, idx, 1)
}

func TestSplitStatementsRespectsQuotedSemicolons(t *testing.T) {
	stmts := splitStatements(`INSERT INTO t VALUES ('a;b'); SELECT 1`)
	testutil.AssertEqual(t, len(stmts), 2)
	if !strings.Contains(stmts[0], "a;b") {
		t.Fatalf("quoted semicolon was split: %q", stmts[0])
	}
}

func TestBlobCellDisplay(t *testing.T) {
	small := BlobCell([]byte{0x01, 0x02})
	if got := small.String(); got != "x'0102'" {
		t.Fatalf("small blob: got %q", got)
	}

	big := BlobCell(make([]byte, 32))
	if got := big.String(); got != "BLOB(32) bytes" {
		t.Fatalf("big blob: got %q", got)
	}
}
