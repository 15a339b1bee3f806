package tqlsession

import (
	"bytes"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/mrorigo/tuiql/internal/appconfig"
	"github.com/mrorigo/tuiql/internal/testutil"
)

func newTestSession(t *testing.T) (*Session, *bytes.Buffer) {
	t.Helper()
	histPath := filepath.Join(t.TempDir(), "history.db")
	s, err := New(histPath, appconfig.Config{})
	testutil.AssertNoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	var buf bytes.Buffer
	s.SetOutput(&buf)
	return s, &buf
}

func TestDispatchOpenAndQuery(t *testing.T) {
	s, buf := newTestSession(t)
	testutil.AssertNoError(t, s.Dispatch(":open :memory:"))
	testutil.AssertNoError(t, s.Dispatch("CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)"))
	testutil.AssertNoError(t, s.Dispatch("INSERT INTO users (name) VALUES ('Ada')"))
	buf.Reset()
	testutil.AssertNoError(t, s.Dispatch("SELECT name FROM users"))
	if !strings.Contains(buf.String(), "Ada") {
		t.Fatalf("expected query output to contain Ada, got %q", buf.String())
	}
}

func TestDispatchUnknownCommandSuggestsClosest(t *testing.T) {
	s, _ := newTestSession(t)
	err := s.Dispatch(":tabels")
	testutil.AssertError(t, err)
	if !strings.Contains(err.Error(), "tables") {
		t.Fatalf("expected suggestion to include 'tables', got %v", err)
	}
}

func TestDispatchQuitReturnsSentinel(t *testing.T) {
	s, _ := newTestSession(t)
	err := s.Dispatch(":quit")
	if !IsQuit(err) {
		t.Fatalf("expected quit sentinel, got %v", err)
	}
}

func TestPromptReflectsTransactionAndReadonly(t *testing.T) {
	s, _ := newTestSession(t)
	testutil.AssertNoError(t, s.Dispatch(":open :memory:"))
	if strings.Contains(s.Prompt(), "*") {
		t.Fatalf("prompt should not show '*' before a transaction begins: %q", s.Prompt())
	}
	testutil.AssertNoError(t, s.Dispatch(":begin"))
	if !strings.Contains(s.Prompt(), "*") {
		t.Fatalf("prompt should show '*' during an active transaction: %q", s.Prompt())
	}
	testutil.AssertNoError(t, s.Dispatch(":rollback"))

	testutil.AssertNoError(t, s.Dispatch(":open "+filepath.Join(t.TempDir(), "ro.db")))
	if strings.Contains(s.Prompt(), "[RO]") {
		t.Fatalf("prompt should not show '[RO]' on a read-write connection: %q", s.Prompt())
	}
	testutil.AssertNoError(t, s.Dispatch(":ro"))
	if !strings.Contains(s.Prompt(), "[RO]") {
		t.Fatalf("prompt should show '[RO]' on a readonly connection: %q", s.Prompt())
	}
}

func TestRunSQLWithoutConnectionFails(t *testing.T) {
	s, _ := newTestSession(t)
	err := s.Dispatch("SELECT 1")
	testutil.AssertError(t, err)
}

func TestDangerousDeleteRefusedWithoutSafeOff(t *testing.T) {
	s, buf := newTestSession(t)
	testutil.AssertNoError(t, s.Dispatch(":open :memory:"))
	testutil.AssertNoError(t, s.Dispatch("CREATE TABLE users (id INTEGER PRIMARY KEY)"))
	testutil.AssertNoError(t, s.Dispatch("INSERT INTO users (id) VALUES (1)"))
	buf.Reset()
	testutil.AssertNoError(t, s.Dispatch("DELETE FROM users"))
	if !strings.Contains(buf.String(), "refusing") {
		t.Fatalf("expected refusal message, got %q", buf.String())
	}
}

func TestLevenshteinKnownDistances(t *testing.T) {
	testutil.AssertEqual(t, levenshtein("kitten", "sitting"), 3)
	testutil.AssertEqual(t, levenshtein("tables", "tabels"), 2)
	testutil.AssertEqual(t, levenshtein("", "abc"), 3)
	testutil.AssertEqual(t, levenshtein("same", "same"), 0)
}

func TestSnipCommandIsUnimplemented(t *testing.T) {
	s, _ := newTestSession(t)
	err := s.Dispatch(":snip save foo")
	testutil.AssertError(t, err)
	if !strings.Contains(err.Error(), "not implemented") {
		t.Fatalf("expected an unimplemented error, got %v", err)
	}
}

func TestFTS5CreatePopulateAndSearch(t *testing.T) {
	s, buf := newTestSession(t)
	testutil.AssertNoError(t, s.Dispatch(":open :memory:"))
	testutil.AssertNoError(t, s.Dispatch("CREATE TABLE articles (title TEXT, body TEXT)"))
	testutil.AssertNoError(t, s.Dispatch("INSERT INTO articles VALUES ('hello', 'a fox jumps')"))

	testutil.AssertNoError(t, s.Dispatch(":fts5 create docs title,body"))
	testutil.AssertNoError(t, s.Dispatch(":fts5 populate docs articles title,body"))

	buf.Reset()
	testutil.AssertNoError(t, s.Dispatch(":fts5 search docs fox --snippet=body"))
	if !strings.Contains(buf.String(), "jumps") {
		t.Fatalf("expected matched snippet text, got %q", buf.String())
	}
}

func TestFTS5ListReportsVirtualTables(t *testing.T) {
	s, buf := newTestSession(t)
	testutil.AssertNoError(t, s.Dispatch(":open :memory:"))
	testutil.AssertNoError(t, s.Dispatch(":fts5 create docs title,body"))
	buf.Reset()
	testutil.AssertNoError(t, s.Dispatch(":fts5 list"))
	if !strings.Contains(buf.String(), "docs") {
		t.Fatalf("expected 'docs' in fts5 list output, got %q", buf.String())
	}
}

func TestJSONExtractAndEach(t *testing.T) {
	s, buf := newTestSession(t)
	testutil.AssertNoError(t, s.Dispatch(":open :memory:"))
	testutil.AssertNoError(t, s.Dispatch(`CREATE TABLE docs (id INTEGER PRIMARY KEY, attrs TEXT)`))
	testutil.AssertNoError(t, s.Dispatch(`INSERT INTO docs (attrs) VALUES ('{"color":"red","tags":["a","b"]}')`))

	buf.Reset()
	testutil.AssertNoError(t, s.Dispatch(":json extract docs attrs $.color"))
	if !strings.Contains(buf.String(), "red") {
		t.Fatalf("expected extracted value 'red', got %q", buf.String())
	}

	buf.Reset()
	testutil.AssertNoError(t, s.Dispatch(":json each docs attrs"))
	if !strings.Contains(buf.String(), "color") {
		t.Fatalf("expected a 'color' key row, got %q", buf.String())
	}
}

func TestERDFocusRendersSingleTable(t *testing.T) {
	s, buf := newTestSession(t)
	testutil.AssertNoError(t, s.Dispatch(":open :memory:"))
	testutil.AssertNoError(t, s.Dispatch("CREATE TABLE a (id INTEGER PRIMARY KEY)"))
	testutil.AssertNoError(t, s.Dispatch("CREATE TABLE b (id INTEGER PRIMARY KEY, a_id INTEGER REFERENCES a(id))"))
	buf.Reset()
	testutil.AssertNoError(t, s.Dispatch(":erd a"))
	if !strings.HasPrefix(buf.String(), "a (") {
		t.Fatalf("expected focused ERD output for table 'a', got %q", buf.String())
	}
}

func TestCommandNamesSortedAndHideQuit(t *testing.T) {
	s, _ := newTestSession(t)
	names := s.CommandNames()
	for _, n := range names {
		if n == "quit" {
			t.Fatalf("quit should be hidden from command names")
		}
	}
	if len(names) == 0 {
		t.Fatal("expected a non-empty command list")
	}
	if !sort.StringsAreSorted(names) {
		t.Fatalf("expected command names in sorted order, got %v", names)
	}
}
