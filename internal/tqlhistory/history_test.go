package tqlhistory

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/mrorigo/tuiql/internal/testutil"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	testutil.AssertNoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAddAndRecentOrdersNewestFirst(t *testing.T) {
	s := openTemp(t)

	s.Add(Entry{DatabaseName: "app.db", Query: "SELECT 1", ExecutedAt: time.Now().Add(-time.Minute), Success: true})
	s.Add(Entry{DatabaseName: "app.db", Query: "SELECT 2", ExecutedAt: time.Now(), Success: true})

	entries, err := s.Recent("app.db", 10)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(entries), 2)
	testutil.AssertEqual(t, entries[0].Query, "SELECT 2")
}

func TestRecentFiltersByDatabase(t *testing.T) {
	s := openTemp(t)
	s.Add(Entry{DatabaseName: "a.db", Query: "SELECT 1", ExecutedAt: time.Now(), Success: true})
	s.Add(Entry{DatabaseName: "b.db", Query: "SELECT 2", ExecutedAt: time.Now(), Success: true})

	entries, err := s.Recent("a.db", 10)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(entries), 1)
	testutil.AssertEqual(t, entries[0].DatabaseName, "a.db")
}

func TestClearRemovesEntries(t *testing.T) {
	s := openTemp(t)
	s.Add(Entry{DatabaseName: "a.db", Query: "SELECT 1", ExecutedAt: time.Now(), Success: true})
	testutil.AssertNoError(t, s.Clear(""))

	entries, err := s.Recent("", 10)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(entries), 0)
}

func TestHistoryIsAppendOnlyViaAdd(t *testing.T) {
	s := openTemp(t)
	for i := 0; i < 5; i++ {
		s.Add(Entry{DatabaseName: "a.db", Query: "SELECT 1", ExecutedAt: time.Now(), Success: true})
	}
	entries, err := s.Recent("a.db", 100)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(entries), 5)
}
