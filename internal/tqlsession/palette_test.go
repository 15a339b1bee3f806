package tqlsession

import (
	"testing"

	"github.com/mrorigo/tuiql/internal/testutil"
)

func TestClosestCommandsRanksByDistance(t *testing.T) {
	candidates := []string{"tables", "diff", "help", "hist"}
	got := closestCommands("tabels", candidates)
	testutil.AssertEqual(t, got[0], "tables")
}

func TestClosestCommandsCapsAtThree(t *testing.T) {
	candidates := []string{"a", "b", "c", "d", "e"}
	got := closestCommands("x", candidates)
	testutil.AssertEqual(t, len(got), 3)
}
