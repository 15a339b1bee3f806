package tqllint

import "testing"

func TestDeleteWithoutWhereIsDanger(t *testing.T) {
	f := Lint("DELETE FROM users", false, false)
	if !HasDanger(f) {
		t.Fatalf("expected Danger finding, got %v", f)
	}
}

func TestUpdateWithWhereIsClean(t *testing.T) {
	f := Lint("UPDATE users SET active = 0 WHERE id = 1", false, false)
	if HasDanger(f) {
		t.Fatalf("expected no Danger finding, got %v", f)
	}
}

func TestImplicitJoinWarns(t *testing.T) {
	f := Lint("SELECT * FROM a, b WHERE a.id = b.a_id", false, false)
	found := false
	for _, x := range f {
		if x.Severity == Warn {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a Warn finding, got %v", f)
	}
}

func TestDDLDuringActiveTransactionWarns(t *testing.T) {
	f := Lint("CREATE TABLE t(id INTEGER)", true, false)
	if len(f) != 1 || f[0].Severity != Warn {
		t.Fatalf("expected a single Warn finding, got %v", f)
	}
}

func TestDDLOutsideTransactionIsClean(t *testing.T) {
	f := Lint("CREATE TABLE t(id INTEGER)", false, false)
	if len(f) != 0 {
		t.Fatalf("expected no findings, got %v", f)
	}
}

func TestSelectStarInSnippetIsInfo(t *testing.T) {
	f := Lint("SELECT * FROM users", false, true)
	if len(f) != 1 || f[0].Severity != Info {
		t.Fatalf("expected a single Info finding, got %v", f)
	}
}

func TestSelectStarOutsideSnippetIsClean(t *testing.T) {
	f := Lint("SELECT * FROM users", false, false)
	if len(f) != 0 {
		t.Fatalf("expected no findings, got %v", f)
	}
}
