package users

import "testing"

func TestMemoryDirectory(t *testing.T) {
	d := NewMemoryDirectory()

	if d.IsOnline("u1") {
		t.Fatal("unknown user must not be online")
	}
	d.SetOnline("u1", true)
	if !d.IsOnline("u1") {
		t.Fatal("expected u1 online")
	}

	d.SetFaction("u1", "reds")
	if got := d.Faction("u1"); got != "reds" {
		t.Fatalf("expected reds, got %q", got)
	}
	d.ClearFaction("u1")
	if got := d.Faction("u1"); got != "" {
		t.Fatalf("expected cleared affiliation, got %q", got)
	}
}
