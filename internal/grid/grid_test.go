package grid

import "testing"

func TestCellID(t *testing.T) {
	if got := CellID(0, 0); got != "A0" {
		t.Fatalf("expected A0, got %q", got)
	}
	if got := CellID(25, 25); got != "Z25" {
		t.Fatalf("expected Z25, got %q", got)
	}
}

func TestProviderDeterminism(t *testing.T) {
	monuments := []string{"launch_site", "airfield"}
	a := NewProvider(42, 26, monuments)
	b := NewProvider(42, 26, monuments)

	if len(a.Cells()) != 26*26 {
		t.Fatalf("expected %d cells, got %d", 26*26, len(a.Cells()))
	}
	for _, c := range a.Cells() {
		other := b.Get(c.ID)
		if other == nil {
			t.Fatalf("cell %q missing from second grid", c.ID)
		}
		if c.Badlands != other.Badlands || c.Monument != other.Monument {
			t.Fatalf("layout diverged at %q: %+v vs %+v", c.ID, c, other)
		}
	}
}

func TestProviderClassification(t *testing.T) {
	p := NewProvider(42, 26, []string{"launch_site", "airfield"})

	badlands, placed := 0, map[string]int{}
	for _, c := range p.Cells() {
		if c.Badlands {
			badlands++
			if c.Monument != "" {
				t.Fatalf("monument %q placed in badlands cell %q", c.Monument, c.ID)
			}
		}
		if c.Monument != "" {
			placed[c.Monument]++
		}
	}
	if badlands == 0 {
		t.Fatal("expected some badlands cells")
	}
	if placed["launch_site"] != 1 || placed["airfield"] != 1 {
		t.Fatalf("expected each monument placed exactly once, got %v", placed)
	}
}

func TestProviderSizeClamp(t *testing.T) {
	p := NewProvider(1, 100, nil)
	if len(p.Cells()) != 26*26 {
		t.Fatalf("expected size clamped to 26, got %d cells", len(p.Cells()))
	}
	if p.Get("A26") != nil {
		t.Fatal("row 26 must not exist")
	}
}

func TestAdjacent(t *testing.T) {
	p := NewProvider(1, 4, nil)

	cases := []struct {
		a, b string
		want bool
	}{
		{"A0", "A1", true},
		{"A0", "B0", true},
		{"A0", "B1", false}, // diagonal
		{"A0", "A0", false},
		{"A0", "C0", false},
		{"A0", "nope", false},
	}
	for _, tc := range cases {
		if got := p.Adjacent(tc.a, tc.b); got != tc.want {
			t.Errorf("Adjacent(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}
