package war

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rossicka/imperium/internal/events"
)

const testCassusBelli = "they raided our northern outposts and burned the grain stores"

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(events.NewBus(), 50)
}

func TestDeclare(t *testing.T) {
	r := newTestRegistry(t)

	w, err := r.Declare("reds", "blues", testCassusBelli)
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	if w.ID == "" {
		t.Fatal("expected a generated war id")
	}
	if !w.Active() {
		t.Fatalf("expected active war, got %v", w.State)
	}
	if !r.IsAtWar("blues", "reds") {
		t.Fatal("expected IsAtWar to match the unordered pair")
	}
}

func TestDeclareSelfWarFails(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Declare("reds", "reds", testCassusBelli)
	if !errors.Is(err, ErrInvalidPair) {
		t.Fatalf("expected ErrInvalidPair, got %v", err)
	}
}

func TestDeclareDuplicateFails(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.Declare("reds", "blues", testCassusBelli); err != nil {
		t.Fatalf("declare: %v", err)
	}
	// Same pair, either direction, while the first is non-terminal.
	if _, err := r.Declare("reds", "blues", testCassusBelli); !errors.Is(err, ErrDuplicateWar) {
		t.Fatalf("expected ErrDuplicateWar, got %v", err)
	}
	if _, err := r.Declare("blues", "reds", testCassusBelli); !errors.Is(err, ErrDuplicateWar) {
		t.Fatalf("expected ErrDuplicateWar for reversed pair, got %v", err)
	}

	// Once terminal, a new war may be declared.
	if _, err := r.End("reds", "blues", StateEndedTreaty); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := r.Declare("reds", "blues", testCassusBelli); err != nil {
		t.Fatalf("declare after treaty: %v", err)
	}
}

func TestDeclareShortCassusBelliFails(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Declare("reds", "blues", "because")
	if !errors.Is(err, ErrCassusBelliTooShort) {
		t.Fatalf("expected ErrCassusBelliTooShort, got %v", err)
	}
	_, err = r.Declare("reds", "blues", strings.Repeat("x", 50))
	if err != nil {
		t.Fatalf("expected exactly-minimum cassus belli to pass, got %v", err)
	}
}

func TestDeclareReturnsDetachedCopy(t *testing.T) {
	r := newTestRegistry(t)

	w, err := r.Declare("reds", "blues", testCassusBelli)
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	w.State = StateEndedTreaty

	if got := r.Get(w.ID); !got.Active() {
		t.Fatalf("mutating a returned snapshot must not touch registry state: %+v", got)
	}
}

func TestEndUnknownWar(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.End("reds", "blues", StateEndedSurrender); !errors.Is(err, ErrWarNotFound) {
		t.Fatalf("expected ErrWarNotFound, got %v", err)
	}
}

func TestEndAllForEliminatedFaction(t *testing.T) {
	r := newTestRegistry(t)
	r.Declare("reds", "blues", testCassusBelli)
	r.Declare("greens", "reds", testCassusBelli)
	r.Declare("blues", "greens", testCassusBelli)

	ended := r.EndAllForEliminatedFaction("reds")
	if len(ended) != 2 {
		t.Fatalf("expected 2 wars ended, got %d", len(ended))
	}
	for _, w := range ended {
		if w.State != StateEndedEliminated {
			t.Fatalf("expected ended-eliminated, got %v", w.State)
		}
		if w.EndedAt.IsZero() {
			t.Fatal("expected ended-at stamp")
		}
	}
	if len(r.GetActiveWars()) != 1 {
		t.Fatalf("expected the unrelated war to stay active, got %d", len(r.GetActiveWars()))
	}

	// Idempotent: nothing left to end.
	if again := r.EndAllForEliminatedFaction("reds"); len(again) != 0 {
		t.Fatalf("expected no-op on repeat, got %d", len(again))
	}
}

func TestExpireOlderThan(t *testing.T) {
	r := newTestRegistry(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	r.now = func() time.Time { return base }
	r.Declare("reds", "blues", testCassusBelli)

	r.now = func() time.Time { return base.Add(10 * time.Hour) }
	r.Declare("reds", "greens", testCassusBelli)

	r.now = func() time.Time { return base.Add(73 * time.Hour) }
	expired := r.ExpireOlderThan(72 * time.Hour)
	if len(expired) != 1 || expired[0].DefenderID != "blues" {
		t.Fatalf("expected only the oldest war to expire, got %+v", expired)
	}
	if expired[0].State != StateEndedTimeout {
		t.Fatalf("expected ended-timeout, got %v", expired[0].State)
	}

	byFaction := r.GetAllActiveWarsByFaction("reds")
	if len(byFaction) != 1 || byFaction[0].DefenderID != "greens" {
		t.Fatalf("expected one remaining active war for reds, got %+v", byFaction)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	r := newTestRegistry(t)
	r.Declare("reds", "blues", testCassusBelli)
	r.End("reds", "blues", StateEndedSurrender)
	r.Declare("reds", "blues", testCassusBelli)

	records := r.Serialize()
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	restored := newTestRegistry(t)
	restored.Init(records)
	if got := len(restored.GetActiveWars()); got != 1 {
		t.Fatalf("expected 1 active war after round trip, got %d", got)
	}
	if !restored.IsAtWar("reds", "blues") {
		t.Fatal("expected active war to survive round trip")
	}
}
