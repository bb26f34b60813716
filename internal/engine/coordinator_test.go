package engine

import (
	"errors"
	"testing"

	"github.com/rossicka/imperium/internal/events"
	"github.com/rossicka/imperium/internal/faction"
	"github.com/rossicka/imperium/internal/options"
	"github.com/rossicka/imperium/internal/territory"
	"github.com/rossicka/imperium/internal/users"
	"github.com/rossicka/imperium/internal/war"
)

const testCassusBelli = "they raided our northern outposts and burned the grain stores"

type testCore struct {
	opts     *options.Options
	bus      *events.Bus
	factions *faction.Registry
	areas    *territory.Registry
	wars     *war.Registry
	dir      *users.MemoryDirectory
	coord    *Coordinator
}

func newTestCore(t *testing.T) *testCore {
	t.Helper()
	opts := options.Defaults()
	opts.MinFactionMembers = 1

	bus := events.NewBus()
	factions := faction.NewRegistry(bus, opts.DefaultTaxRate, opts.MaxTaxRate)
	areas := territory.NewRegistry(opts, factions, bus)
	areas.Seed([]territory.Record{
		{ID: "A7"}, {ID: "A8"}, {ID: "B7"}, {ID: "B8"},
	})
	wars := war.NewRegistry(bus, opts.MinCassusBelliLength)
	dir := users.NewMemoryDirectory()

	return &testCore{
		opts:     opts,
		bus:      bus,
		factions: factions,
		areas:    areas,
		wars:     wars,
		dir:      dir,
		coord:    NewCoordinator(opts, factions, areas, wars, dir, bus),
	}
}

func TestCreateFaction(t *testing.T) {
	c := newTestCore(t)

	f, err := c.coord.CreateFaction("reds", "Red Alliance", "u1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if f.ID != "reds" || !c.factions.Exists("reds") {
		t.Fatal("expected reds registered")
	}

	// The owner of one faction cannot found another.
	if _, err := c.coord.CreateFaction("blues", "", "u1"); !errors.Is(err, faction.ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}
}

func TestClaimRequiresMinimumMembers(t *testing.T) {
	c := newTestCore(t)
	c.opts.MinFactionMembers = 3
	c.coord.CreateFaction("reds", "", "u1")

	if err := c.coord.Claim("A7", "reds", "homeland"); !errors.Is(err, ErrTooFewMembers) {
		t.Fatalf("expected ErrTooFewMembers, got %v", err)
	}

	c.factions.AddMember("reds", "u2", faction.RoleMember)
	c.factions.AddMember("reds", "u3", faction.RoleMember)
	if err := c.coord.Claim("A7", "reds", "homeland"); err != nil {
		t.Fatalf("claim with quorum: %v", err)
	}
}

func TestClaimUnknownFaction(t *testing.T) {
	c := newTestCore(t)
	if err := c.coord.Claim("A7", "ghosts", "nowhere"); !errors.Is(err, faction.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDisbandCascade(t *testing.T) {
	c := newTestCore(t)
	c.coord.CreateFaction("reds", "Red Alliance", "u1")
	c.coord.CreateFaction("blues", "", "u2")
	c.factions.AddMember("reds", "u3", faction.RoleMember)
	c.dir.SetOnline("u1", true)
	c.dir.SetFaction("u1", "reds")
	c.dir.SetFaction("u3", "reds")

	if err := c.coord.Claim("A7", "reds", "homeland"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := c.coord.DeclareWar("reds", "blues", testCassusBelli); err != nil {
		t.Fatalf("declare war: %v", err)
	}

	ch := c.bus.Subscribe()
	if err := c.coord.Disband("reds"); err != nil {
		t.Fatalf("disband: %v", err)
	}

	// Territory released.
	if a := c.areas.Get("A7"); a.IsClaimed() {
		t.Fatalf("expected A7 unclaimed, got owner %q", a.FactionID)
	}
	// Wars forced terminal with the elimination reason.
	for _, w := range c.wars.All() {
		if w.Involves("reds") && w.State != war.StateEndedEliminated {
			t.Fatalf("expected ended-eliminated, got %v", w.State)
		}
	}
	// Faction gone.
	if c.factions.Exists("reds") {
		t.Fatal("expected reds removed")
	}
	// Online member affiliation cleared on the player side.
	if got := c.dir.Faction("u1"); got != "" {
		t.Fatalf("expected u1 affiliation cleared, got %q", got)
	}

	// Hook order: claim loss before the disband announcement.
	var types []string
	for len(ch) > 0 {
		types = append(types, (<-ch).Type)
	}
	sawLoss, sawDisband := -1, -1
	for i, typ := range types {
		switch typ {
		case events.AreaClaimLost:
			if sawLoss < 0 {
				sawLoss = i
			}
		case events.FactionDisbanded:
			sawDisband = i
		}
	}
	if sawLoss < 0 || sawDisband < 0 || sawLoss > sawDisband {
		t.Fatalf("expected claim-loss hooks before disband hook, got %v", types)
	}

	if err := c.coord.Disband("reds"); !errors.Is(err, faction.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on repeat disband, got %v", err)
	}
}

func TestDeclareWarValidation(t *testing.T) {
	c := newTestCore(t)
	c.coord.CreateFaction("reds", "", "u1")
	c.coord.CreateFaction("blues", "", "u2")

	if _, err := c.coord.DeclareWar("reds", "reds", testCassusBelli); !errors.Is(err, war.ErrInvalidPair) {
		t.Fatalf("expected ErrInvalidPair, got %v", err)
	}
	if _, err := c.coord.DeclareWar("reds", "ghosts", testCassusBelli); !errors.Is(err, faction.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := c.coord.DeclareWar("reds", "blues", testCassusBelli); err != nil {
		t.Fatalf("declare: %v", err)
	}
	if _, err := c.coord.DeclareWar("blues", "reds", testCassusBelli); !errors.Is(err, war.ErrDuplicateWar) {
		t.Fatalf("expected ErrDuplicateWar, got %v", err)
	}

	if _, err := c.coord.EndWar("reds", "blues", war.StateEndedSurrender); err != nil {
		t.Fatalf("end war: %v", err)
	}
	if c.wars.IsAtWar("reds", "blues") {
		t.Fatal("expected war over after surrender")
	}
}

func TestUnclaimOnlyReleasesOwnAreas(t *testing.T) {
	c := newTestCore(t)
	c.coord.CreateFaction("reds", "", "u1")
	c.coord.CreateFaction("blues", "", "u2")
	c.coord.Claim("A7", "reds", "homeland")
	c.coord.Claim("A8", "blues", "harbor")

	if err := c.coord.Unclaim("reds", []string{"A7", "A8", "missing"}); err != nil {
		t.Fatalf("unclaim: %v", err)
	}
	if c.areas.Get("A7").IsClaimed() {
		t.Fatal("expected A7 released")
	}
	if !c.areas.Get("A8").IsClaimed() {
		t.Fatal("expected A8 untouched, it belongs to blues")
	}
}

func TestReconcileHealsDanglingReferences(t *testing.T) {
	c := newTestCore(t)

	// Simulate a snapshot taken mid-cascade: an area and a war reference
	// a faction that no longer exists.
	c.areas.Init([]territory.Record{
		{ID: "A7", FactionID: "ghosts", Type: territory.AreaClaimed},
	})
	c.wars.Init([]war.Record{
		{ID: "w1", AttackerID: "ghosts", DefenderID: "blues", CassusBelli: testCassusBelli, State: war.StateActive},
	})
	c.coord.CreateFaction("blues", "", "u2")
	c.factions.Init([]faction.Record{{ID: "hollow", OwnerID: "gone", Members: map[string]faction.Role{}}})

	c.coord.Reconcile()

	if c.areas.Get("A7").IsClaimed() {
		t.Fatal("expected dangling claim force-released")
	}
	if got := c.wars.Get("w1").State; got != war.StateEndedEliminated {
		t.Fatalf("expected dangling war terminated, got %v", got)
	}
	if c.factions.Exists("hollow") {
		t.Fatal("expected emptied-roster faction disbanded during reconciliation")
	}
	if !c.factions.Exists("blues") {
		t.Fatal("expected blues to survive reconciliation")
	}
}

func TestDisbandEmptyFactions(t *testing.T) {
	c := newTestCore(t)
	c.coord.CreateFaction("reds", "", "u1")

	// Force an emptied roster, as if the last member was purged.
	c.factions.Init([]faction.Record{{ID: "hollow", OwnerID: "gone", Members: map[string]faction.Role{}}})

	c.coord.DisbandEmptyFactions()
	if c.factions.Exists("hollow") {
		t.Fatal("expected hollow faction disbanded")
	}
	if !c.factions.Exists("reds") {
		t.Fatal("expected reds untouched")
	}
}
