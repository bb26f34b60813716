// Package engine orchestrates operations that span more than one registry:
// faction lifecycle cascades, claim and war entry points, the upkeep
// scheduler, and the startup reconciliation pass.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rossicka/imperium/internal/events"
	"github.com/rossicka/imperium/internal/faction"
	"github.com/rossicka/imperium/internal/options"
	"github.com/rossicka/imperium/internal/territory"
	"github.com/rossicka/imperium/internal/users"
	"github.com/rossicka/imperium/internal/war"
)

// Coordinator errors.
var (
	ErrFeatureDisabled = errors.New("feature disabled by configuration")
	ErrTooFewMembers   = errors.New("faction has too few members")
)

// Coordinator is the only entry point for operations touching more than one
// registry. Cross-entity cascades hold the faction's lock for their full
// duration, so a concurrent claim or declaration on the same faction either
// completes before the cascade or waits until it finishes.
type Coordinator struct {
	opts     *options.Options
	factions *faction.Registry
	areas    *territory.Registry
	wars     *war.Registry
	users    users.Directory
	bus      *events.Bus

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCoordinator wires the registries together.
func NewCoordinator(opts *options.Options, factions *faction.Registry, areas *territory.Registry,
	wars *war.Registry, dir users.Directory, bus *events.Bus) *Coordinator {
	return &Coordinator{
		opts:     opts,
		factions: factions,
		areas:    areas,
		wars:     wars,
		users:    dir,
		bus:      bus,
		locks:    make(map[string]*sync.Mutex),
	}
}

// lockFaction acquires the per-faction exclusive section. Locks persist for
// the process lifetime; the faction population is small.
func (c *Coordinator) lockFaction(id string) func() {
	c.mu.Lock()
	l, ok := c.locks[id]
	if !ok {
		l = &sync.Mutex{}
		c.locks[id] = l
	}
	c.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// lockPair acquires both factions' sections in a stable order so concurrent
// two-faction operations cannot deadlock.
func (c *Coordinator) lockPair(a, b string) func() {
	if b < a {
		a, b = b, a
	}
	ua := c.lockFaction(a)
	ub := c.lockFaction(b)
	return func() {
		ub()
		ua()
	}
}

// CreateFaction registers a new faction with ownerID as its sole member. The
// registry enforces, under its own lock, that the owner is not already
// affiliated elsewhere.
func (c *Coordinator) CreateFaction(id, description, ownerID string) (*faction.Faction, error) {
	return c.factions.Create(id, description, ownerID)
}

// Disband removes the faction and everything that references it. Territory
// and wars are unwound before the faction identity disappears, so neither
// registry ever holds a dangling faction id.
func (c *Coordinator) Disband(factionID string) error {
	unlock := c.lockFaction(factionID)
	defer unlock()
	return c.disbandLocked(factionID)
}

func (c *Coordinator) disbandLocked(factionID string) error {
	f := c.factions.Get(factionID)
	if f == nil {
		return fmt.Errorf("disband %q: %w", factionID, faction.ErrNotFound)
	}

	// 1. Release territory first, announcing each loss.
	owned := c.areas.GetAllClaimedByFaction(factionID)
	if len(owned) > 0 {
		ids := make([]string, 0, len(owned))
		for _, a := range owned {
			c.bus.Publish(events.Event{
				Type:      events.AreaClaimLost,
				FactionID: factionID,
				AreaID:    a.ID,
				Detail:    "faction disbanded",
			})
			ids = append(ids, a.ID)
		}
		c.areas.Unclaim(ids)
	}

	// 2. Terminate wars before the faction id disappears.
	c.wars.EndAllForEliminatedFaction(factionID)

	// 3. Clear affiliation for online members.
	for _, userID := range f.MemberIDs() {
		if c.users.IsOnline(userID) {
			c.users.ClearFaction(userID)
		}
	}

	// 4. Remove the faction itself.
	c.factions.Remove(factionID)

	// 5. Announce.
	slog.Info("faction disbanded", "faction", factionID, "areas_lost", len(owned))
	c.bus.Publish(events.Event{Type: events.FactionDisbanded, FactionID: factionID})
	c.bus.Publish(events.Event{Type: events.FactionsChanged})
	return nil
}

// Claim assigns an area to a faction, debiting the tiered claim cost.
func (c *Coordinator) Claim(areaID, factionID, name string) error {
	if !c.opts.EnableAreaClaims {
		return fmt.Errorf("area claims: %w", ErrFeatureDisabled)
	}

	unlock := c.lockFaction(factionID)
	defer unlock()

	f := c.factions.Get(factionID)
	if f == nil {
		return fmt.Errorf("claim for %q: %w", factionID, faction.ErrNotFound)
	}
	if len(f.Members) < c.opts.MinFactionMembers {
		return fmt.Errorf("faction %q has %d members, needs %d: %w",
			factionID, len(f.Members), c.opts.MinFactionMembers, ErrTooFewMembers)
	}
	return c.areas.Claim(areaID, factionID, name)
}

// Unclaim releases the given areas, keeping only those actually owned by the
// faction. Already-unclaimed entries are no-ops.
func (c *Coordinator) Unclaim(factionID string, areaIDs []string) error {
	unlock := c.lockFaction(factionID)
	defer unlock()

	if !c.factions.Exists(factionID) {
		return fmt.Errorf("unclaim for %q: %w", factionID, faction.ErrNotFound)
	}
	var owned []string
	for _, id := range areaIDs {
		if a := c.areas.Get(id); a != nil && a.FactionID == factionID {
			owned = append(owned, id)
		}
	}
	c.areas.Unclaim(owned)
	return nil
}

// DeclareWar opens a war between two existing factions.
func (c *Coordinator) DeclareWar(attackerID, defenderID, cassusBelli string) (*war.War, error) {
	if !c.opts.EnableWar {
		return nil, fmt.Errorf("war: %w", ErrFeatureDisabled)
	}
	if attackerID == defenderID {
		return nil, fmt.Errorf("declare war: %w", war.ErrInvalidPair)
	}

	unlock := c.lockPair(attackerID, defenderID)
	defer unlock()

	if !c.factions.Exists(attackerID) {
		return nil, fmt.Errorf("attacker %q: %w", attackerID, faction.ErrNotFound)
	}
	if !c.factions.Exists(defenderID) {
		return nil, fmt.Errorf("defender %q: %w", defenderID, faction.ErrNotFound)
	}
	return c.wars.Declare(attackerID, defenderID, cassusBelli)
}

// EndWar transitions the active war between two factions to a terminal state
// (surrender or treaty).
func (c *Coordinator) EndWar(a, b string, state war.State) (*war.War, error) {
	unlock := c.lockPair(a, b)
	defer unlock()
	return c.wars.End(a, b, state)
}

// Reconcile verifies cross-registry invariants after a restore and
// force-corrects violations: areas owned by missing factions are unclaimed,
// wars referencing missing factions are terminated, and factions restored
// with an emptied roster are disbanded. Violations indicate an interrupted
// cascade and are logged loudly.
func (c *Coordinator) Reconcile() {
	var dangling []string
	for _, a := range c.areas.All() {
		if a.IsClaimed() && !c.factions.Exists(a.FactionID) {
			slog.Error("invariant violation: area owned by missing faction, force-unclaiming",
				"area", a.ID, "faction", a.FactionID)
			dangling = append(dangling, a.ID)
		}
	}
	if len(dangling) > 0 {
		c.areas.Unclaim(dangling)
	}

	for _, w := range c.wars.GetActiveWars() {
		for _, id := range []string{w.AttackerID, w.DefenderID} {
			if !c.factions.Exists(id) {
				slog.Error("invariant violation: war references missing faction, force-terminating",
					"war", w.ID, "faction", id)
				c.wars.EndAllForEliminatedFaction(id)
			}
		}
	}

	c.DisbandEmptyFactions()
}

// DisbandEmptyFactions disbands factions whose roster has emptied. A faction
// always has at least its owner while it exists; zero members means pending
// disbandment, never a stored state.
func (c *Coordinator) DisbandEmptyFactions() {
	for _, f := range c.factions.All() {
		if len(f.Members) == 0 {
			slog.Warn("faction has no members, disbanding", "faction", f.ID)
			if err := c.Disband(f.ID); err != nil && !errors.Is(err, faction.ErrNotFound) {
				slog.Error("disband failed", "faction", f.ID, "error", err)
			}
		}
	}
}
