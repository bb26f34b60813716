package territory

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rossicka/imperium/internal/events"
	"github.com/rossicka/imperium/internal/options"
)

// Treasury is the slice of the faction registry the territory registry needs:
// a non-blocking debit against a faction's funds.
type Treasury interface {
	TryWithdraw(factionID string, amount int64) error
}

// Registry is the process-wide authority over area claim state. Accessors
// return detached snapshots; all mutation goes through registry methods.
type Registry struct {
	mu    sync.RWMutex
	areas map[string]*Area

	opts     *options.Options
	treasury Treasury
	bus      *events.Bus

	now func() time.Time
}

// NewRegistry creates an empty registry. Areas are populated by Seed on
// first boot or Init on restore.
func NewRegistry(opts *options.Options, treasury Treasury, bus *events.Bus) *Registry {
	return &Registry{
		areas:    make(map[string]*Area),
		opts:     opts,
		treasury: treasury,
		bus:      bus,
		now:      time.Now,
	}
}

// Seed registers fresh wilderness cells from the spatial grid provider.
// Already-known ids are left untouched so a reseed after restore is safe.
func (r *Registry) Seed(cells []Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	added := 0
	for _, c := range cells {
		if _, ok := r.areas[c.ID]; ok {
			continue
		}
		t := AreaWilderness
		if c.Type == AreaBadlands {
			t = AreaBadlands
		}
		r.areas[c.ID] = &Area{ID: c.ID, Type: t, Monument: c.Monument}
		added++
	}
	slog.Info("territory seeded", "cells", len(cells), "added", added)
}

// Get returns a snapshot of the area with the given id, or nil.
func (r *Registry) Get(id string) *Area {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.areas[id]
	if !ok {
		return nil
	}
	return a.clone()
}

// All returns snapshots of every known area in no particular order.
func (r *Registry) All() []*Area {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*Area, 0, len(r.areas))
	for _, a := range r.areas {
		all = append(all, a.clone())
	}
	return all
}

// GetAllClaimedByFaction returns snapshots of every area owned by the faction.
func (r *Registry) GetAllClaimedByFaction(factionID string) []*Area {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var owned []*Area
	for _, a := range r.claimedByLocked(factionID) {
		owned = append(owned, a.clone())
	}
	return owned
}

func (r *Registry) claimedByLocked(factionID string) []*Area {
	var owned []*Area
	for _, a := range r.areas {
		if a.FactionID == factionID {
			owned = append(owned, a)
		}
	}
	return owned
}

// ClaimCount returns how many areas the faction currently holds.
func (r *Registry) ClaimCount(factionID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.claimedByLocked(factionID))
}

// Towns returns snapshots of every area carrying a town designation.
func (r *Registry) Towns() []*Area {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var towns []*Area
	for _, a := range r.areas {
		if a.IsTown() {
			towns = append(towns, a.clone())
		}
	}
	return towns
}

// Claim assigns the area to the faction. The cost of the claim is the claim
// table tier for the faction's current holding count (the Nth claim reads
// index N-1, clamped past the last tier) and is debited from the faction
// treasury before ownership changes hands.
func (r *Registry) Claim(areaID, factionID, name string) error {
	if len(name) < r.opts.MinAreaNameLength {
		return fmt.Errorf("area name %q: %w", name, ErrNameTooShort)
	}

	r.mu.Lock()
	a, ok := r.areas[areaID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("claim %q: %w", areaID, ErrAreaNotFound)
	}
	if a.Type == AreaBadlands {
		r.mu.Unlock()
		return fmt.Errorf("claim %q: %w", areaID, ErrBadlands)
	}
	if a.IsClaimed() {
		r.mu.Unlock()
		return fmt.Errorf("claim %q held by %q: %w", areaID, a.FactionID, ErrAlreadyClaimed)
	}

	count := len(r.claimedByLocked(factionID))
	cost := r.opts.ClaimCost(count)
	if err := r.treasury.TryWithdraw(factionID, cost); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("claim %q cost %d: %w", areaID, cost, err)
	}

	now := r.now()
	a.FactionID = factionID
	a.Name = name
	a.ClaimedAt = now
	a.NextUpkeepAt = now.Add(r.opts.UpkeepCollectionPeriod())
	a.InDefaultSince = nil
	if count == 0 {
		a.Type = AreaHeadquarters
	} else {
		a.Type = AreaClaimed
	}
	r.mu.Unlock()

	slog.Info("area claimed", "area", areaID, "faction", factionID, "cost", cost)
	r.bus.Publish(events.Event{Type: events.FactionsChanged, FactionID: factionID, AreaID: areaID})
	return nil
}

// Unclaim releases ownership of the given areas as one batch. Entries that
// are unknown or already unclaimed are skipped, so cascades from disbandment
// never partially fail.
func (r *Registry) Unclaim(areaIDs []string) {
	r.mu.Lock()
	changed := 0
	for _, id := range areaIDs {
		a, ok := r.areas[id]
		if !ok || !a.IsClaimed() {
			continue
		}
		a.FactionID = ""
		a.Name = ""
		a.MayorID = ""
		a.ClaimedAt = time.Time{}
		a.NextUpkeepAt = time.Time{}
		a.InDefaultSince = nil
		if a.Type != AreaBadlands {
			a.Type = AreaWilderness
		}
		changed++
	}
	r.mu.Unlock()

	if changed > 0 {
		slog.Info("areas unclaimed", "count", changed)
		r.bus.Publish(events.Event{Type: events.FactionsChanged})
	}
}

// MarkTown designates a claimed area as a town with the given mayor.
func (r *Registry) MarkTown(areaID, mayorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.areas[areaID]
	if !ok {
		return fmt.Errorf("mark town %q: %w", areaID, ErrAreaNotFound)
	}
	if !a.IsClaimed() {
		return fmt.Errorf("mark town %q: %w", areaID, ErrNotClaimed)
	}
	a.Type = AreaTown
	a.MayorID = mayorID
	return nil
}

// RemoveTown drops an area's town designation, reverting it to a plain claim.
func (r *Registry) RemoveTown(areaID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.areas[areaID]
	if !ok {
		return fmt.Errorf("remove town %q: %w", areaID, ErrAreaNotFound)
	}
	if a.Type == AreaTown {
		a.Type = AreaClaimed
		a.MayorID = ""
	}
	return nil
}

// SetHeadquarters moves the faction's headquarters marker to the given area.
func (r *Registry) SetHeadquarters(areaID, factionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.areas[areaID]
	if !ok {
		return fmt.Errorf("set headquarters %q: %w", areaID, ErrAreaNotFound)
	}
	if a.FactionID != factionID {
		return fmt.Errorf("set headquarters %q: %w", areaID, ErrNotClaimed)
	}
	for _, other := range r.claimedByLocked(factionID) {
		if other.Type == AreaHeadquarters {
			other.Type = AreaClaimed
		}
	}
	a.Type = AreaHeadquarters
	return nil
}

// DueAreas returns snapshots of areas whose upkeep timestamp has elapsed at
// the given instant, for the scheduler's sweep.
func (r *Registry) DueAreas(at time.Time) []*Area {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var due []*Area
	for _, a := range r.areas {
		if a.IsClaimed() && !a.NextUpkeepAt.IsZero() && !a.NextUpkeepAt.After(at) {
			due = append(due, a.clone())
		}
	}
	return due
}

// AdvanceUpkeep pushes the area's due timestamp forward one collection period
// and clears any default marker. Called after a successful collection.
func (r *Registry) AdvanceUpkeep(areaID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.areas[areaID]
	if !ok {
		return
	}
	a.NextUpkeepAt = a.NextUpkeepAt.Add(r.opts.UpkeepCollectionPeriod())
	a.InDefaultSince = nil
}

// MarkDefault stamps the start of the area's grace window. Reports whether
// this call began the window (false if already in default).
func (r *Registry) MarkDefault(areaID string, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.areas[areaID]
	if !ok || a.InDefaultSince != nil {
		return false
	}
	t := at
	a.InDefaultSince = &t
	return true
}

// Init restores areas from serialized records, replacing current state.
func (r *Registry) Init(records []Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slog.Info("restoring areas", "count", len(records))
	for _, rec := range records {
		var inDefault *time.Time
		if rec.InDefaultSince != nil {
			t := *rec.InDefaultSince
			inDefault = &t
		}
		r.areas[rec.ID] = &Area{
			ID:             rec.ID,
			Name:           rec.Name,
			Type:           rec.Type,
			FactionID:      rec.FactionID,
			Monument:       rec.Monument,
			MayorID:        rec.MayorID,
			ClaimedAt:      rec.ClaimedAt,
			NextUpkeepAt:   rec.NextUpkeepAt,
			InDefaultSince: inDefault,
		}
	}
}

// Serialize snapshots every area for persistence.
func (r *Registry) Serialize() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	records := make([]Record, 0, len(r.areas))
	for _, a := range r.areas {
		var inDefault *time.Time
		if a.InDefaultSince != nil {
			t := *a.InDefaultSince
			inDefault = &t
		}
		records = append(records, Record{
			ID:             a.ID,
			Name:           a.Name,
			Type:           a.Type,
			FactionID:      a.FactionID,
			Monument:       a.Monument,
			MayorID:        a.MayorID,
			ClaimedAt:      a.ClaimedAt,
			NextUpkeepAt:   a.NextUpkeepAt,
			InDefaultSince: inDefault,
		})
	}
	return records
}

// Destroy releases all area state. Process shutdown only.
func (r *Registry) Destroy() {
	r.mu.Lock()
	n := len(r.areas)
	r.areas = make(map[string]*Area)
	r.mu.Unlock()
	slog.Info("territory registry destroyed", "count", n)
}
