package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rossicka/imperium/internal/events"
	"github.com/rossicka/imperium/internal/faction"
	"github.com/rossicka/imperium/internal/territory"
)

// Scheduler drives the time-based rules: upkeep collection, default grace
// windows, and war timeouts. It mutates state only through the same registry
// entry points player actions use.
type Scheduler struct {
	coord *Coordinator

	now func() time.Time
}

// NewScheduler creates a scheduler over the coordinator's registries.
func NewScheduler(coord *Coordinator) *Scheduler {
	return &Scheduler{coord: coord, now: time.Now}
}

// Run sweeps on the configured interval until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	interval := s.coord.opts.UpkeepCheckInterval()
	slog.Info("upkeep scheduler started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("upkeep scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep runs one full evaluation pass. A failure on one entity never aborts
// the rest of the sweep.
func (s *Scheduler) Sweep() {
	now := s.now()

	if s.coord.opts.EnableWar {
		if expired := s.coord.wars.ExpireOlderThan(s.coord.opts.WarDuration()); len(expired) > 0 {
			slog.Info("wars timed out", "count", len(expired))
		}
	}

	if !s.coord.opts.EnableUpkeep {
		return
	}

	collected, defaulted, evicted := 0, 0, 0
	for _, a := range s.coord.areas.DueAreas(now) {
		switch s.collectOne(a.ID, a.FactionID, now) {
		case upkeepCollected:
			collected++
		case upkeepDefaulted:
			defaulted++
		case upkeepEvicted:
			evicted++
		}
	}

	if collected+defaulted+evicted > 0 {
		slog.Info("upkeep sweep",
			"collected", collected,
			"defaulted", defaulted,
			"evicted", evicted,
		)
	}
}

type upkeepOutcome uint8

const (
	upkeepSkipped upkeepOutcome = iota
	upkeepCollected
	upkeepDefaulted
	upkeepEvicted
)

// collectOne settles one area's dues under the owning faction's lock so the
// collection cannot interleave with a disband cascade on the same faction.
// The owner from the sweep snapshot is only a hint: the area is re-read under
// the lock, and if it changed hands in between, the lock is retaken for the
// current owner.
func (s *Scheduler) collectOne(areaID, ownerHint string, now time.Time) upkeepOutcome {
	factionID := ownerHint
	for {
		unlock := s.coord.lockFaction(factionID)
		cur := s.coord.areas.Get(areaID)
		if cur == nil || !cur.IsClaimed() {
			unlock()
			return upkeepSkipped
		}
		if cur.FactionID != factionID {
			unlock()
			factionID = cur.FactionID
			continue
		}
		outcome := s.settle(cur, now)
		unlock()
		return outcome
	}
}

func (s *Scheduler) settle(cur *territory.Area, now time.Time) upkeepOutcome {
	factionID := cur.FactionID
	count := s.coord.areas.ClaimCount(factionID)
	cost := s.coord.opts.UpkeepCost(count)

	err := s.coord.factions.TryWithdraw(factionID, cost)
	if err == nil {
		s.coord.areas.AdvanceUpkeep(cur.ID)
		return upkeepCollected
	}
	if errors.Is(err, faction.ErrNotFound) {
		// Faction vanished mid-sweep; reconciliation territory, not ours.
		slog.Error("upkeep debit against missing faction", "area", cur.ID, "faction", factionID)
		return upkeepSkipped
	}

	// Insufficient funds: open the grace window, or evict once it lapses.
	if cur.InDefaultSince == nil {
		if s.coord.areas.MarkDefault(cur.ID, now) {
			slog.Warn("area in upkeep default", "area", cur.ID, "faction", factionID, "due", cost)
			s.coord.bus.Publish(events.Event{
				Type:      events.UpkeepDefault,
				FactionID: factionID,
				AreaID:    cur.ID,
			})
		}
		return upkeepDefaulted
	}

	if now.Sub(*cur.InDefaultSince) >= s.coord.opts.UpkeepGracePeriod() {
		slog.Warn("upkeep grace lapsed, evicting", "area", cur.ID, "faction", factionID)
		s.coord.bus.Publish(events.Event{
			Type:      events.AreaClaimLost,
			FactionID: factionID,
			AreaID:    cur.ID,
			Detail:    "upkeep default",
		})
		s.coord.areas.Unclaim([]string{cur.ID})
		return upkeepEvicted
	}
	return upkeepDefaulted
}
