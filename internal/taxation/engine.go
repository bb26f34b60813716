// Package taxation routes a share of member economic activity into faction
// treasuries and exposes the territory policy values (gather bonus, decay
// reduction, defensive bonus) other subsystems apply.
package taxation

import (
	"log/slog"

	"github.com/rossicka/imperium/internal/faction"
	"github.com/rossicka/imperium/internal/options"
	"github.com/rossicka/imperium/internal/territory"
)

// Engine computes taxes on economic events tied to territory cells.
type Engine struct {
	opts     *options.Options
	factions *faction.Registry
	areas    *territory.Registry
}

func NewEngine(opts *options.Options, factions *faction.Registry, areas *territory.Registry) *Engine {
	return &Engine{opts: opts, factions: factions, areas: areas}
}

// ApplyGather taxes one economic event of the given value at the given cell
// and returns the amount routed to the owning faction's treasury. Unclaimed
// cells, factions without a tax chest, and disabled taxation are no-ops.
// Rate changes apply to subsequent events only.
func (e *Engine) ApplyGather(areaID string, amount int64) int64 {
	if !e.opts.EnableTaxation || amount <= 0 {
		return 0
	}

	a := e.areas.Get(areaID)
	if a == nil || !a.IsClaimed() {
		return 0
	}
	f := e.factions.Get(a.FactionID)
	if f == nil || f.TaxChestID == "" || f.TaxRate <= 0 {
		return 0
	}

	tax := int64(f.TaxRate * float64(amount))
	if tax <= 0 {
		return 0
	}
	if err := e.factions.Deposit(f.ID, tax); err != nil {
		slog.Error("tax deposit failed", "faction", f.ID, "area", areaID, "error", err)
		return 0
	}
	return tax
}

// GatherBonus returns the yield multiplier for activity in the given cell.
func (e *Engine) GatherBonus(areaID string) float64 {
	a := e.areas.Get(areaID)
	if a == nil {
		return 0
	}
	switch {
	case a.IsTown() && e.opts.EnableTowns:
		return e.opts.TownGatherBonus
	case a.Type == territory.AreaBadlands && e.opts.EnableBadlands:
		return e.opts.BadlandsGatherBonus
	case a.IsClaimed():
		return e.opts.ClaimedLandGatherBonus
	default:
		return 0
	}
}

// DecayReduction returns the structure-decay reduction for the given cell.
func (e *Engine) DecayReduction(areaID string) float64 {
	if !e.opts.EnableDecayReduction {
		return 0
	}
	a := e.areas.Get(areaID)
	if a == nil {
		return 0
	}
	switch {
	case a.IsTown():
		return e.opts.TownDecayReduction
	case a.IsClaimed():
		return e.opts.ClaimedLandDecayReduction
	default:
		return 0
	}
}

// DefensiveBonus returns the damage-reduction policy value for the faction,
// tiered by how much land it holds. The combat system applies it.
func (e *Engine) DefensiveBonus(factionID string) float64 {
	if !e.opts.EnableDefensiveBonuses {
		return 0
	}
	return e.opts.DefensiveBonus(e.areas.ClaimCount(factionID))
}
