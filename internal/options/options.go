// Package options holds the game-rules configuration: feature toggles, cost
// tables, tax bounds, and scheduler timers. Loaded once at startup and treated
// as immutable afterwards.
package options

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Options is the full rules contract. A missing file is replaced with
// Defaults() before first use.
type Options struct {
	EnableAreaClaims       bool `json:"enable_area_claims"`
	EnableBadlands         bool `json:"enable_badlands"`
	EnableDecayReduction   bool `json:"enable_decay_reduction"`
	EnableDefensiveBonuses bool `json:"enable_defensive_bonuses"`
	EnableRestrictedPVP    bool `json:"enable_restricted_pvp"`
	EnableTaxation         bool `json:"enable_taxation"`
	EnableTowns            bool `json:"enable_towns"`
	EnableUpkeep           bool `json:"enable_upkeep"`
	EnableWar              bool `json:"enable_war"`

	MinFactionMembers    int `json:"min_faction_members"`
	MinAreaNameLength    int `json:"min_area_name_length"`
	MinCassusBelliLength int `json:"min_cassus_belli_length"`

	DefaultTaxRate float64 `json:"default_tax_rate"`
	MaxTaxRate     float64 `json:"max_tax_rate"`

	ClaimedLandGatherBonus    float64 `json:"claimed_land_gather_bonus"`
	TownGatherBonus           float64 `json:"town_gather_bonus"`
	BadlandsGatherBonus       float64 `json:"badlands_gather_bonus"`
	ClaimedLandDecayReduction float64 `json:"claimed_land_decay_reduction"`
	TownDecayReduction        float64 `json:"town_decay_reduction"`

	// Cost tables, indexed by a faction's claimed-area count and clamped to
	// the last tier past the end.
	ClaimCosts       []int64   `json:"claim_costs"`
	UpkeepCosts      []int64   `json:"upkeep_costs"`
	DefensiveBonuses []float64 `json:"defensive_bonuses"`

	DangerousMonuments []string `json:"dangerous_monuments"`

	UpkeepCheckIntervalMinutes  int `json:"upkeep_check_interval_minutes"`
	UpkeepCollectionPeriodHours int `json:"upkeep_collection_period_hours"`
	UpkeepGracePeriodHours      int `json:"upkeep_grace_period_hours"`
	WarDurationHours            int `json:"war_duration_hours"`

	// Cosmetic and display parameters, consumed by map/UI collaborators.
	ZoneDomeDarkness         int     `json:"zone_dome_darkness"`
	EventZoneRadius          float64 `json:"event_zone_radius"`
	EventZoneLifespanSeconds float64 `json:"event_zone_lifespan_seconds"`
	MapImageURL              string  `json:"map_image_url"`
	MapImageSize             int     `json:"map_image_size"`
	CommandCooldownSeconds   int     `json:"command_cooldown_seconds"`
}

// Defaults returns the stock rules configuration.
func Defaults() *Options {
	return &Options{
		EnableAreaClaims:       true,
		EnableBadlands:         true,
		EnableDecayReduction:   true,
		EnableDefensiveBonuses: true,
		EnableRestrictedPVP:    false,
		EnableTaxation:         true,
		EnableTowns:            true,
		EnableUpkeep:           true,
		EnableWar:              true,

		MinFactionMembers:    3,
		MinAreaNameLength:    3,
		MinCassusBelliLength: 50,

		DefaultTaxRate: 0.1,
		MaxTaxRate:     0.2,

		ClaimedLandGatherBonus:    0.1,
		TownGatherBonus:           0.1,
		BadlandsGatherBonus:       0.1,
		ClaimedLandDecayReduction: 0.5,
		TownDecayReduction:        1,

		ClaimCosts:       []int64{0, 100, 200, 300, 400, 500},
		UpkeepCosts:      []int64{10, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		DefensiveBonuses: []float64{0, 0.5, 1},

		DangerousMonuments: []string{
			"airfield",
			"sphere_tank",
			"junkyard",
			"launch_site",
			"military_tunnel",
			"powerplant",
			"satellite_dish",
			"trainyard",
			"water_treatment_plant",
		},

		UpkeepCheckIntervalMinutes:  15,
		UpkeepCollectionPeriodHours: 24,
		UpkeepGracePeriodHours:      12,
		WarDurationHours:            72,

		ZoneDomeDarkness:         3,
		EventZoneRadius:          100,
		EventZoneLifespanSeconds: 600,
		MapImageURL:              "",
		MapImageSize:             1440,
		CommandCooldownSeconds:   10,
	}
}

// Load reads the options file at path, writing Defaults() there first if the
// file does not exist.
func Load(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("options file missing, writing defaults", "path", path)
		opts := Defaults()
		if err := write(path, opts); err != nil {
			return nil, err
		}
		return opts, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read options: %w", err)
	}

	var opts Options
	if err := json.Unmarshal(data, &opts); err != nil {
		return nil, fmt.Errorf("parse options: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("validate options: %w", err)
	}
	return &opts, nil
}

func write(path string, opts *Options) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create options dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(opts, "", "  ")
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write options: %w", err)
	}
	return nil
}

// Validate rejects configurations the registries cannot operate under.
func (o *Options) Validate() error {
	if o.MaxTaxRate < 0 || o.MaxTaxRate > 1 {
		return fmt.Errorf("max_tax_rate %v outside [0,1]", o.MaxTaxRate)
	}
	if o.DefaultTaxRate < 0 || o.DefaultTaxRate > o.MaxTaxRate {
		return fmt.Errorf("default_tax_rate %v outside [0,%v]", o.DefaultTaxRate, o.MaxTaxRate)
	}
	if len(o.ClaimCosts) == 0 {
		return errors.New("claim_costs table is empty")
	}
	if len(o.UpkeepCosts) == 0 {
		return errors.New("upkeep_costs table is empty")
	}
	for i := 1; i < len(o.ClaimCosts); i++ {
		if o.ClaimCosts[i] < o.ClaimCosts[i-1] {
			return fmt.Errorf("claim_costs not non-decreasing at tier %d", i)
		}
	}
	if o.UpkeepCheckIntervalMinutes <= 0 || o.UpkeepCollectionPeriodHours <= 0 || o.UpkeepGracePeriodHours <= 0 {
		return errors.New("upkeep timers must be positive")
	}
	if o.WarDurationHours <= 0 {
		return errors.New("war_duration_hours must be positive")
	}
	return nil
}

// ClaimCost returns the cost of a faction's next claim given how many areas it
// currently holds. Past the last tier the table clamps.
func (o *Options) ClaimCost(currentClaims int) int64 {
	return tierInt(o.ClaimCosts, currentClaims)
}

// UpkeepCost returns the per-area upkeep due for a faction holding the given
// number of areas.
func (o *Options) UpkeepCost(currentClaims int) int64 {
	if currentClaims < 1 {
		currentClaims = 1
	}
	return tierInt(o.UpkeepCosts, currentClaims-1)
}

// DefensiveBonus returns the damage-reduction policy value for a faction
// holding the given number of areas. Another subsystem applies it.
func (o *Options) DefensiveBonus(currentClaims int) float64 {
	if len(o.DefensiveBonuses) == 0 {
		return 0
	}
	i := currentClaims
	if i >= len(o.DefensiveBonuses) {
		i = len(o.DefensiveBonuses) - 1
	}
	if i < 0 {
		i = 0
	}
	return o.DefensiveBonuses[i]
}

func tierInt(table []int64, i int) int64 {
	if len(table) == 0 {
		return 0
	}
	if i >= len(table) {
		i = len(table) - 1
	}
	if i < 0 {
		i = 0
	}
	return table[i]
}

// UpkeepCheckInterval is the scheduler sweep cadence.
func (o *Options) UpkeepCheckInterval() time.Duration {
	return time.Duration(o.UpkeepCheckIntervalMinutes) * time.Minute
}

// UpkeepCollectionPeriod is how far each successful collection pushes the next
// due timestamp.
func (o *Options) UpkeepCollectionPeriod() time.Duration {
	return time.Duration(o.UpkeepCollectionPeriodHours) * time.Hour
}

// UpkeepGracePeriod is how long a defaulted area survives before eviction.
func (o *Options) UpkeepGracePeriod() time.Duration {
	return time.Duration(o.UpkeepGracePeriodHours) * time.Hour
}

// WarDuration is the ceiling after which an active war times out.
func (o *Options) WarDuration() time.Duration {
	return time.Duration(o.WarDurationHours) * time.Hour
}
