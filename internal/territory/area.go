// Package territory owns the claim state of map cells. Cells arrive as
// opaque grid identifiers from the spatial provider; each points to at most
// one owning faction.
package territory

import (
	"errors"
	"time"
)

// AreaType classifies a cell's current standing.
type AreaType uint8

const (
	AreaWilderness AreaType = iota
	AreaClaimed
	AreaHeadquarters
	AreaTown
	AreaBadlands
)

func (t AreaType) String() string {
	switch t {
	case AreaClaimed:
		return "claimed"
	case AreaHeadquarters:
		return "headquarters"
	case AreaTown:
		return "town"
	case AreaBadlands:
		return "badlands"
	default:
		return "wilderness"
	}
}

// Registry errors.
var (
	ErrAreaNotFound   = errors.New("area not found")
	ErrAlreadyClaimed = errors.New("area already claimed")
	ErrBadlands       = errors.New("badlands cannot be claimed")
	ErrNameTooShort   = errors.New("area name too short")
	ErrNotClaimed     = errors.New("area is not claimed")
)

// Area is a unit of claimable map territory.
type Area struct {
	ID   string   `json:"id"`
	Name string   `json:"name,omitempty"`
	Type AreaType `json:"type"`

	FactionID string `json:"faction_id,omitempty"`

	// Dangerous monument within the cell, if any. Danger is a derived
	// classification, independent of ownership.
	Monument string `json:"monument,omitempty"`

	// Town designation.
	MayorID string `json:"mayor_id,omitempty"`

	ClaimedAt      time.Time  `json:"claimed_at,omitzero"`
	NextUpkeepAt   time.Time  `json:"next_upkeep_at,omitzero"`
	InDefaultSince *time.Time `json:"in_default_since,omitempty"`
}

// clone returns a detached copy, safe to read without the registry lock.
func (a *Area) clone() *Area {
	c := *a
	if a.InDefaultSince != nil {
		t := *a.InDefaultSince
		c.InDefaultSince = &t
	}
	return &c
}

// IsClaimed reports whether the area has an owning faction.
func (a *Area) IsClaimed() bool {
	return a.FactionID != ""
}

// IsDangerous reports whether the cell contains a dangerous monument.
func (a *Area) IsDangerous() bool {
	return a.Monument != ""
}

// IsTown reports whether the area carries a town designation.
func (a *Area) IsTown() bool {
	return a.Type == AreaTown
}

// Record is the serialized form of an area.
type Record struct {
	ID             string     `json:"id"`
	Name           string     `json:"name,omitempty"`
	Type           AreaType   `json:"type"`
	FactionID      string     `json:"faction_id,omitempty"`
	Monument       string     `json:"monument,omitempty"`
	MayorID        string     `json:"mayor_id,omitempty"`
	ClaimedAt      time.Time  `json:"claimed_at,omitzero"`
	NextUpkeepAt   time.Time  `json:"next_upkeep_at,omitzero"`
	InDefaultSince *time.Time `json:"in_default_since,omitempty"`
}
