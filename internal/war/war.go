// Package war owns conflict records between factions.
package war

import (
	"errors"
	"time"
)

// State of a war record. Active is the only non-terminal state; hostilities
// are permitted as soon as a war is declared.
type State uint8

const (
	StateActive State = iota
	StateEndedSurrender
	StateEndedTreaty
	StateEndedTimeout
	StateEndedEliminated
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateEndedSurrender:
		return "ended-surrender"
	case StateEndedTreaty:
		return "ended-treaty"
	case StateEndedTimeout:
		return "ended-timeout"
	case StateEndedEliminated:
		return "ended-eliminated"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s != StateActive
}

// Registry errors.
var (
	ErrInvalidPair         = errors.New("a faction cannot declare war on itself")
	ErrDuplicateWar        = errors.New("an active war already exists between these factions")
	ErrCassusBelliTooShort = errors.New("cassus belli too short")
	ErrWarNotFound         = errors.New("no active war between these factions")
)

// War is a time-bounded conflict between exactly two factions.
type War struct {
	ID          string    `json:"id"`
	AttackerID  string    `json:"attacker_id"`
	DefenderID  string    `json:"defender_id"`
	CassusBelli string    `json:"cassus_belli"`
	DeclaredAt  time.Time `json:"declared_at"`

	State   State     `json:"state"`
	EndedAt time.Time `json:"ended_at,omitzero"`
}

// clone returns a detached copy, safe to read without the registry lock.
func (w *War) clone() *War {
	c := *w
	return &c
}

// Active reports whether the war is still non-terminal.
func (w *War) Active() bool {
	return !w.State.Terminal()
}

// Involves reports whether the faction is a party to the war.
func (w *War) Involves(factionID string) bool {
	return w.AttackerID == factionID || w.DefenderID == factionID
}

// Record is the serialized form of a war.
type Record struct {
	ID          string    `json:"id"`
	AttackerID  string    `json:"attacker_id"`
	DefenderID  string    `json:"defender_id"`
	CassusBelli string    `json:"cassus_belli"`
	DeclaredAt  time.Time `json:"declared_at"`
	State       State     `json:"state"`
	EndedAt     time.Time `json:"ended_at,omitzero"`
}
