// Package faction owns faction identity, membership, and treasuries. It is
// the anchor every other registry references by faction id.
package faction

import (
	"errors"
	"maps"
)

// Member roles within a faction.
type Role uint8

const (
	RoleMember Role = iota
	RoleManager
	RoleLeader
)

func (r Role) String() string {
	switch r {
	case RoleLeader:
		return "leader"
	case RoleManager:
		return "manager"
	default:
		return "member"
	}
}

// Registry errors.
var (
	ErrAlreadyExists     = errors.New("faction already exists")
	ErrNotFound          = errors.New("faction not found")
	ErrOutOfRange        = errors.New("tax rate out of range")
	ErrAlreadyMember     = errors.New("user already belongs to a faction")
	ErrNotMember         = errors.New("user is not a member of the faction")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvariantViolation signals diverged registry state, not a user
	// mistake. Callers should halt the operation and surface it loudly.
	ErrInvariantViolation = errors.New("invariant violation")
)

// Faction is a persistent player group with membership, treasury, and tax
// policy. All mutable fields are guarded by the owning Registry's lock;
// mutate only through Registry methods.
type Faction struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	OwnerID     string          `json:"owner_id"`
	Members     map[string]Role `json:"members"`

	TaxRate    float64 `json:"tax_rate"`
	TaxChestID string  `json:"tax_chest_id,omitempty"`
	Treasury   int64   `json:"treasury"`
}

// HasMember reports whether userID is on the roster.
func (f *Faction) HasMember(userID string) bool {
	_, ok := f.Members[userID]
	return ok
}

// HasLeader reports whether userID holds the leader role.
func (f *Faction) HasLeader(userID string) bool {
	return f.Members[userID] == RoleLeader
}

// clone returns a detached copy, safe to read without the registry lock.
func (f *Faction) clone() *Faction {
	c := *f
	c.Members = make(map[string]Role, len(f.Members))
	maps.Copy(c.Members, f.Members)
	return &c
}

// MemberIDs returns the roster ids in no particular order.
func (f *Faction) MemberIDs() []string {
	ids := make([]string, 0, len(f.Members))
	for id := range f.Members {
		ids = append(ids, id)
	}
	return ids
}

// Record is the serialized form of a faction, sufficient to reconstruct it
// via Registry.Init.
type Record struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	OwnerID     string          `json:"owner_id"`
	Members     map[string]Role `json:"members"`
	TaxRate     float64         `json:"tax_rate"`
	TaxChestID  string          `json:"tax_chest_id,omitempty"`
	Treasury    int64           `json:"treasury"`
}
