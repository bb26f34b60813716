package faction

import (
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/rossicka/imperium/internal/events"
)

// Registry is the process-wide authority over factions. It exclusively owns
// Faction records and member-to-faction links. Accessors return detached
// snapshots; all mutation goes through registry methods under the lock.
type Registry struct {
	mu       sync.RWMutex
	factions map[string]*Faction

	bus            *events.Bus
	defaultTaxRate float64
	maxTaxRate     float64
}

// NewRegistry creates an empty registry publishing hooks on bus.
func NewRegistry(bus *events.Bus, defaultTaxRate, maxTaxRate float64) *Registry {
	return &Registry{
		factions:       make(map[string]*Faction),
		bus:            bus,
		defaultTaxRate: defaultTaxRate,
		maxTaxRate:     maxTaxRate,
	}
}

// Create registers a new faction with owner as its sole member and announces
// it to observers. The owner must not already belong to a faction; checking
// here, under the write lock, keeps the single-affiliation invariant safe
// against concurrent creates with the same owner.
func (r *Registry) Create(id, description, ownerID string) (*Faction, error) {
	r.mu.Lock()
	if _, ok := r.factions[id]; ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("create faction %q: %w", id, ErrAlreadyExists)
	}
	for _, other := range r.factions {
		if other.HasMember(ownerID) {
			r.mu.Unlock()
			return nil, fmt.Errorf("owner %q is already in faction %q: %w", ownerID, other.ID, ErrAlreadyMember)
		}
	}

	f := &Faction{
		ID:          id,
		Description: description,
		OwnerID:     ownerID,
		Members:     map[string]Role{ownerID: RoleLeader},
		TaxRate:     r.defaultTaxRate,
	}
	r.factions[id] = f
	snapshot := f.clone()
	r.mu.Unlock()

	slog.Info("faction created", "faction", id, "owner", ownerID)
	r.bus.Publish(events.Event{Type: events.FactionCreated, FactionID: id})
	return snapshot, nil
}

// Get returns a snapshot of the faction with the given id, or nil if absent.
func (r *Registry) Get(id string) *Faction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factions[id]
	if !ok {
		return nil
	}
	return f.clone()
}

// Exists reports whether a faction with the given id is registered.
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factions[id]
	return ok
}

// All returns snapshots of every registered faction in no particular order.
func (r *Registry) All() []*Faction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*Faction, 0, len(r.factions))
	for _, f := range r.factions {
		all = append(all, f.clone())
	}
	return all
}

// GetByMember returns the faction userID belongs to, or nil. At most one
// match exists because a user belongs to at most one faction.
func (r *Registry) GetByMember(userID string) *Faction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.factions {
		if f.HasMember(userID) {
			return f.clone()
		}
	}
	return nil
}

// GetByTaxChest returns the faction whose tax chest is chestID. Two factions
// sharing a chest means the registries have diverged; that surfaces as
// ErrInvariantViolation rather than an arbitrary winner.
func (r *Registry) GetByTaxChest(chestID string) (*Faction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *Faction
	for _, f := range r.factions {
		if f.TaxChestID != "" && f.TaxChestID == chestID {
			if found != nil {
				return nil, fmt.Errorf("tax chest %q claimed by factions %q and %q: %w",
					chestID, found.ID, f.ID, ErrInvariantViolation)
			}
			found = f
		}
	}
	if found == nil {
		return nil, nil
	}
	return found.clone(), nil
}

// SetTaxRate updates a faction's tax rate. Rates outside [0, MaxTaxRate]
// leave the prior rate unchanged.
func (r *Registry) SetTaxRate(id string, rate float64) error {
	r.mu.Lock()
	f, ok := r.factions[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("set tax rate for %q: %w", id, ErrNotFound)
	}
	if rate < 0 || rate > r.maxTaxRate {
		r.mu.Unlock()
		return fmt.Errorf("tax rate %v outside [0, %v]: %w", rate, r.maxTaxRate, ErrOutOfRange)
	}
	f.TaxRate = rate
	r.mu.Unlock()

	r.bus.Publish(events.Event{Type: events.FactionsChanged, FactionID: id})
	return nil
}

// SetTaxChest reassigns the faction's tax collection point. Uniqueness is not
// checked eagerly; GetByTaxChest catches duplicates lazily.
func (r *Registry) SetTaxChest(id, chestID string) error {
	r.mu.Lock()
	f, ok := r.factions[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("set tax chest for %q: %w", id, ErrNotFound)
	}
	f.TaxChestID = chestID
	r.mu.Unlock()

	r.bus.Publish(events.Event{Type: events.FactionsChanged, FactionID: id})
	return nil
}

// AddMember adds userID to the faction's roster. A user belongs to at most
// one faction, so joining while affiliated elsewhere fails.
func (r *Registry) AddMember(id, userID string, role Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.factions[id]
	if !ok {
		return fmt.Errorf("add member to %q: %w", id, ErrNotFound)
	}
	for _, other := range r.factions {
		if other.HasMember(userID) {
			return fmt.Errorf("user %q is already in faction %q: %w", userID, other.ID, ErrAlreadyMember)
		}
	}
	f.Members[userID] = role
	return nil
}

// RemoveMember drops userID from the roster. The owner cannot leave; the
// faction is disbanded instead.
func (r *Registry) RemoveMember(id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.factions[id]
	if !ok {
		return fmt.Errorf("remove member from %q: %w", id, ErrNotFound)
	}
	if !f.HasMember(userID) {
		return fmt.Errorf("user %q not in faction %q: %w", userID, id, ErrNotMember)
	}
	if f.OwnerID == userID {
		return fmt.Errorf("owner %q cannot leave faction %q: %w", userID, id, ErrInvariantViolation)
	}
	delete(f.Members, userID)
	return nil
}

// SetRole updates an existing member's role.
func (r *Registry) SetRole(id, userID string, role Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.factions[id]
	if !ok {
		return fmt.Errorf("set role in %q: %w", id, ErrNotFound)
	}
	if !f.HasMember(userID) {
		return fmt.Errorf("user %q not in faction %q: %w", userID, id, ErrNotMember)
	}
	f.Members[userID] = role
	return nil
}

// Deposit credits the faction treasury.
func (r *Registry) Deposit(id string, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.factions[id]
	if !ok {
		return fmt.Errorf("deposit to %q: %w", id, ErrNotFound)
	}
	f.Treasury += amount
	return nil
}

// TryWithdraw debits the faction treasury. It never blocks waiting for
// funds: an uncovered debit fails immediately with ErrInsufficientFunds.
func (r *Registry) TryWithdraw(id string, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.factions[id]
	if !ok {
		return fmt.Errorf("withdraw from %q: %w", id, ErrNotFound)
	}
	if f.Treasury < amount {
		return fmt.Errorf("faction %q has %d, needs %d: %w", id, f.Treasury, amount, ErrInsufficientFunds)
	}
	f.Treasury -= amount
	return nil
}

// Remove deletes the faction from the registry. Only the lifecycle
// coordinator calls this, after territory and wars have been unwound.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.factions, id)
	r.mu.Unlock()
}

// Init restores factions from serialized records. It distinguishes restore
// from create: no creation hooks fire, and re-initializing is idempotent.
func (r *Registry) Init(records []Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slog.Info("restoring factions", "count", len(records))
	for _, rec := range records {
		members := make(map[string]Role, len(rec.Members))
		maps.Copy(members, rec.Members)
		r.factions[rec.ID] = &Faction{
			ID:          rec.ID,
			Description: rec.Description,
			OwnerID:     rec.OwnerID,
			Members:     members,
			TaxRate:     rec.TaxRate,
			TaxChestID:  rec.TaxChestID,
			Treasury:    rec.Treasury,
		}
	}
}

// Serialize snapshots every faction for persistence.
func (r *Registry) Serialize() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	records := make([]Record, 0, len(r.factions))
	for _, f := range r.factions {
		members := make(map[string]Role, len(f.Members))
		maps.Copy(members, f.Members)
		records = append(records, Record{
			ID:          f.ID,
			Description: f.Description,
			OwnerID:     f.OwnerID,
			Members:     members,
			TaxRate:     f.TaxRate,
			TaxChestID:  f.TaxChestID,
			Treasury:    f.Treasury,
		})
	}
	return records
}

// Destroy releases all faction state. Process shutdown only.
func (r *Registry) Destroy() {
	r.mu.Lock()
	n := len(r.factions)
	r.factions = make(map[string]*Faction)
	r.mu.Unlock()
	slog.Info("faction registry destroyed", "count", n)
}
