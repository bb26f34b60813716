package war

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rossicka/imperium/internal/events"
)

// Registry is the process-wide authority over war records. Historical
// (terminal) wars are retained alongside active ones. Accessors return
// detached snapshots; all mutation goes through registry methods.
type Registry struct {
	mu   sync.RWMutex
	wars map[string]*War

	bus               *events.Bus
	minCassusBelliLen int

	now func() time.Time
}

// NewRegistry creates an empty registry publishing hooks on bus.
func NewRegistry(bus *events.Bus, minCassusBelliLen int) *Registry {
	return &Registry{
		wars:              make(map[string]*War),
		bus:               bus,
		minCassusBelliLen: minCassusBelliLen,
		now:               time.Now,
	}
}

// Declare opens a war between attacker and defender. At most one active war
// may exist per unordered pair. Both faction ids are assumed validated by
// the coordinator.
func (r *Registry) Declare(attackerID, defenderID, cassusBelli string) (*War, error) {
	if attackerID == defenderID {
		return nil, fmt.Errorf("declare war %q vs %q: %w", attackerID, defenderID, ErrInvalidPair)
	}
	if len(cassusBelli) < r.minCassusBelliLen {
		return nil, fmt.Errorf("cassus belli %d chars, need %d: %w",
			len(cassusBelli), r.minCassusBelliLen, ErrCassusBelliTooShort)
	}

	r.mu.Lock()
	if w := r.activeBetweenLocked(attackerID, defenderID); w != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("declare war %q vs %q: %w", attackerID, defenderID, ErrDuplicateWar)
	}

	w := &War{
		ID:          uuid.NewString(),
		AttackerID:  attackerID,
		DefenderID:  defenderID,
		CassusBelli: cassusBelli,
		DeclaredAt:  r.now(),
		State:       StateActive,
	}
	r.wars[w.ID] = w
	snapshot := w.clone()
	r.mu.Unlock()

	slog.Info("war declared", "war", snapshot.ID, "attacker", attackerID, "defender", defenderID)
	r.bus.Publish(events.Event{Type: events.WarDeclared, WarID: snapshot.ID, FactionID: attackerID, Detail: defenderID})
	return snapshot, nil
}

// Get returns a snapshot of the war with the given id, or nil.
func (r *Registry) Get(id string) *War {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wars[id]
	if !ok {
		return nil
	}
	return w.clone()
}

// All returns snapshots of every war record, terminal ones included.
func (r *Registry) All() []*War {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*War, 0, len(r.wars))
	for _, w := range r.wars {
		all = append(all, w.clone())
	}
	return all
}

// GetActiveWars returns snapshots of every non-terminal war.
func (r *Registry) GetActiveWars() []*War {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var active []*War
	for _, w := range r.wars {
		if w.Active() {
			active = append(active, w.clone())
		}
	}
	return active
}

// GetAllActiveWarsByFaction returns snapshots of every non-terminal war the
// faction is a party to.
func (r *Registry) GetAllActiveWarsByFaction(factionID string) []*War {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var active []*War
	for _, w := range r.wars {
		if w.Active() && w.Involves(factionID) {
			active = append(active, w.clone())
		}
	}
	return active
}

// IsAtWar reports whether an active war exists between the two factions.
func (r *Registry) IsAtWar(a, b string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeBetweenLocked(a, b) != nil
}

func (r *Registry) activeBetweenLocked(a, b string) *War {
	for _, w := range r.wars {
		if !w.Active() {
			continue
		}
		if (w.AttackerID == a && w.DefenderID == b) || (w.AttackerID == b && w.DefenderID == a) {
			return w
		}
	}
	return nil
}

// End transitions the active war between the two factions to the given
// terminal state.
func (r *Registry) End(a, b string, state State) (*War, error) {
	r.mu.Lock()
	w := r.activeBetweenLocked(a, b)
	if w == nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("end war %q vs %q: %w", a, b, ErrWarNotFound)
	}
	r.endLocked(w, state)
	snapshot := w.clone()
	r.mu.Unlock()

	r.bus.Publish(events.Event{Type: events.WarEnded, WarID: snapshot.ID, Detail: state.String()})
	return snapshot, nil
}

func (r *Registry) endLocked(w *War, state State) {
	w.State = state
	w.EndedAt = r.now()
	slog.Info("war ended", "war", w.ID, "attacker", w.AttackerID, "defender", w.DefenderID, "reason", state.String())
}

// EndAllForEliminatedFaction forces every non-terminal war involving the
// faction to ended-eliminated. No-op when none exist, so disband cascades
// can always call it.
func (r *Registry) EndAllForEliminatedFaction(factionID string) []*War {
	r.mu.Lock()
	var ended []*War
	for _, w := range r.wars {
		if w.Active() && w.Involves(factionID) {
			r.endLocked(w, StateEndedEliminated)
			ended = append(ended, w.clone())
		}
	}
	r.mu.Unlock()

	for _, w := range ended {
		r.bus.Publish(events.Event{Type: events.WarEnded, WarID: w.ID, Detail: StateEndedEliminated.String()})
	}
	return ended
}

// ExpireOlderThan times out every active war declared more than maxAge ago.
func (r *Registry) ExpireOlderThan(maxAge time.Duration) []*War {
	cutoff := r.now().Add(-maxAge)

	r.mu.Lock()
	var expired []*War
	for _, w := range r.wars {
		if w.Active() && w.DeclaredAt.Before(cutoff) {
			r.endLocked(w, StateEndedTimeout)
			expired = append(expired, w.clone())
		}
	}
	r.mu.Unlock()

	for _, w := range expired {
		r.bus.Publish(events.Event{Type: events.WarEnded, WarID: w.ID, Detail: StateEndedTimeout.String()})
	}
	return expired
}

// Init restores wars from serialized records.
func (r *Registry) Init(records []Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slog.Info("restoring wars", "count", len(records))
	for _, rec := range records {
		r.wars[rec.ID] = &War{
			ID:          rec.ID,
			AttackerID:  rec.AttackerID,
			DefenderID:  rec.DefenderID,
			CassusBelli: rec.CassusBelli,
			DeclaredAt:  rec.DeclaredAt,
			State:       rec.State,
			EndedAt:     rec.EndedAt,
		}
	}
}

// Serialize snapshots every war for persistence.
func (r *Registry) Serialize() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	records := make([]Record, 0, len(r.wars))
	for _, w := range r.wars {
		records = append(records, Record{
			ID:          w.ID,
			AttackerID:  w.AttackerID,
			DefenderID:  w.DefenderID,
			CassusBelli: w.CassusBelli,
			DeclaredAt:  w.DeclaredAt,
			State:       w.State,
			EndedAt:     w.EndedAt,
		})
	}
	return records
}

// Destroy releases all war state. Process shutdown only.
func (r *Registry) Destroy() {
	r.mu.Lock()
	n := len(r.wars)
	r.wars = make(map[string]*War)
	r.mu.Unlock()
	slog.Info("war registry destroyed", "count", n)
}
