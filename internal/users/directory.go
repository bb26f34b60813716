// Package users defines the collaborator boundary to the player directory:
// online presence and the player-side view of faction affiliation. The core
// consumes this interface; the game server implements it.
package users

import "sync"

// Directory is the slice of the player system the core depends on.
type Directory interface {
	// IsOnline reports whether the user is currently connected.
	IsOnline(userID string) bool
	// ClearFaction drops the user's faction affiliation on the player side.
	ClearFaction(userID string)
}

// MemoryDirectory is an in-memory Directory used by the daemon until a real
// game server is attached, and by tests.
type MemoryDirectory struct {
	mu       sync.RWMutex
	online   map[string]bool
	factions map[string]string
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		online:   make(map[string]bool),
		factions: make(map[string]string),
	}
}

// SetOnline marks the user connected or disconnected.
func (d *MemoryDirectory) SetOnline(userID string, online bool) {
	d.mu.Lock()
	d.online[userID] = online
	d.mu.Unlock()
}

// SetFaction records the user's affiliation on the player side.
func (d *MemoryDirectory) SetFaction(userID, factionID string) {
	d.mu.Lock()
	d.factions[userID] = factionID
	d.mu.Unlock()
}

// Faction returns the recorded affiliation, "" when none.
func (d *MemoryDirectory) Faction(userID string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.factions[userID]
}

func (d *MemoryDirectory) IsOnline(userID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.online[userID]
}

func (d *MemoryDirectory) ClearFaction(userID string) {
	d.mu.Lock()
	delete(d.factions, userID)
	d.mu.Unlock()
}
