// Package events provides the in-process notification bus the core publishes
// its collaborator hooks on. Delivery is fire-and-forget: the core never
// blocks on a consumer.
package events

import (
	"sync"
	"time"
)

// Event types published by the core.
const (
	FactionCreated   = "faction.created"
	FactionDisbanded = "faction.disbanded"
	FactionsChanged  = "factions.changed"
	AreaClaimLost    = "area.claim_lost"
	UpkeepDefault    = "upkeep.default"
	WarDeclared      = "war.declared"
	WarEnded         = "war.ended"
)

// Event is a notification emitted by the core registries.
type Event struct {
	Type      string    `json:"type"`
	FactionID string    `json:"faction_id,omitempty"`
	AreaID    string    `json:"area_id,omitempty"`
	WarID     string    `json:"war_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

// Bus is an in-process pub/sub for core events.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[chan Event]struct{})}
}

// Subscribe returns a channel receiving all subsequent events.
func (b *Bus) Subscribe() chan Event {
	ch := make(chan Event, 32)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel from the subscriber set.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

// Publish sends the event to every subscriber. Slow subscribers drop events
// rather than stall the publisher.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	b.mu.RLock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}
