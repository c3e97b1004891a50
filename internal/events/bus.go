// Package events provides a typed in-process event bus. Consumers that want
// to react to ledger changes (UI refresh, sync scheduling) subscribe here
// instead of polling the store.
package events

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/tallyapp/tally/internal/models"
)

// ChangeKind classifies what happened to an entity.
type ChangeKind string

const (
	// ChangeCreated and ChangeUpdated come from direct local mutations.
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"

	// ChangeDeleted means the entity was tombstoned locally or removed by
	// an incoming remote tombstone.
	ChangeDeleted ChangeKind = "deleted"

	// ChangePulled means the sync engine applied a remote version.
	ChangePulled ChangeKind = "pulled"
)

// Event is one ledger change notification.
type Event struct {
	Entity models.EntityType
	Kind   ChangeKind
	ID     uuid.UUID
}

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// that falls behind loses events rather than stalling the writer.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a buffered subscriber channel. The returned cancel
// function removes the subscription and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, buffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber with room in its buffer.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			slog.Debug("event dropped for slow subscriber",
				"entity", event.Entity,
				"kind", event.Kind,
				"id", event.ID,
			)
		}
	}
}
