// Package events provides the publish/subscribe bus that carries schema
// mutations from a store to its subscribers (persistence, audit, metrics).
package events

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/artpar/fieldschema/core/schema"
	"github.com/rs/zerolog"
)

// Event names published by schema stores.
const (
	FieldAdded     = "field.added"
	FieldEdited    = "field.edited"
	FieldDeleted   = "field.deleted"
	FieldReordered = "field.reordered"
	SectionToggled = "section.toggled"
)

// Event represents one applied mutation.
type Event struct {
	// Name is the event name (e.g., "field.added").
	Name string

	// Module is the module whose schema changed.
	Module string

	// SectionID and FieldID locate the change. FieldID is empty for
	// section events.
	SectionID string
	FieldID   string

	// Actor is who made the change, when known.
	Actor string

	// Before and After hold the field around the change. Before is nil for
	// additions, After is nil for deletions.
	Before *schema.Field
	After  *schema.Field

	// Snapshot is the full schema state after the change.
	Snapshot schema.Snapshot

	At time.Time
}

// Handler is a function that processes an event.
type Handler func(ctx context.Context, event Event) error

// Bus is a simple publish/subscribe event bus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   zerolog.Logger
}

// NewBus creates a new event bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for an event.
// Supports wildcard subscriptions:
//   - "field.added" - exact match
//   - "field.*" - all field events
//   - "*" - all events
func (b *Bus) Subscribe(event string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], handler)
}

// Publish delivers an event to all matching handlers, synchronously and in
// registration order (exact, then group wildcard, then global). A failing
// handler is logged and does not stop delivery. Handlers must not publish
// back into a store that is publishing to them.
func (b *Bus) Publish(ctx context.Context, event Event) {
	matched := b.match(event.Name)

	b.logger.Debug().
		Str("event", event.Name).
		Str("module", event.Module).
		Str("section", event.SectionID).
		Str("field", event.FieldID).
		Int("handlers", len(matched)).
		Msg("event emitted")

	for _, handler := range matched {
		if err := handler(ctx, event); err != nil {
			b.logger.Error().
				Err(err).
				Str("event", event.Name).
				Str("module", event.Module).
				Msg("event handler error")
		}
	}
}

// HasSubscribers checks if any handlers are registered for an event.
func (b *Bus) HasSubscribers(event string) bool {
	return len(b.match(event)) > 0
}

func (b *Bus) match(name string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var matched []Handler
	matched = append(matched, b.handlers[name]...)
	if group, _, ok := strings.Cut(name, "."); ok && group != "" {
		matched = append(matched, b.handlers[group+".*"]...)
	}
	if name != "*" {
		matched = append(matched, b.handlers["*"]...)
	}
	return matched
}
