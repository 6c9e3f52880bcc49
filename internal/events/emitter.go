// SPDX-License-Identifier: MPL-2.0

package events

import (
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

type (
	// Handler processes one event. Handlers run on the emitting goroutine and
	// must not block on engine calls that emit events themselves.
	Handler func(event *Event)

	// Emitter broadcasts events to subscribers. It is safe for concurrent use.
	// A nil *Emitter discards everything, so components can run without one.
	Emitter struct {
		mu   sync.RWMutex
		subs map[string]subscription
	}

	subscription struct {
		handler Handler
		types   []Type
	}
)

// NewEmitter creates an Emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{subs: make(map[string]subscription)}
}

// Subscribe registers handler for the given types (all types when none are
// given) and returns the subscription ID.
func (e *Emitter) Subscribe(handler Handler, types ...Type) string {
	id := uuid.NewString()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs[id] = subscription{handler: handler, types: types}
	return id
}

// Unsubscribe removes a subscription and reports whether it existed.
func (e *Emitter) Unsubscribe(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.subs[id]; !ok {
		return false
	}
	delete(e.subs, id)
	return true
}

// Emit delivers an event to every matching subscriber before returning.
// A panicking handler is logged and does not stop delivery to the others.
func (e *Emitter) Emit(eventType Type, data any) {
	if e == nil {
		return
	}

	e.mu.RLock()
	subs := make([]subscription, 0, len(e.subs))
	for _, s := range e.subs {
		if len(s.types) == 0 || slices.Contains(s.types, eventType) {
			subs = append(subs, s)
		}
	}
	e.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	event := &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
	for _, s := range subs {
		invoke(s.handler, event)
	}
}

// DatabaseChanged emits TypeDatabaseChanged.
func (e *Emitter) DatabaseChanged(db Database, count int) {
	e.Emit(TypeDatabaseChanged, DatabaseChangedData{Database: db, Count: count})
}

// Progress emits TypeInstallProgress.
func (e *Emitter) Progress(data InstallProgressData) {
	e.Emit(TypeInstallProgress, data)
}

// Complete emits TypeInstallComplete.
func (e *Emitter) Complete(data InstallCompleteData) {
	e.Emit(TypeInstallComplete, data)
}

// BusyChanged emits TypeBusyChanged.
func (e *Emitter) BusyChanged(data BusyChangedData) {
	e.Emit(TypeBusyChanged, data)
}

func invoke(handler Handler, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("event handler panicked", "event_type", event.Type, "event_id", event.ID, "panic", r)
		}
	}()
	handler(event)
}
