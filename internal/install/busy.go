// SPDX-License-Identifier: MPL-2.0

package install

import (
	"slices"
	"sync"

	"github.com/dgarroDC/ow-mod-man/internal/events"
	"github.com/dgarroDC/ow-mod-man/pkg/owmod"
)

// BusySet tracks mods with an install, update or uninstall in flight.
// A second request for the same mod is rejected, never queued.
type BusySet struct {
	mu     sync.Mutex
	mods   map[owmod.UniqueName]struct{}
	events *events.Emitter
}

// NewBusySet creates an empty set. emitter may be nil.
func NewBusySet(emitter *events.Emitter) *BusySet {
	return &BusySet{
		mods:   make(map[owmod.UniqueName]struct{}),
		events: emitter,
	}
}

// Acquire marks name busy and returns the function that releases it. It
// fails with BusyError when name is already busy.
func (b *BusySet) Acquire(name owmod.UniqueName) (release func(), err error) {
	b.mu.Lock()
	if _, ok := b.mods[name]; ok {
		b.mu.Unlock()
		return nil, owmod.NewError(owmod.BusyError, name, nil)
	}
	b.mods[name] = struct{}{}
	b.mu.Unlock()

	inFlight.Inc()
	b.events.BusyChanged(events.BusyChangedData{Mod: name, Busy: true})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.mods, name)
			b.mu.Unlock()
			inFlight.Dec()
			b.events.BusyChanged(events.BusyChangedData{Mod: name, Busy: false})
		})
	}, nil
}

// Busy reports whether name has an operation in flight.
func (b *BusySet) Busy(name owmod.UniqueName) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.mods[name]
	return ok
}

// List returns the busy mods, sorted.
func (b *BusySet) List() []owmod.UniqueName {
	b.mu.Lock()
	out := make([]owmod.UniqueName, 0, len(b.mods))
	for name := range b.mods {
		out = append(out, name)
	}
	b.mu.Unlock()
	slices.Sort(out)
	return out
}
