// SPDX-License-Identifier: MPL-2.0

package localdb

import (
	"iter"
	"slices"

	"github.com/dgarroDC/ow-mod-man/internal/search"
	"github.com/dgarroDC/ow-mod-man/pkg/owmod"
)

// Snapshot is an immutable view of the local database. Entries must not be
// modified; mutations go through DB, which publishes a new Snapshot.
type Snapshot struct {
	mods   []*owmod.LocalMod
	byName map[owmod.UniqueName]*owmod.LocalMod
	byKey  map[string]*owmod.LocalMod
}

func newSnapshot(mods []*owmod.LocalMod) *Snapshot {
	s := &Snapshot{
		mods:   mods,
		byName: make(map[owmod.UniqueName]*owmod.LocalMod, len(mods)),
		byKey:  make(map[string]*owmod.LocalMod, len(mods)),
	}
	for _, m := range mods {
		s.byKey[m.Key()] = m
		if m.Failed() || m.Errors.Has(owmod.Duplicate) {
			continue
		}
		if _, ok := s.byName[m.Manifest.UniqueName]; !ok {
			s.byName[m.Manifest.UniqueName] = m
		}
	}
	return s
}

// Get returns the canonical entry for name: the first directory that
// declared it.
func (s *Snapshot) Get(name owmod.UniqueName) (*owmod.LocalMod, bool) {
	m, ok := s.byName[name]
	return m, ok
}

// GetByKey returns an entry by identity, or by path for failed and
// duplicate entries.
func (s *Snapshot) GetByKey(key string) (*owmod.LocalMod, bool) {
	m, ok := s.byKey[key]
	return m, ok
}

// All returns every entry in scan order, including failed and duplicate ones.
func (s *Snapshot) All() []*owmod.LocalMod {
	return slices.Clone(s.mods)
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	return len(s.mods)
}

// Valid returns entries with a parsed manifest, in scan order.
func (s *Snapshot) Valid() []*owmod.LocalMod {
	return s.filter(func(m *owmod.LocalMod) bool { return !m.Failed() })
}

// Active returns enabled entries, in scan order.
func (s *Snapshot) Active() []*owmod.LocalMod {
	return s.filter(func(m *owmod.LocalMod) bool { return !m.Failed() && m.Enabled })
}

// Failed returns entries whose manifest could not be parsed.
func (s *Snapshot) Failed() []*owmod.LocalMod {
	return s.filter((*owmod.LocalMod).Failed)
}

// Names returns the canonical identities, sorted.
func (s *Snapshot) Names() []owmod.UniqueName {
	names := make([]owmod.UniqueName, 0, len(s.byName))
	for n := range s.byName {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Search ranks canonical entries against query by name, author and identity.
// An empty query yields every canonical entry in identity order.
func (s *Snapshot) Search(query string) iter.Seq[*owmod.LocalMod] {
	return func(yield func(*owmod.LocalMod) bool) {
		if query == "" {
			for _, n := range s.Names() {
				if !yield(s.byName[n]) {
					return
				}
			}
			return
		}
		candidates := make([]search.Candidate, 0, len(s.byName))
		for n, m := range s.byName {
			candidates = append(candidates, search.Candidate{
				Name:   n,
				Fields: []string{m.Manifest.Name, m.Manifest.Author, string(n)},
			})
		}
		for n := range search.Rank(query, candidates) {
			if !yield(s.byName[n]) {
				return
			}
		}
	}
}

func (s *Snapshot) filter(keep func(*owmod.LocalMod) bool) []*owmod.LocalMod {
	var out []*owmod.LocalMod
	for _, m := range s.mods {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}
