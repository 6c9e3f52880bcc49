// SPDX-License-Identifier: MPL-2.0

package remotedb

import (
	"cmp"
	"iter"
	"slices"
	"time"

	"github.com/dgarroDC/ow-mod-man/internal/search"
	"github.com/dgarroDC/ow-mod-man/pkg/owmod"
)

// Snapshot is an immutable view of one fetched registry document.
type Snapshot struct {
	mods      map[owmod.UniqueName]*owmod.RemoteMod
	etag      string
	fetchedAt time.Time
}

func newSnapshot(mods []*owmod.RemoteMod, etag string, fetchedAt time.Time) *Snapshot {
	s := &Snapshot{
		mods:      make(map[owmod.UniqueName]*owmod.RemoteMod, len(mods)),
		etag:      etag,
		fetchedAt: fetchedAt,
	}
	for _, m := range mods {
		s.mods[m.UniqueName] = m
	}
	return s
}

// Get returns the registry entry for name.
func (s *Snapshot) Get(name owmod.UniqueName) (*owmod.RemoteMod, bool) {
	m, ok := s.mods[name]
	return m, ok
}

// Len returns the number of entries.
func (s *Snapshot) Len() int { return len(s.mods) }

// ETag returns the validator the document was served with.
func (s *Snapshot) ETag() string { return s.etag }

// FetchedAt returns when the document was fetched; zero for an empty database.
func (s *Snapshot) FetchedAt() time.Time { return s.fetchedAt }

// All returns every entry, most downloaded first, then by identity.
func (s *Snapshot) All() []*owmod.RemoteMod {
	out := make([]*owmod.RemoteMod, 0, len(s.mods))
	for _, m := range s.mods {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b *owmod.RemoteMod) int {
		if c := cmp.Compare(b.DownloadCount, a.DownloadCount); c != 0 {
			return c
		}
		return cmp.Compare(a.UniqueName, b.UniqueName)
	})
	return out
}

// Search ranks entries against query by name, author and identity. It is
// lazy and recomputed on every iteration. An empty query yields All.
func (s *Snapshot) Search(query string) iter.Seq[*owmod.RemoteMod] {
	return func(yield func(*owmod.RemoteMod) bool) {
		if query == "" {
			for _, m := range s.All() {
				if !yield(m) {
					return
				}
			}
			return
		}
		candidates := make([]search.Candidate, 0, len(s.mods))
		for name, m := range s.mods {
			candidates = append(candidates, search.Candidate{
				Name:   name,
				Fields: []string{m.Name, m.DisplayAuthor(), string(name)},
			})
		}
		for name := range search.Rank(query, candidates) {
			if !yield(s.mods[name]) {
				return
			}
		}
	}
}
