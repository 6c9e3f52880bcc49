// SPDX-License-Identifier: MPL-2.0

// Package search ranks mods against a free-text query.
package search

import (
	"cmp"
	"iter"
	"slices"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/dgarroDC/ow-mod-man/pkg/owmod"
)

// Candidate is one searchable mod. Fields are matched in order; the first
// field is also the one checked for an exact prefix match.
type Candidate struct {
	Name   owmod.UniqueName
	Fields []string
}

type scored struct {
	name     owmod.UniqueName
	distance int
	prefix   bool
}

// Rank yields the names of candidates matching query, best match first.
// A candidate matches when the query's characters appear in order in any
// field (case-insensitive, diacritics folded); its score is the smallest
// edit distance over matching fields. Equal scores put exact prefix matches
// first, then order by identity. The sequence is recomputed on every
// iteration.
func Rank(query string, candidates []Candidate) iter.Seq[owmod.UniqueName] {
	return func(yield func(owmod.UniqueName) bool) {
		q := strings.TrimSpace(query)
		results := make([]scored, 0, len(candidates))
		for _, c := range candidates {
			if s, ok := score(q, c); ok {
				results = append(results, s)
			}
		}
		slices.SortFunc(results, func(a, b scored) int {
			if c := cmp.Compare(a.distance, b.distance); c != 0 {
				return c
			}
			if a.prefix != b.prefix {
				if a.prefix {
					return -1
				}
				return 1
			}
			return cmp.Compare(a.name, b.name)
		})
		for _, r := range results {
			if !yield(r.name) {
				return
			}
		}
	}
}

func score(query string, c Candidate) (scored, bool) {
	best := -1
	for _, f := range c.Fields {
		if f == "" {
			continue
		}
		d := fuzzy.RankMatchNormalizedFold(query, f)
		if d >= 0 && (best < 0 || d < best) {
			best = d
		}
	}
	if best < 0 {
		return scored{}, false
	}
	prefix := false
	if len(c.Fields) > 0 {
		prefix = strings.HasPrefix(strings.ToLower(c.Fields[0]), strings.ToLower(query))
	}
	return scored{name: c.Name, distance: best, prefix: prefix}, true
}
