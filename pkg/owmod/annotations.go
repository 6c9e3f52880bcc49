// SPDX-License-Identifier: MPL-2.0

package owmod

import (
	"maps"
	"slices"
)

type (
	// ErrorSet is the set of error annotations on one mod. Each kind maps to
	// the identities it refers to (missing dependencies, conflict partners),
	// which may be empty.
	ErrorSet map[ErrorKind][]UniqueName

	// WarningSet is the set of warning annotations on one mod.
	WarningSet map[WarningKind][]UniqueName
)

// Has reports whether kind is in the set.
func (s ErrorSet) Has(kind ErrorKind) bool {
	_, ok := s[kind]
	return ok
}

// Add records kind with the given related identities, keeping them sorted and unique.
func (s ErrorSet) Add(kind ErrorKind, related ...UniqueName) {
	s[kind] = mergeNames(s[kind], related)
}

// Kinds returns the kinds in the set in sorted order.
func (s ErrorSet) Kinds() []ErrorKind {
	return slices.Sorted(maps.Keys(s))
}

// Clone returns a deep copy of the set.
func (s ErrorSet) Clone() ErrorSet {
	out := make(ErrorSet, len(s))
	for k, v := range s {
		out[k] = slices.Clone(v)
	}
	return out
}

// Has reports whether kind is in the set.
func (s WarningSet) Has(kind WarningKind) bool {
	_, ok := s[kind]
	return ok
}

// Add records kind with the given related identities, keeping them sorted and unique.
func (s WarningSet) Add(kind WarningKind, related ...UniqueName) {
	s[kind] = mergeNames(s[kind], related)
}

// Kinds returns the kinds in the set in sorted order.
func (s WarningSet) Kinds() []WarningKind {
	return slices.Sorted(maps.Keys(s))
}

// Clone returns a deep copy of the set.
func (s WarningSet) Clone() WarningSet {
	out := make(WarningSet, len(s))
	for k, v := range s {
		out[k] = slices.Clone(v)
	}
	return out
}

func mergeNames(have, add []UniqueName) []UniqueName {
	if len(add) == 0 {
		return have
	}
	out := append(slices.Clone(have), add...)
	slices.Sort(out)
	return slices.Compact(out)
}
