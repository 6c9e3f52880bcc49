// SPDX-License-Identifier: MPL-2.0

// Package validate recomputes the per-mod error and warning annotations of
// the local database. Run is pure: it reads its inputs, returns annotated
// copies and performs no I/O, so running it twice on the same inputs yields
// the same result.
package validate

import (
	"github.com/dgarroDC/ow-mod-man/pkg/owmod"
)

type (
	// RemoteIndex looks up registry entries. A nil RemoteIndex disables the
	// outdated check.
	RemoteIndex interface {
		Get(name owmod.UniqueName) (*owmod.RemoteMod, bool)
	}

	// Options carries inputs that do not come from either database.
	Options struct {
		// LoaderVersion is the installed loader version. Empty skips the
		// loader requirement check.
		LoaderVersion string
	}
)

// scanKinds are produced by the directory scan and survive revalidation.
var scanKinds = []owmod.ErrorKind{owmod.InvalidManifest, owmod.Duplicate}

// Run returns annotated copies of mods in the same order. Derived annotations
// on the inputs are discarded first; InvalidManifest and Duplicate are kept
// as the scan produced them.
func Run(mods []*owmod.LocalMod, remote RemoteIndex, opts Options) []*owmod.LocalMod {
	// canonical is the first valid, non-duplicate entry per identity.
	canonical := make(map[owmod.UniqueName]*owmod.LocalMod, len(mods))
	for _, m := range mods {
		if m.Failed() || m.Errors.Has(owmod.Duplicate) {
			continue
		}
		if _, ok := canonical[m.Manifest.UniqueName]; !ok {
			canonical[m.Manifest.UniqueName] = m
		}
	}

	// conflictedBy maps an identity to the enabled mods that declare a
	// conflict with it.
	conflictedBy := make(map[owmod.UniqueName][]owmod.UniqueName)
	for name, m := range canonical {
		if !m.Enabled {
			continue
		}
		for _, c := range m.Manifest.Conflicts {
			conflictedBy[c] = append(conflictedBy[c], name)
		}
	}

	var loader owmod.Version
	if opts.LoaderVersion != "" {
		loader = owmod.ParseVersion(opts.LoaderVersion)
	}

	out := make([]*owmod.LocalMod, 0, len(mods))
	for _, m := range mods {
		c := m.Clone()
		c.Errors = make(owmod.ErrorSet)
		c.Warnings = make(owmod.WarningSet)
		for _, k := range scanKinds {
			if m.Errors.Has(k) {
				c.Errors.Add(k, m.Errors[k]...)
			}
		}
		if !c.Failed() {
			checkDependencies(c, canonical)
			checkConflicts(c, canonical, conflictedBy)
			checkVersions(c, remote, loader)
		}
		out = append(out, c)
	}
	return out
}

func checkDependencies(m *owmod.LocalMod, canonical map[owmod.UniqueName]*owmod.LocalMod) {
	for _, dep := range m.Manifest.Dependencies {
		d, ok := canonical[dep]
		switch {
		case !ok:
			m.Errors.Add(owmod.MissingDependency, dep)
		case m.Enabled && !d.Enabled:
			m.Errors.Add(owmod.DisabledDependency, dep)
		}
	}
}

func checkConflicts(m *owmod.LocalMod, canonical map[owmod.UniqueName]*owmod.LocalMod, conflictedBy map[owmod.UniqueName][]owmod.UniqueName) {
	if !m.Enabled {
		return
	}
	self := m.Manifest.UniqueName
	for _, c := range m.Manifest.Conflicts {
		if other, ok := canonical[c]; ok && other.Enabled && c != self {
			m.Errors.Add(owmod.ConflictActive, c)
		}
	}
	for _, by := range conflictedBy[self] {
		if by != self {
			m.Errors.Add(owmod.ConflictActive, by)
		}
	}
}

func checkVersions(m *owmod.LocalMod, remote RemoteIndex, loader owmod.Version) {
	if remote != nil {
		if r, ok := remote.Get(m.Manifest.UniqueName); ok {
			if m.Manifest.ParsedVersion().Less(r.ParsedVersion()) {
				m.Warnings.Add(owmod.Outdated)
			}
		}
	}
	if loader.Known() && m.Manifest.MinLoaderVersion != "" {
		if loader.Less(owmod.ParseVersion(m.Manifest.MinLoaderVersion)) {
			m.Warnings.Add(owmod.LoaderOutdated)
		}
	}
}

// HasIssues reports whether any enabled, valid mod carries an error annotation.
func HasIssues(mods []*owmod.LocalMod) bool {
	for _, m := range mods {
		if m.Enabled && !m.Failed() && len(m.Errors) > 0 {
			return true
		}
	}
	return false
}
