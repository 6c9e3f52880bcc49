// SPDX-License-Identifier: MPL-2.0

package owmod

import "slices"

type (
	// LocalMod is one entry of the local database.
	//
	// Entries whose manifest failed to parse have a zero Manifest, a non-nil
	// LoadErr and the InvalidManifest annotation; they are keyed by ModPath.
	LocalMod struct {
		Manifest Manifest
		Enabled  bool
		// ModPath is the absolute install directory.
		ModPath  string
		Errors   ErrorSet
		Warnings WarningSet
		LoadErr  error
	}

	// RemoteMod is one registry entry.
	RemoteMod struct {
		UniqueName       UniqueName   `json:"uniqueName" validate:"required"`
		Name             string       `json:"name"`
		Author           string       `json:"author"`
		AuthorDisplay    string       `json:"authorDisplay,omitempty"`
		Description      string       `json:"description,omitempty"`
		Version          string       `json:"version" validate:"required"`
		DownloadURL      string       `json:"downloadUrl" validate:"required,url"`
		DownloadCount    int64        `json:"downloadCount" validate:"gte=0"`
		FileSize         int64        `json:"fileSize" validate:"gte=0"`
		Required         bool         `json:"required,omitempty"`
		Dependencies     []UniqueName `json:"dependencies,omitempty" validate:"dive,required"`
		Conflicts        []UniqueName `json:"conflicts,omitempty" validate:"dive,required"`
		MinLoaderVersion string       `json:"owmlVersion,omitempty"`
		Prerelease       *Prerelease  `json:"prerelease,omitempty" validate:"omitempty"`
		Readme           *Readme      `json:"readme,omitempty"`
		Repo             string       `json:"repo,omitempty"`
		Slug             string       `json:"slug,omitempty"`
		Tags             []string     `json:"tags,omitempty"`
		Parent           UniqueName   `json:"parent,omitempty"`
		// Alpha is set for entries listed under the registry's alpha releases.
		Alpha bool `json:"-"`
	}

	// Prerelease is an optional prerelease build published alongside a registry entry.
	Prerelease struct {
		Version     string `json:"version" validate:"required"`
		DownloadURL string `json:"downloadUrl" validate:"required,url"`
	}

	// Readme points at the rendered and raw readme of a registry entry.
	Readme struct {
		HTMLURL     string `json:"htmlUrl,omitempty"`
		DownloadURL string `json:"downloadUrl,omitempty"`
	}
)

// Key returns the database key: the identity, or the path for failed and
// duplicate entries.
func (m *LocalMod) Key() string {
	if m.Failed() || m.Errors.Has(Duplicate) {
		return m.ModPath
	}
	return string(m.Manifest.UniqueName)
}

// Failed reports whether the manifest could not be loaded.
func (m *LocalMod) Failed() bool {
	return m.LoadErr != nil
}

// Clone returns a copy that shares no mutable state with m.
func (m *LocalMod) Clone() *LocalMod {
	out := *m
	out.Manifest.Dependencies = slices.Clone(m.Manifest.Dependencies)
	out.Manifest.Conflicts = slices.Clone(m.Manifest.Conflicts)
	out.Errors = m.Errors.Clone()
	out.Warnings = m.Warnings.Clone()
	return &out
}

// Manifest returns the manifest view of a registry entry.
func (r *RemoteMod) Manifest() Manifest {
	return Manifest{
		UniqueName:       r.UniqueName,
		Name:             r.Name,
		Author:           r.Author,
		Version:          r.Version,
		Dependencies:     r.Dependencies,
		Conflicts:        r.Conflicts,
		MinLoaderVersion: r.MinLoaderVersion,
	}
}

// ParsedVersion returns the registry version as an ordered Version.
func (r *RemoteMod) ParsedVersion() Version {
	return ParseVersion(r.Version)
}

// DisplayAuthor returns AuthorDisplay, falling back to Author.
func (r *RemoteMod) DisplayAuthor() string {
	if r.AuthorDisplay != "" {
		return r.AuthorDisplay
	}
	return r.Author
}
