// SPDX-License-Identifier: MPL-2.0

package owmod

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgarroDC/ow-mod-man/pkg/cueutil"
)

const (
	// ManifestFileName is the manifest file expected in every mod directory.
	ManifestFileName = "manifest.json"

	// maxManifestSize bounds manifest reads.
	maxManifestSize = 1 << 20
)

//go:embed manifest_schema.cue
var manifestSchema []byte

type (
	// Manifest is the metadata a mod declares about itself.
	Manifest struct {
		UniqueName UniqueName `json:"uniqueName"`
		Name       string     `json:"name,omitempty"`
		Author     string     `json:"author,omitempty"`
		// Version is kept as text; use ParsedVersion for ordering.
		Version      string       `json:"version,omitempty"`
		Dependencies []UniqueName `json:"dependencies,omitempty"`
		Conflicts    []UniqueName `json:"conflicts,omitempty"`
		// MinLoaderVersion is the lowest loader version the mod supports.
		MinLoaderVersion string `json:"owmlVersion,omitempty"`
		// DependencyVersions optionally pins a minimum version per dependency.
		DependencyVersions map[string]string `json:"dependencyVersions,omitempty"`
		Filename           string            `json:"filename,omitempty"`
		PathsToPreserve    []string          `json:"pathsToPreserve,omitempty"`
		RequireVR          bool              `json:"requireVR,omitempty"`
		Warning            *ManifestWarning  `json:"warning,omitempty"`
	}

	// ManifestWarning is a message the mod asks to show when it is first enabled.
	ManifestWarning struct {
		Title string `json:"title,omitempty"`
		Body  string `json:"body,omitempty"`
	}
)

// ParseManifest decodes a manifest document. path is only used in errors.
// Missing identity and malformed versions fail with a ParseError; unknown
// fields are ignored.
func ParseManifest(data []byte, path string) (*Manifest, error) {
	if path == "" {
		path = ManifestFileName
	}
	res, err := cueutil.ParseAndDecode[Manifest](manifestSchema, data, "#Manifest",
		cueutil.WithFilename(path),
		cueutil.WithMaxFileSize(maxManifestSize),
	)
	if err != nil {
		return nil, &Error{Kind: ParseError, Path: path, Err: err}
	}

	m := res.Value
	if ok, errs := m.UniqueName.IsValid(); !ok {
		return nil, &Error{Kind: ParseError, Path: path, Err: errors.Join(errs...)}
	}
	if m.Version != "" {
		if err := ValidateVersion(m.Version); err != nil {
			return nil, &Error{Kind: ParseError, Mod: m.UniqueName, Path: path, Err: err}
		}
	}
	return m, nil
}

// LoadManifest reads and parses the manifest in dir.
func LoadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Kind: IoError, Path: path, Err: err}
	}
	return ParseManifest(data, path)
}

// ParsedVersion returns the manifest version as an ordered Version.
func (m *Manifest) ParsedVersion() Version {
	return ParseVersion(m.Version)
}

// MinDependencyVersion returns the minimum version m declares for dep, if any.
func (m *Manifest) MinDependencyVersion(dep UniqueName) (Version, bool) {
	raw, ok := m.DependencyVersions[string(dep)]
	if !ok || raw == "" {
		return Version{}, false
	}
	return ParseVersion(raw), true
}

// DisplayName returns Name, falling back to the identity.
func (m *Manifest) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return string(m.UniqueName)
}

// String implements fmt.Stringer.
func (m *Manifest) String() string {
	return fmt.Sprintf("%s@%s", m.UniqueName, m.Version)
}
