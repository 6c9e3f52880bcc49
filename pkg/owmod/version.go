// SPDX-License-Identifier: MPL-2.0

package owmod

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidVersion is the sentinel error wrapped by InvalidVersionError.
var ErrInvalidVersion = errors.New("invalid version")

// versionRegex accepts dot-separated numeric segments with an optional trailing
// suffix. The suffix may be introduced by '-' or '+' ("1.2.0-beta.1") or follow
// the last digit directly ("1.2.0b").
var versionRegex = regexp.MustCompile(`^[vV]?(\d+(?:\.\d+)*)(?:[-+]?([0-9A-Za-z][0-9A-Za-z.\-+]*))?$`)

type (
	// Version is an ordered version token. Mods do not follow semver strictly,
	// so any number of numeric segments is allowed. A Version that failed to
	// parse is "unknown" and compares below every known version.
	Version struct {
		raw      string
		segments []uint64
		suffix   string
		known    bool
	}

	// InvalidVersionError is returned when a version string does not match the
	// expected format.
	InvalidVersionError struct {
		Value string
	}
)

// Error implements the error interface.
func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("invalid version %q", e.Value)
}

// Unwrap returns ErrInvalidVersion so callers can use errors.Is for programmatic detection.
func (e *InvalidVersionError) Unwrap() error { return ErrInvalidVersion }

// ParseVersion parses s. It never fails: malformed or empty input yields an
// unknown Version that keeps the raw text for display.
func ParseVersion(s string) Version {
	v, err := parseVersionStrict(s)
	if err != nil {
		return Version{raw: s}
	}
	return v
}

// ValidateVersion reports whether s is a well-formed version string.
func ValidateVersion(s string) error {
	_, err := parseVersionStrict(s)
	return err
}

func parseVersionStrict(s string) (Version, error) {
	trimmed := strings.TrimSpace(s)
	matches := versionRegex.FindStringSubmatch(trimmed)
	if matches == nil {
		return Version{}, &InvalidVersionError{Value: s}
	}

	parts := strings.Split(matches[1], ".")
	segments := make([]uint64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return Version{}, &InvalidVersionError{Value: s}
		}
		segments = append(segments, n)
	}

	return Version{
		raw:      s,
		segments: segments,
		suffix:   matches[2],
		known:    true,
	}, nil
}

// Known reports whether the version parsed successfully.
func (v Version) Known() bool { return v.known }

// Suffix returns the pre-release or build suffix, if any.
func (v Version) Suffix() string { return v.suffix }

// String returns the version text as it was given.
func (v Version) String() string { return v.raw }

// Compare returns -1, 0 or 1. Missing trailing segments count as zero, so
// "1.2" == "1.2.0". A version with a suffix sorts below the same numeric
// prefix without one; two suffixes compare lexically.
func (v Version) Compare(other Version) int {
	switch {
	case !v.known && !other.known:
		return 0
	case !v.known:
		return -1
	case !other.known:
		return 1
	}

	n := max(len(v.segments), len(other.segments))
	for i := range n {
		a, b := segmentAt(v.segments, i), segmentAt(other.segments, i)
		if a != b {
			if a < b {
				return -1
			}
			return 1
		}
	}

	switch {
	case v.suffix == other.suffix:
		return 0
	case v.suffix == "":
		return 1
	case other.suffix == "":
		return -1
	case v.suffix < other.suffix:
		return -1
	default:
		return 1
	}
}

// Less reports whether v sorts strictly before other.
func (v Version) Less(other Version) bool { return v.Compare(other) < 0 }

func segmentAt(segments []uint64, i int) uint64 {
	if i < len(segments) {
		return segments[i]
	}
	return 0
}
