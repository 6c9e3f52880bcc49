// SPDX-License-Identifier: MPL-2.0

package owmod

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidUniqueName is the sentinel error wrapped by InvalidUniqueNameError.
var ErrInvalidUniqueName = errors.New("invalid unique name")

type (
	// UniqueName identifies a mod across the registry and the local install root.
	// It doubles as the install directory name, so it must be a single path element.
	UniqueName string

	// InvalidUniqueNameError is returned when a UniqueName is empty or cannot be
	// used as a directory name.
	InvalidUniqueNameError struct {
		Value  UniqueName
		Reason string
	}
)

// Error implements the error interface.
func (e *InvalidUniqueNameError) Error() string {
	return fmt.Sprintf("invalid unique name %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidUniqueName so callers can use errors.Is for programmatic detection.
func (e *InvalidUniqueNameError) Unwrap() error { return ErrInvalidUniqueName }

// IsValid returns whether the name is usable as an identity and install directory,
// and a list of validation errors if it is not.
func (n UniqueName) IsValid() (bool, []error) {
	s := string(n)
	switch {
	case strings.TrimSpace(s) == "":
		return false, []error{&InvalidUniqueNameError{Value: n, Reason: "must not be empty"}}
	case s == "." || s == "..":
		return false, []error{&InvalidUniqueNameError{Value: n, Reason: "must not be a relative path element"}}
	case strings.ContainsAny(s, `/\`):
		return false, []error{&InvalidUniqueNameError{Value: n, Reason: "must not contain path separators"}}
	case strings.TrimSpace(s) != s:
		return false, []error{&InvalidUniqueNameError{Value: n, Reason: "must not have leading or trailing whitespace"}}
	}
	return true, nil
}

// String returns the string representation of the UniqueName.
func (n UniqueName) String() string { return string(n) }
