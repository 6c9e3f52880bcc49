// SPDX-License-Identifier: MPL-2.0

package owmod

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	// NetworkError is a registry fetch or download failure, including timeouts.
	// Callers may retry; the engine never retries on its own.
	NetworkError ErrorKind = "NetworkError"
	// ParseError is a malformed manifest or registry document.
	ParseError ErrorKind = "ParseError"
	// IoError is a filesystem failure during scan, extract or remove.
	IoError ErrorKind = "IoError"
	// InvalidManifest marks a local directory whose manifest could not be parsed.
	InvalidManifest ErrorKind = "InvalidManifest"
	// Duplicate marks a local entry whose identity was already claimed by an
	// earlier directory.
	Duplicate ErrorKind = "Duplicate"
	// MissingDependency is a required dependency absent from the databases.
	MissingDependency ErrorKind = "MissingDependency"
	// DisabledDependency is a required dependency that is installed but disabled.
	DisabledDependency ErrorKind = "DisabledDependency"
	// ConflictDetected is a conflict found while planning an operation.
	ConflictDetected ErrorKind = "ConflictDetected"
	// ConflictActive marks an enabled mod whose declared conflict is also enabled.
	ConflictActive ErrorKind = "ConflictActive"
	// BusyError rejects an operation on a mod that already has one in flight.
	BusyError ErrorKind = "BusyError"
	// RequiredMod rejects disabling or removing required infrastructure.
	RequiredMod ErrorKind = "RequiredMod"
	// NotFound is an identity unknown to the database that was asked.
	NotFound ErrorKind = "NotFound"
	// Canceled is an operation stopped by its context.
	Canceled ErrorKind = "Canceled"

	// Outdated marks an installed mod the registry holds a newer version of.
	Outdated WarningKind = "Outdated"
	// LoaderOutdated marks a mod requiring a newer loader than the one installed.
	LoaderOutdated WarningKind = "LoaderOutdated"
	// DependencyCycle names a circular requirement found while planning.
	DependencyCycle WarningKind = "DependencyCycle"
	// Dependents names enabled mods left without a dependency by a disable.
	Dependents WarningKind = "Dependents"
	// PrereleaseUsed notes that a prerelease build was selected.
	PrereleaseUsed WarningKind = "PrereleaseUsed"
)

var (
	// ErrNetwork is the sentinel for NetworkError.
	ErrNetwork = errors.New("network error")
	// ErrParse is the sentinel for ParseError.
	ErrParse = errors.New("parse error")
	// ErrIO is the sentinel for IoError.
	ErrIO = errors.New("io error")
	// ErrInvalidManifest is the sentinel for InvalidManifest.
	ErrInvalidManifest = errors.New("invalid manifest")
	// ErrDuplicate is the sentinel for Duplicate.
	ErrDuplicate = errors.New("duplicate mod")
	// ErrMissingDependency is the sentinel for MissingDependency.
	ErrMissingDependency = errors.New("missing dependency")
	// ErrDisabledDependency is the sentinel for DisabledDependency.
	ErrDisabledDependency = errors.New("disabled dependency")
	// ErrConflictDetected is the sentinel for ConflictDetected.
	ErrConflictDetected = errors.New("conflict detected")
	// ErrConflictActive is the sentinel for ConflictActive.
	ErrConflictActive = errors.New("conflicting mod enabled")
	// ErrBusy is the sentinel for BusyError.
	ErrBusy = errors.New("operation already in progress")
	// ErrRequiredMod is the sentinel for RequiredMod.
	ErrRequiredMod = errors.New("mod is required")
	// ErrNotFound is the sentinel for NotFound.
	ErrNotFound = errors.New("mod not found")
	// ErrCanceled is the sentinel for Canceled.
	ErrCanceled = errors.New("operation canceled")
)

var sentinels = map[ErrorKind]error{
	NetworkError:       ErrNetwork,
	ParseError:         ErrParse,
	IoError:            ErrIO,
	InvalidManifest:    ErrInvalidManifest,
	Duplicate:          ErrDuplicate,
	MissingDependency:  ErrMissingDependency,
	DisabledDependency: ErrDisabledDependency,
	ConflictDetected:   ErrConflictDetected,
	ConflictActive:     ErrConflictActive,
	BusyError:          ErrBusy,
	RequiredMod:        ErrRequiredMod,
	NotFound:           ErrNotFound,
	Canceled:           ErrCanceled,
}

type (
	// ErrorKind classifies a failure or an error-level annotation.
	ErrorKind string

	// WarningKind classifies a non-blocking annotation.
	WarningKind string

	// Error is the structured error returned by every engine operation.
	// It unwraps to both the kind's sentinel and the underlying cause.
	Error struct {
		Kind ErrorKind
		// Mod is the identity the error is about, if any.
		Mod UniqueName
		// Other is the second identity involved (missing dependency, conflict partner).
		Other UniqueName
		// Path is the offending filesystem path or URL, if any.
		Path string
		Err  error
	}
)

// Sentinel returns the sentinel error for the kind, or nil for an unknown kind.
func (k ErrorKind) Sentinel() error { return sentinels[k] }

// String returns the string representation of the ErrorKind.
func (k ErrorKind) String() string { return string(k) }

// String returns the string representation of the WarningKind.
func (k WarningKind) String() string { return string(k) }

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	if s := e.Kind.Sentinel(); s != nil {
		sb.WriteString(s.Error())
	} else {
		sb.WriteString(string(e.Kind))
	}
	if e.Mod != "" {
		fmt.Fprintf(&sb, ": %s", e.Mod)
	}
	if e.Other != "" {
		switch e.Kind {
		case ConflictDetected, ConflictActive:
			fmt.Fprintf(&sb, " conflicts with %s", e.Other)
		default:
			fmt.Fprintf(&sb, " -> %s", e.Other)
		}
	}
	if e.Path != "" {
		fmt.Fprintf(&sb, " (%s)", e.Path)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

// Unwrap exposes the kind's sentinel and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.Sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewError builds an *Error for mod wrapping cause.
func NewError(kind ErrorKind, mod UniqueName, cause error) *Error {
	return &Error{Kind: kind, Mod: mod, Err: cause}
}

// KindOf classifies err. Context cancellation maps to Canceled and deadline
// expiry to NetworkError. Unclassified errors report IoError.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NetworkError
	case errors.Is(err, context.Canceled):
		return Canceled
	}
	for kind, s := range sentinels {
		if errors.Is(err, s) {
			return kind
		}
	}
	return IoError
}
