// SPDX-License-Identifier: MPL-2.0

package owmod

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"testing"
)

func TestError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := fs.ErrPermission
	err := fmt.Errorf("install: %w", &Error{Kind: IoError, Mod: "A.B", Path: "/mods/A.B", Err: cause})

	if !errors.Is(err, ErrIO) {
		t.Error("errors.Is(err, ErrIO) = false")
	}
	if !errors.Is(err, fs.ErrPermission) {
		t.Error("errors.Is(err, fs.ErrPermission) = false")
	}
	if errors.Is(err, ErrNetwork) {
		t.Error("errors.Is(err, ErrNetwork) = true")
	}

	var me *Error
	if !errors.As(err, &me) || me.Path != "/mods/A.B" {
		t.Errorf("errors.As() = %+v", me)
	}
}

func TestError_Message(t *testing.T) {
	t.Parallel()

	err := &Error{Kind: ConflictDetected, Mod: "A.B", Other: "C.D"}
	if got := err.Error(); !strings.Contains(got, "A.B conflicts with C.D") {
		t.Errorf("Error() = %q", got)
	}

	err = &Error{Kind: MissingDependency, Mod: "A.B", Other: "X.Y"}
	if got := err.Error(); !strings.Contains(got, "missing dependency: A.B -> X.Y") {
		t.Errorf("Error() = %q", got)
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"structured", NewError(BusyError, "A.B", nil), BusyError},
		{"wrapped sentinel", fmt.Errorf("x: %w", ErrMissingDependency), MissingDependency},
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), NetworkError},
		{"canceled", context.Canceled, Canceled},
		{"other", errors.New("disk on fire"), IoError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorSet(t *testing.T) {
	t.Parallel()

	s := ErrorSet{}
	s.Add(MissingDependency, "Z.Z", "A.A")
	s.Add(MissingDependency, "A.A")
	s.Add(Duplicate)

	if !s.Has(Duplicate) || !s.Has(MissingDependency) || s.Has(ConflictActive) {
		t.Errorf("membership wrong: %v", s)
	}
	if got := s[MissingDependency]; !slices.Equal(got, []UniqueName{"A.A", "Z.Z"}) {
		t.Errorf("related = %v", got)
	}
	if got := s.Kinds(); !slices.Equal(got, []ErrorKind{Duplicate, MissingDependency}) {
		t.Errorf("Kinds() = %v", got)
	}

	c := s.Clone()
	c.Add(MissingDependency, "B.B")
	if len(s[MissingDependency]) != 2 {
		t.Error("Clone() shares state with original")
	}
}

func TestUniqueName_IsValid(t *testing.T) {
	t.Parallel()

	for _, n := range []UniqueName{"Alek.EnableDebugMode", "a", "x-y_z.1"} {
		if ok, errs := n.IsValid(); !ok {
			t.Errorf("%q.IsValid() = false, %v", n, errs)
		}
	}
	for _, n := range []UniqueName{"", " ", "..", "a/b", `a\b`, " a"} {
		ok, errs := n.IsValid()
		if ok {
			t.Errorf("%q.IsValid() = true", n)
			continue
		}
		if !errors.Is(errs[0], ErrInvalidUniqueName) {
			t.Errorf("%q error should wrap ErrInvalidUniqueName", n)
		}
	}
}
