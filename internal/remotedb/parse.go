// SPDX-License-Identifier: MPL-2.0

package remotedb

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/dgarroDC/ow-mod-man/pkg/owmod"
)

var validate = validator.New()

type (
	// document is the registry wire format. Fields not listed are ignored.
	document struct {
		Releases      []json.RawMessage `json:"releases"`
		AlphaReleases []json.RawMessage `json:"alphaReleases"`
	}

	// EntryError describes one registry entry rejected during parsing.
	EntryError struct {
		Index int
		Mod   owmod.UniqueName
		Err   error
	}

	parsed struct {
		mods    []*owmod.RemoteMod
		skipped []EntryError
	}
)

// Error implements the error interface.
func (e *EntryError) Error() string {
	if e.Mod != "" {
		return fmt.Sprintf("registry entry %d (%s): %v", e.Index, e.Mod, e.Err)
	}
	return fmt.Sprintf("registry entry %d: %v", e.Index, e.Err)
}

// Unwrap returns the underlying validation or decode error.
func (e *EntryError) Unwrap() error { return e.Err }

// parseDocument decodes a registry document. The document itself must be a
// JSON object with a releases array; individual entries that fail
// validation are reported in skipped and left out. Later duplicates of an
// identity are skipped as well.
func parseDocument(data []byte) (*parsed, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Releases == nil {
		return nil, errors.New(`registry document has no "releases" array`)
	}

	out := &parsed{}
	seen := make(map[owmod.UniqueName]bool)
	index := 0
	add := func(raw json.RawMessage, alpha bool) {
		defer func() { index++ }()

		var mod owmod.RemoteMod
		if err := json.Unmarshal(raw, &mod); err != nil {
			out.skipped = append(out.skipped, EntryError{Index: index, Err: err})
			return
		}
		if err := checkEntry(&mod); err != nil {
			out.skipped = append(out.skipped, EntryError{Index: index, Mod: mod.UniqueName, Err: err})
			return
		}
		if seen[mod.UniqueName] {
			out.skipped = append(out.skipped, EntryError{Index: index, Mod: mod.UniqueName, Err: owmod.ErrDuplicate})
			return
		}
		seen[mod.UniqueName] = true
		mod.Alpha = alpha
		out.mods = append(out.mods, &mod)
	}
	for _, raw := range doc.Releases {
		add(raw, false)
	}
	for _, raw := range doc.AlphaReleases {
		add(raw, true)
	}
	return out, nil
}

func checkEntry(mod *owmod.RemoteMod) error {
	if err := validate.Struct(mod); err != nil {
		return err
	}
	if ok, errs := mod.UniqueName.IsValid(); !ok {
		return errors.Join(errs...)
	}
	return nil
}
