// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"slices"

	"github.com/dgarroDC/ow-mod-man/pkg/owmod"
)

// ImportResult lists what Import changed, each sorted by identity.
type ImportResult struct {
	Enabled   []owmod.UniqueName
	Installed []owmod.UniqueName
	Disabled  []owmod.UniqueName
	Failed    []owmod.UniqueName
}

// Export returns the enabled mods as a JSON array of unique names, sorted.
func (e *Engine) Export() ([]byte, error) {
	names := []owmod.UniqueName{}
	for _, m := range e.local.Snapshot().Active() {
		names = append(names, m.Manifest.UniqueName)
	}
	slices.Sort(names)
	return json.MarshalIndent(names, "", "  ")
}

// Import enables every listed mod, installing the ones that are missing.
// With disableOthers, installed mods not in the list are disabled, except
// those the registry marks as required. Mods are processed one at a time;
// a failure is recorded and the rest of the list still runs.
func (e *Engine) Import(ctx context.Context, data []byte, disableOthers bool) (*ImportResult, error) {
	var names []owmod.UniqueName
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, &owmod.Error{Kind: owmod.ParseError, Err: err}
	}
	for _, name := range names {
		if ok, errs := name.IsValid(); !ok {
			return nil, &owmod.Error{Kind: owmod.ParseError, Mod: name, Err: errors.Join(errs...)}
		}
	}
	slices.Sort(names)
	names = slices.Compact(names)

	res := &ImportResult{}
	var errs []error
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			errs = append(errs, &owmod.Error{Kind: owmod.Canceled, Mod: name, Err: err})
			break
		}
		local, installed := e.local.Get(name)
		switch {
		case installed && local.Enabled:
			continue
		case installed:
			if _, _, err := e.Enable(ctx, name, true); err != nil {
				res.Failed = append(res.Failed, name)
				errs = append(errs, err)
				continue
			}
			res.Enabled = append(res.Enabled, name)
		default:
			if _, _, err := e.PlanAndInstall(ctx, name); err != nil {
				res.Failed = append(res.Failed, name)
				errs = append(errs, err)
				continue
			}
			res.Installed = append(res.Installed, name)
		}
	}

	if disableOthers && ctx.Err() == nil {
		for _, m := range e.local.Snapshot().Active() {
			name := m.Manifest.UniqueName
			if _, listed := slices.BinarySearch(names, name); listed {
				continue
			}
			if rm, ok := e.remote.Get(name); ok && rm.Required {
				continue
			}
			if _, _, err := e.Enable(ctx, name, false); err != nil {
				res.Failed = append(res.Failed, name)
				errs = append(errs, err)
				continue
			}
			res.Disabled = append(res.Disabled, name)
		}
	}

	slices.Sort(res.Failed)
	e.logger.Info("import finished",
		"enabled", len(res.Enabled), "installed", len(res.Installed),
		"disabled", len(res.Disabled), "failed", len(res.Failed))
	return res, errors.Join(errs...)
}
