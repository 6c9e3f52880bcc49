// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"errors"

	"github.com/dgarroDC/ow-mod-man/internal/install"
	"github.com/dgarroDC/ow-mod-man/internal/resolve"
	"github.com/dgarroDC/ow-mod-man/pkg/owmod"
)

// PlanAndInstall plans installing name and its dependencies and executes the
// plan. A plan with errors is returned together with its joined errors and
// nothing is changed on disk.
func (e *Engine) PlanAndInstall(ctx context.Context, name owmod.UniqueName, opts ...resolve.InstallOption) (*resolve.Plan, *install.Report, error) {
	return e.run(ctx, e.resolver().PlanInstall(name, opts...))
}

// Enable enables or disables name. Enabling also enables installed but
// disabled dependencies; disabling leaves dependents alone and reports them
// as a Dependents warning on the plan.
func (e *Engine) Enable(ctx context.Context, name owmod.UniqueName, enabled bool) (*resolve.Plan, *install.Report, error) {
	r := e.resolver()
	if enabled {
		return e.run(ctx, r.PlanEnable(name))
	}
	return e.run(ctx, r.PlanDisable(name))
}

// Update updates names, or every installed mod when none are given, to the
// registry version when it is newer.
func (e *Engine) Update(ctx context.Context, names ...owmod.UniqueName) (*resolve.Plan, *install.Report, error) {
	return e.run(ctx, e.resolver().PlanUpdate(names...))
}

// UpdateAll updates every outdated installed mod in parallel.
func (e *Engine) UpdateAll(ctx context.Context) (*resolve.Plan, *install.Report, error) {
	return e.Update(ctx)
}

// FixDeps installs, enables or updates the dependencies of the installed mod
// name until they satisfy it.
func (e *Engine) FixDeps(ctx context.Context, name owmod.UniqueName) (*resolve.Plan, *install.Report, error) {
	return e.run(ctx, e.resolver().PlanFixDeps(name))
}

func (e *Engine) run(ctx context.Context, plan *resolve.Plan) (*resolve.Plan, *install.Report, error) {
	if !plan.Ok() {
		e.logger.Debug("plan rejected", "root", plan.Root, "errors", len(plan.Errors))
		return plan, nil, plan.Err()
	}
	for _, w := range plan.Warnings {
		e.logger.Warn("plan warning", "kind", w.Kind, "mod", w.Mod, "related", w.Related)
	}
	report := e.pipeline.Execute(ctx, plan)
	return plan, report, report.Err()
}

// Uninstall removes name. Mods the registry marks as required are refused.
func (e *Engine) Uninstall(ctx context.Context, name owmod.UniqueName) (*install.UninstallResult, error) {
	if rm, ok := e.remote.Get(name); ok && rm.Required {
		return nil, owmod.NewError(owmod.RequiredMod, name, nil)
	}
	return e.pipeline.Uninstall(ctx, name)
}

// UninstallBroken removes the entry at path, which must have an invalid
// manifest or duplicate another mod's identity.
func (e *Engine) UninstallBroken(ctx context.Context, path string) error {
	return e.pipeline.UninstallBroken(ctx, path)
}

// EnableAll sets the enabled state of every valid installed mod. Required
// mods are left enabled when disabling. The local database is revalidated
// once at the end; per-mod failures are returned joined.
func (e *Engine) EnableAll(ctx context.Context, enabled bool) error {
	var errs []error
	remote := e.remote.Snapshot()
	for _, m := range e.local.Snapshot().Valid() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, &owmod.Error{Kind: owmod.Canceled, Err: err})
			break
		}
		name := m.Manifest.UniqueName
		if m.Enabled == enabled {
			continue
		}
		if rm, ok := remote.Get(name); ok && rm.Required && !enabled {
			continue
		}
		if e.Busy(name) {
			errs = append(errs, owmod.NewError(owmod.BusyError, name, nil))
			continue
		}
		if _, err := e.local.SetEnabled(name, enabled); err != nil {
			errs = append(errs, err)
		}
	}
	e.revalidate()
	e.logger.Info("toggled all mods", "enabled", enabled, "failures", len(errs))
	return errors.Join(errs...)
}
