// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"errors"
	"slices"

	"github.com/dgarroDC/ow-mod-man/pkg/owmod"
)

const (
	// StepInstall downloads a mod that is not installed.
	StepInstall StepKind = "install"
	// StepUpdate downloads a newer version over an installed mod.
	StepUpdate StepKind = "update"
	// StepSatisfied is an installed, enabled mod that needs nothing.
	StepSatisfied StepKind = "satisfied"
	// StepEnable turns on an installed but disabled mod.
	StepEnable StepKind = "enable"
	// StepDisable turns off an enabled mod.
	StepDisable StepKind = "disable"
)

type (
	// StepKind is what a plan does to one mod.
	StepKind string

	// Step is one mod in a plan.
	Step struct {
		Mod  owmod.UniqueName
		Kind StepKind
		// Manifest is the manifest the step resolved to: the registry's for
		// downloads, the installed one otherwise.
		Manifest owmod.Manifest
		// Version and DownloadURL are set for downloads.
		Version     string
		DownloadURL string
		Prerelease  bool
		// Local is the installed entry, if any.
		Local *owmod.LocalMod
		// Deps are the plan steps that must finish before this one, sorted.
		Deps []owmod.UniqueName
	}

	// Warning is a non-blocking finding attached to a plan.
	Warning struct {
		Kind    owmod.WarningKind
		Mod     owmod.UniqueName
		Related []owmod.UniqueName
	}

	// Plan is the full set of changes for one request, computed before
	// anything is touched. Steps are ordered dependencies first.
	Plan struct {
		Root     owmod.UniqueName
		Steps    []Step
		Errors   []*owmod.Error
		Warnings []Warning
	}
)

// Downloads reports whether the step needs an archive.
func (s *Step) Downloads() bool {
	return s.Kind == StepInstall || s.Kind == StepUpdate
}

// Ok reports whether the plan carries no errors and may be executed.
func (p *Plan) Ok() bool {
	return len(p.Errors) == 0
}

// Err joins the plan errors, or returns nil.
func (p *Plan) Err() error {
	if len(p.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(p.Errors))
	for i, e := range p.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Step returns the step for name.
func (p *Plan) Step(name owmod.UniqueName) (*Step, bool) {
	i := slices.IndexFunc(p.Steps, func(s Step) bool { return s.Mod == name })
	if i < 0 {
		return nil, false
	}
	return &p.Steps[i], true
}

// Changes returns the steps that modify something.
func (p *Plan) Changes() []Step {
	var out []Step
	for _, s := range p.Steps {
		if s.Kind != StepSatisfied {
			out = append(out, s)
		}
	}
	return out
}

// HasWarning reports whether the plan carries a warning of kind.
func (p *Plan) HasWarning(kind owmod.WarningKind) bool {
	return slices.ContainsFunc(p.Warnings, func(w Warning) bool { return w.Kind == kind })
}

// HasError reports whether the plan carries an error of kind.
func (p *Plan) HasError(kind owmod.ErrorKind) bool {
	return slices.ContainsFunc(p.Errors, func(e *owmod.Error) bool { return e.Kind == kind })
}
