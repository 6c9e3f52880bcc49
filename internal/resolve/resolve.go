// SPDX-License-Identifier: MPL-2.0

// Package resolve turns a request (install, enable, disable, update) into an
// explicit [Plan] before anything is changed on disk.
//
// Dependencies are walked depth first. Each identity is visited once; meeting
// an identity that is still on the walk stack is a dependency cycle, which is
// reported as a warning and otherwise ignored. Dependencies absent from both
// databases are reported as errors while the rest of the walk continues, so a
// plan lists every problem at once. Once the closure is known, conflicts are
// checked against it and against every enabled mod; any conflict clears the
// plan's steps. Steps come out dependencies first, ties broken by identity.
package resolve

import (
	"errors"
	"slices"

	"github.com/dgarroDC/ow-mod-man/internal/dag"
	"github.com/dgarroDC/ow-mod-man/pkg/owmod"
)

const (
	unvisited visitState = iota
	onStack
	visited
)

var (
	errNotInRegistry = errors.New("not in the registry")
	errNotInstalled  = errors.New("not installed")
	errNoPrerelease  = errors.New("no prerelease published")
)

type (
	// LocalIndex is the view of the local database the resolver reads.
	LocalIndex interface {
		Get(name owmod.UniqueName) (*owmod.LocalMod, bool)
		Active() []*owmod.LocalMod
		Names() []owmod.UniqueName
	}

	// RemoteIndex is the view of the registry the resolver reads.
	RemoteIndex interface {
		Get(name owmod.UniqueName) (*owmod.RemoteMod, bool)
	}

	// Resolver plans operations against one local and one remote snapshot.
	Resolver struct {
		local  LocalIndex
		remote RemoteIndex
	}

	// InstallOption configures PlanInstall.
	InstallOption func(*installOptions)

	installOptions struct {
		prerelease bool
		reinstall  bool
	}

	visitState uint8

	builder struct {
		r *Resolver
		// remoteDeps allows pulling missing or outdated dependencies from
		// the registry.
		remoteDeps bool
		// enableDeps turns installed but disabled dependencies into
		// StepEnable instead of StepSatisfied.
		enableDeps bool

		plan     *Plan
		steps    map[owmod.UniqueName]*Step
		state    map[owmod.UniqueName]visitState
		stack    []owmod.UniqueName
		graph    *dag.Graph
		reported map[[2]owmod.UniqueName]bool
	}
)

// WithPrerelease installs the root mod's prerelease build.
func WithPrerelease() InstallOption {
	return func(o *installOptions) {
		o.prerelease = true
	}
}

// WithReinstall downloads the root mod even when the installed copy is current.
func WithReinstall() InstallOption {
	return func(o *installOptions) {
		o.reinstall = true
	}
}

// New creates a Resolver. remote may be an empty index but not nil.
func New(local LocalIndex, remote RemoteIndex) *Resolver {
	return &Resolver{local: local, remote: remote}
}

// PlanInstall plans installing name and every dependency it needs.
// Installed dependencies that meet the dependent's minimum version are kept;
// disabled ones are enabled.
func (r *Resolver) PlanInstall(name owmod.UniqueName, opts ...InstallOption) *Plan {
	var o installOptions
	for _, opt := range opts {
		opt(&o)
	}

	b := r.newBuilder(name, true, true)
	root, err := b.rootInstallStep(name, o)
	if err != nil {
		b.plan.Errors = append(b.plan.Errors, err)
		return b.plan
	}
	b.walk(root)
	return b.finish()
}

// PlanEnable plans enabling name together with its installed, disabled
// dependencies. Nothing is downloaded: dependencies that are not installed
// are MissingDependency errors.
func (r *Resolver) PlanEnable(name owmod.UniqueName) *Plan {
	b := r.newBuilder(name, false, true)
	local, ok := r.local.Get(name)
	if !ok {
		b.plan.Errors = append(b.plan.Errors, &owmod.Error{Kind: owmod.NotFound, Mod: name, Err: errNotInstalled})
		return b.plan
	}
	b.walk(b.localStep(local))
	return b.finish()
}

// PlanFixDeps plans repairing the dependencies of the installed mod name:
// missing ones are installed from the registry, disabled ones are enabled and
// ones below a required minimum version are updated. name itself is left at
// its installed version and enabled state.
func (r *Resolver) PlanFixDeps(name owmod.UniqueName) *Plan {
	b := r.newBuilder(name, true, true)
	local, ok := r.local.Get(name)
	if !ok {
		b.plan.Errors = append(b.plan.Errors, &owmod.Error{Kind: owmod.NotFound, Mod: name, Err: errNotInstalled})
		return b.plan
	}
	b.walk(&Step{Mod: name, Kind: StepSatisfied, Manifest: local.Manifest, Local: local})
	return b.finish()
}

// PlanDisable plans disabling name. Enabled mods that depend on it are named
// in a Dependents warning; their dependencies are left alone. Mods the
// registry marks as required cannot be disabled.
func (r *Resolver) PlanDisable(name owmod.UniqueName) *Plan {
	plan := &Plan{Root: name}
	local, ok := r.local.Get(name)
	if !ok {
		plan.Errors = append(plan.Errors, &owmod.Error{Kind: owmod.NotFound, Mod: name, Err: errNotInstalled})
		return plan
	}
	if rm, ok := r.remote.Get(name); ok && rm.Required {
		plan.Errors = append(plan.Errors, &owmod.Error{Kind: owmod.RequiredMod, Mod: name})
		return plan
	}

	var dependents []owmod.UniqueName
	for _, m := range r.local.Active() {
		if m.Manifest.UniqueName != name && slices.Contains(m.Manifest.Dependencies, name) {
			dependents = append(dependents, m.Manifest.UniqueName)
		}
	}
	if len(dependents) > 0 {
		slices.Sort(dependents)
		plan.Warnings = append(plan.Warnings, Warning{Kind: owmod.Dependents, Mod: name, Related: dependents})
	}

	kind := StepDisable
	if !local.Enabled {
		kind = StepSatisfied
	}
	plan.Steps = []Step{{Mod: name, Kind: kind, Manifest: local.Manifest, Local: local}}
	return plan
}

// PlanUpdate plans updating names, or every installed mod when names is
// empty, to the registry version when it is strictly newer. Dependencies the
// new versions add are installed. Mods named explicitly that are already
// current appear as StepSatisfied.
func (r *Resolver) PlanUpdate(names ...owmod.UniqueName) *Plan {
	b := r.newBuilder("", true, false)
	explicit := len(names) > 0
	if !explicit {
		names = r.local.Names()
	}
	names = slices.Clone(names)
	slices.Sort(names)
	names = slices.Compact(names)

	for _, name := range names {
		if b.state[name] != unvisited {
			continue
		}
		local, ok := r.local.Get(name)
		if !ok {
			b.plan.Errors = append(b.plan.Errors, &owmod.Error{Kind: owmod.NotFound, Mod: name, Err: errNotInstalled})
			continue
		}
		rm, ok := r.remote.Get(name)
		if !ok || !local.Manifest.ParsedVersion().Less(rm.ParsedVersion()) {
			if explicit {
				b.add(&Step{Mod: name, Kind: StepSatisfied, Manifest: local.Manifest, Local: local})
				b.state[name] = visited
			}
			continue
		}
		b.walk(downloadStep(rm, local, false))
	}
	return b.finish()
}

func (r *Resolver) newBuilder(root owmod.UniqueName, remoteDeps, enableDeps bool) *builder {
	return &builder{
		r:          r,
		remoteDeps: remoteDeps,
		enableDeps: enableDeps,
		plan:       &Plan{Root: root},
		steps:      make(map[owmod.UniqueName]*Step),
		state:      make(map[owmod.UniqueName]visitState),
		graph:      dag.New(),
		reported:   make(map[[2]owmod.UniqueName]bool),
	}
}

func (b *builder) rootInstallStep(name owmod.UniqueName, o installOptions) (*Step, *owmod.Error) {
	local, installed := b.r.local.Get(name)
	rm, inRemote := b.r.remote.Get(name)

	switch {
	case o.prerelease:
		if !inRemote {
			return nil, &owmod.Error{Kind: owmod.NotFound, Mod: name, Err: errNotInRegistry}
		}
		if rm.Prerelease == nil {
			return nil, &owmod.Error{Kind: owmod.NotFound, Mod: name, Err: errNoPrerelease}
		}
		b.plan.Warnings = append(b.plan.Warnings, Warning{Kind: owmod.PrereleaseUsed, Mod: name})
		return downloadStep(rm, local, true), nil
	case !inRemote:
		if installed {
			return b.localStep(local), nil
		}
		return nil, &owmod.Error{Kind: owmod.NotFound, Mod: name, Err: errNotInRegistry}
	case installed && !o.reinstall && !local.Manifest.ParsedVersion().Less(rm.ParsedVersion()):
		return b.localStep(local), nil
	}
	return downloadStep(rm, local, false), nil
}

// walk adds step and visits its dependencies with step on the stack.
func (b *builder) walk(step *Step) {
	b.add(step)
	b.descend(step)
	b.state[step.Mod] = visited
}

func (b *builder) add(step *Step) {
	b.steps[step.Mod] = step
	b.graph.AddNode(string(step.Mod))
}

func (b *builder) descend(step *Step) {
	b.state[step.Mod] = onStack
	b.stack = append(b.stack, step.Mod)
	for _, dep := range step.Manifest.Dependencies {
		want, hasMin := step.Manifest.MinDependencyVersion(dep)
		if b.visit(dep, step.Mod, want, hasMin) {
			b.graph.AddEdge(string(dep), string(step.Mod))
			step.Deps = append(step.Deps, dep)
		}
	}
	b.stack = b.stack[:len(b.stack)-1]
}

// visit resolves dep for parent and reports whether dep is a plan step.
func (b *builder) visit(dep, parent owmod.UniqueName, want owmod.Version, hasMin bool) bool {
	switch b.state[dep] {
	case onStack:
		b.cycle(dep)
		return false
	case visited:
		step := b.steps[dep]
		if step == nil {
			b.missing(parent, dep)
			return false
		}
		if hasMin {
			b.raise(step, want)
		}
		return true
	}

	step := b.choose(dep, want, hasMin)
	if step == nil {
		b.state[dep] = visited
		b.missing(parent, dep)
		return false
	}
	b.walk(step)
	return true
}

func (b *builder) choose(name owmod.UniqueName, want owmod.Version, hasMin bool) *Step {
	local, installed := b.r.local.Get(name)
	if installed && (!hasMin || !local.Manifest.ParsedVersion().Less(want)) {
		return b.localStep(local)
	}
	if b.remoteDeps {
		if rm, ok := b.r.remote.Get(name); ok {
			return downloadStep(rm, local, false)
		}
	}
	if installed {
		return b.localStep(local)
	}
	return nil
}

// raise switches an already planned local step to a registry download when a
// later dependent asks for a newer version than the installed one.
func (b *builder) raise(step *Step, want owmod.Version) {
	if !b.remoteDeps || step.Downloads() || step.Local == nil {
		return
	}
	if !step.Local.Manifest.ParsedVersion().Less(want) {
		return
	}
	rm, ok := b.r.remote.Get(step.Mod)
	if !ok || rm.ParsedVersion().Less(want) {
		return
	}
	deps := step.Deps
	*step = *downloadStep(rm, step.Local, false)
	step.Deps = deps
	b.descend(step)
	b.state[step.Mod] = visited
}

func (b *builder) localStep(local *owmod.LocalMod) *Step {
	kind := StepSatisfied
	if !local.Enabled && b.enableDeps {
		kind = StepEnable
	}
	return &Step{
		Mod:      local.Manifest.UniqueName,
		Kind:     kind,
		Manifest: local.Manifest,
		Local:    local,
	}
}

func downloadStep(rm *owmod.RemoteMod, local *owmod.LocalMod, prerelease bool) *Step {
	s := &Step{
		Mod:         rm.UniqueName,
		Kind:        StepInstall,
		Manifest:    rm.Manifest(),
		Version:     rm.Version,
		DownloadURL: rm.DownloadURL,
		Local:       local,
	}
	if local != nil {
		s.Kind = StepUpdate
	}
	if prerelease {
		s.Version = rm.Prerelease.Version
		s.DownloadURL = rm.Prerelease.DownloadURL
		s.Manifest.Version = rm.Prerelease.Version
		s.Prerelease = true
	}
	return s
}

func (b *builder) missing(parent, dep owmod.UniqueName) {
	key := [2]owmod.UniqueName{parent, dep}
	if b.reported[key] {
		return
	}
	b.reported[key] = true
	b.plan.Errors = append(b.plan.Errors, &owmod.Error{Kind: owmod.MissingDependency, Mod: parent, Other: dep})
}

// cycle records the stack segment from dep back to the top as a warning.
func (b *builder) cycle(dep owmod.UniqueName) {
	i := slices.Index(b.stack, dep)
	if i < 0 {
		return
	}
	path := append(slices.Clone(b.stack[i:]), dep)
	for _, w := range b.plan.Warnings {
		if w.Kind == owmod.DependencyCycle && sameCycle(w.Related, path) {
			return
		}
	}
	b.plan.Warnings = append(b.plan.Warnings, Warning{Kind: owmod.DependencyCycle, Mod: dep, Related: path})
}

// sameCycle compares two closed paths by their member sets.
func sameCycle(a, b []owmod.UniqueName) bool {
	x := slices.Clone(a[:len(a)-1])
	y := slices.Clone(b[:len(b)-1])
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}

// checkConflicts compares every mod in the plan's closure against every other
// closure member and every enabled mod, using the manifest each side will have
// after the plan runs. A pair is reported when both sides end up active and at
// least one of them belongs to the closure; conflicts among enabled mods the
// plan does not touch are left to the validation pass.
func (b *builder) checkConflicts() bool {
	declared := make(map[owmod.UniqueName][]owmod.UniqueName, len(b.steps))
	for name, s := range b.steps {
		declared[name] = s.Manifest.Conflicts
	}
	enabled := make(map[owmod.UniqueName]bool)
	for _, m := range b.r.local.Active() {
		name := m.Manifest.UniqueName
		enabled[name] = true
		if _, planned := declared[name]; !planned {
			declared[name] = m.Manifest.Conflicts
		}
	}
	// active is the enabled state after the plan runs. Updates keep the
	// previous enabled flag.
	active := func(name owmod.UniqueName) bool {
		if s, ok := b.steps[name]; ok {
			switch s.Kind {
			case StepInstall, StepEnable:
				return true
			case StepDisable:
				return false
			}
		}
		return enabled[name]
	}
	inClosure := func(name owmod.UniqueName) bool {
		s, ok := b.steps[name]
		return ok && s.Kind != StepDisable
	}

	names := make([]owmod.UniqueName, 0, len(declared))
	for name := range declared {
		names = append(names, name)
	}
	slices.Sort(names)

	found := false
	seen := make(map[[2]owmod.UniqueName]bool)
	for _, a := range names {
		for _, c := range declared[a] {
			if c == a || !active(a) || !active(c) {
				continue
			}
			if !inClosure(a) && !inClosure(c) {
				continue
			}
			key := [2]owmod.UniqueName{min(a, c), max(a, c)}
			if seen[key] {
				continue
			}
			seen[key] = true
			found = true
			b.plan.Errors = append(b.plan.Errors, &owmod.Error{Kind: owmod.ConflictDetected, Mod: a, Other: c})
		}
	}
	return found
}

func (b *builder) finish() *Plan {
	if b.checkConflicts() {
		b.plan.Steps = nil
		return b.plan
	}

	order, err := b.graph.TopologicalSort()
	if err != nil {
		var ce *dag.CycleError
		if errors.As(err, &ce) {
			related := make([]owmod.UniqueName, len(ce.Cycle))
			for i, n := range ce.Cycle {
				related[i] = owmod.UniqueName(n)
			}
			b.plan.Warnings = append(b.plan.Warnings, Warning{Kind: owmod.DependencyCycle, Mod: related[0], Related: related})
		}
		order = make([]string, 0, len(b.steps))
		for name := range b.steps {
			order = append(order, string(name))
		}
		slices.Sort(order)
	}

	b.plan.Steps = make([]Step, 0, len(order))
	for _, n := range order {
		s := b.steps[owmod.UniqueName(n)]
		slices.Sort(s.Deps)
		s.Deps = slices.Compact(s.Deps)
		b.plan.Steps = append(b.plan.Steps, *s)
	}
	return b.plan
}
