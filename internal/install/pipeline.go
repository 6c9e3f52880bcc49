// SPDX-License-Identifier: MPL-2.0

// Package install executes resolution plans against the mods directory.
//
// Downloads run with bounded parallelism; a step starts once every step it
// depends on has finished, and fails without downloading if one of them
// failed. New versions are extracted into a hidden staging directory next to
// the target and swapped in with renames, so a failed or canceled install
// leaves the target either absent or as it was before.
package install

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dgarroDC/ow-mod-man/internal/events"
	"github.com/dgarroDC/ow-mod-man/internal/localdb"
	"github.com/dgarroDC/ow-mod-man/internal/resolve"
	"github.com/dgarroDC/ow-mod-man/pkg/owmod"
)

const (
	// DefaultConcurrency is the number of plan steps processed at once.
	DefaultConcurrency = 4

	// DefaultMaxArchiveBytes caps a downloaded archive (1 GB).
	DefaultMaxArchiveBytes int64 = 1 << 30

	// DefaultTimeout bounds one archive download.
	DefaultTimeout = 10 * time.Minute
)

var errNotBroken = errors.New("entry has a valid manifest; uninstall it by name")

type (
	// Pipeline installs, updates, toggles and removes mods in one local database.
	Pipeline struct {
		local           *localdb.DB
		client          *http.Client
		userAgent       string
		tempDir         string
		maxArchiveBytes int64
		concurrency     int
		busy            *BusySet
		events          *events.Emitter
		logger          *log.Logger
		afterChange     func()
	}

	// Option configures a Pipeline during construction.
	Option func(*Pipeline)

	// Result is the outcome of one plan step.
	Result struct {
		Mod     owmod.UniqueName
		Kind    resolve.StepKind
		Outcome events.Outcome
		Version string
		Err     error
	}

	// Report lists one Result per plan step, in plan order.
	Report struct {
		ID      string
		Results []Result
	}

	// UninstallResult describes a removed mod.
	UninstallResult struct {
		Mod *owmod.LocalMod
		// Dependents are installed mods that list the removed one as a dependency.
		Dependents []owmod.UniqueName
	}
)

// WithHTTPClient sets the client used for downloads. Its Timeout bounds
// each download.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Pipeline) {
		p.client = c
	}
}

// WithUserAgent sets the User-Agent header sent with downloads.
func WithUserAgent(ua string) Option {
	return func(p *Pipeline) {
		p.userAgent = ua
	}
}

// WithConcurrency sets how many steps run at once. Values below 1 mean 1.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		p.concurrency = max(n, 1)
	}
}

// WithTempDir sets where archives are downloaded. Empty means os.TempDir.
func WithTempDir(dir string) Option {
	return func(p *Pipeline) {
		p.tempDir = dir
	}
}

// WithMaxArchiveBytes caps downloaded archive size.
func WithMaxArchiveBytes(n int64) Option {
	return func(p *Pipeline) {
		p.maxArchiveBytes = n
	}
}

// WithEvents publishes progress, completion and busy events to e.
func WithEvents(e *events.Emitter) Option {
	return func(p *Pipeline) {
		p.events = e
	}
}

// WithBusySet shares a busy set with other components.
func WithBusySet(b *BusySet) Option {
	return func(p *Pipeline) {
		p.busy = b
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithAfterChange registers fn to run synchronously after every change to
// the local database. The engine revalidates there.
func WithAfterChange(fn func()) Option {
	return func(p *Pipeline) {
		p.afterChange = fn
	}
}

// New creates a Pipeline writing into local's root directory.
func New(local *localdb.DB, opts ...Option) *Pipeline {
	p := &Pipeline{
		local:           local,
		client:          &http.Client{Timeout: DefaultTimeout},
		userAgent:       "owmods/dev",
		maxArchiveBytes: DefaultMaxArchiveBytes,
		concurrency:     DefaultConcurrency,
		logger:          log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.busy == nil {
		p.busy = NewBusySet(p.events)
	}
	return p
}

// Busy returns the pipeline's busy set.
func (p *Pipeline) Busy() *BusySet {
	return p.busy
}

// Execute runs every step of plan and reports each outcome. A failing step
// never stops independent steps; steps that depend on it fail with
// MissingDependency without downloading. The plan must be Ok.
func (p *Pipeline) Execute(ctx context.Context, plan *resolve.Plan) *Report {
	report := &Report{
		ID:      uuid.NewString(),
		Results: make([]Result, len(plan.Steps)),
	}
	index := make(map[owmod.UniqueName]int, len(plan.Steps))
	done := make([]chan struct{}, len(plan.Steps))
	for i, s := range plan.Steps {
		index[s.Mod] = i
		done[i] = make(chan struct{})
		p.progress(report.ID, s.Mod, events.PhaseQueued, 0, 0)
	}

	p.logger.Debug("executing plan", "id", report.ID, "root", plan.Root, "steps", len(plan.Steps))

	// Steps are in dependency order, so every step a worker waits on was
	// started before it and the limit cannot deadlock.
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i := range plan.Steps {
		step := plan.Steps[i]
		g.Go(func() error {
			defer close(done[i])
			blocked := p.waitDeps(ctx, &step, index, done, report)
			report.Results[i] = p.runStep(ctx, report.ID, &step, blocked)
			return nil
		})
	}
	_ = g.Wait() // workers report through Results

	return report
}

// waitDeps blocks until every dependency of step finished and returns the
// error that prevents step from running, if any.
func (p *Pipeline) waitDeps(ctx context.Context, step *resolve.Step, index map[owmod.UniqueName]int, done []chan struct{}, report *Report) error {
	for _, dep := range step.Deps {
		j, ok := index[dep]
		if !ok {
			continue
		}
		select {
		case <-done[j]:
		case <-ctx.Done():
			return &owmod.Error{Kind: owmod.Canceled, Mod: step.Mod, Err: ctx.Err()}
		}
		if res := report.Results[j]; !res.Outcome.Succeeded() {
			return &owmod.Error{Kind: owmod.MissingDependency, Mod: step.Mod, Other: dep, Err: res.Err}
		}
	}
	return nil
}

func (p *Pipeline) runStep(ctx context.Context, id string, step *resolve.Step, blocked error) Result {
	res := Result{Mod: step.Mod, Kind: step.Kind, Version: step.Version}
	if res.Version == "" {
		res.Version = step.Manifest.Version
	}

	var err error
	switch {
	case blocked != nil:
		err = blocked
	case step.Kind == resolve.StepSatisfied:
		res.Outcome = events.OutcomeAlreadySatisfied
	case step.Kind == resolve.StepEnable || step.Kind == resolve.StepDisable:
		err = p.toggle(step.Mod, step.Kind == resolve.StepEnable)
		res.Outcome = events.OutcomeEnabled
		if step.Kind == resolve.StepDisable {
			res.Outcome = events.OutcomeDisabled
		}
	case step.Downloads():
		err = p.install(ctx, id, step)
		res.Outcome = events.OutcomeInstalled
		if step.Kind == resolve.StepUpdate {
			res.Outcome = events.OutcomeUpdated
		}
	}

	if err != nil {
		res.Outcome = events.OutcomeFailed
		res.Err = err
		failuresTotal.WithLabelValues(string(owmod.KindOf(err))).Inc()
		p.logger.Warn("plan step failed", "id", id, "mod", step.Mod, "kind", step.Kind, "error", err)
	} else {
		p.logger.Debug("plan step finished", "id", id, "mod", step.Mod, "outcome", res.Outcome)
	}
	stepsTotal.WithLabelValues(string(res.Outcome)).Inc()

	p.progress(id, step.Mod, events.PhaseDone, 0, 0)
	p.events.Complete(events.InstallCompleteData{
		InstallID: id,
		Mod:       step.Mod,
		Outcome:   res.Outcome,
		Version:   res.Version,
		Err:       res.Err,
	})
	return res
}

func (p *Pipeline) toggle(name owmod.UniqueName, enabled bool) error {
	if _, err := p.local.SetEnabled(name, enabled); err != nil {
		return err
	}
	p.changed()
	return nil
}

// install downloads, verifies, extracts and swaps in one mod.
func (p *Pipeline) install(ctx context.Context, id string, step *resolve.Step) error {
	release, err := p.busy.Acquire(step.Mod)
	if err != nil {
		return err
	}
	defer release()

	mod := step.Mod
	phase := func(ph events.Phase) func() {
		start := time.Now()
		p.progress(id, mod, ph, 0, 0)
		return func() { phaseDuration.WithLabelValues(string(ph)).Observe(time.Since(start).Seconds()) }
	}

	end := phase(events.PhaseDownloading)
	archive, err := p.download(ctx, mod, step.DownloadURL, func(current, total int64) {
		p.progress(id, mod, events.PhaseDownloading, current, total)
	})
	end()
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(archive) }() // Best-effort cleanup of temp archive

	end = phase(events.PhaseVerifying)
	root, err := inspectArchive(archive, mod)
	end()
	if err != nil {
		return err
	}

	modsRoot := p.local.Root()
	if err := os.MkdirAll(modsRoot, 0o755); err != nil {
		return &owmod.Error{Kind: owmod.IoError, Mod: mod, Path: modsRoot, Err: err}
	}
	target := filepath.Join(modsRoot, string(mod))
	enabled := true
	if step.Local != nil {
		target = step.Local.ModPath
		enabled = step.Local.Enabled
	}

	end = phase(events.PhaseExtracting)
	staging, err := os.MkdirTemp(modsRoot, ".staging-"+string(mod)+"-")
	if err != nil {
		end()
		return &owmod.Error{Kind: owmod.IoError, Mod: mod, Path: modsRoot, Err: err}
	}
	defer func() { _ = os.RemoveAll(staging) }() // no-op once renamed into place

	err = extract(ctx, archive, root, staging, mod, func(current, total int64) {
		p.progress(id, mod, events.PhaseExtracting, current, total)
	})
	if err == nil && step.Local != nil {
		if pErr := preservePaths(step.Local.ModPath, staging, step.Local.Manifest.PathsToPreserve); pErr != nil {
			err = &owmod.Error{Kind: owmod.IoError, Mod: mod, Path: step.Local.ModPath, Err: pErr}
		}
	}
	end()
	if err != nil {
		return err
	}

	// Last point where cancellation leaves the previous install untouched.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &owmod.Error{Kind: owmod.Canceled, Mod: mod, Err: ctxErr}
	}

	end = phase(events.PhaseRegistering)
	defer end()
	leftover, err := swapDir(staging, target)
	if err != nil {
		return &owmod.Error{Kind: owmod.IoError, Mod: mod, Path: target, Err: err}
	}
	if leftover != "" {
		p.logger.Warn("failed to remove previous version", "mod", mod, "path", leftover)
	}
	if err := localdb.WriteEnabled(target, enabled); err != nil {
		return &owmod.Error{Kind: owmod.IoError, Mod: mod, Path: target, Err: err}
	}

	entry := localdb.LoadMod(target)
	if entry.Failed() {
		return &owmod.Error{Kind: owmod.InvalidManifest, Mod: mod, Path: target, Err: entry.LoadErr}
	}
	p.local.Upsert(entry)
	p.changed()
	p.logger.Info("mod installed", "mod", mod, "version", entry.Manifest.Version, "path", target)
	return nil
}

// Uninstall deletes name's directory and local entry. It reports installed
// mods that depend on name; the after-change hook revalidates them.
func (p *Pipeline) Uninstall(ctx context.Context, name owmod.UniqueName) (*UninstallResult, error) {
	mod, ok := p.local.Get(name)
	if !ok {
		return nil, owmod.NewError(owmod.NotFound, name, nil)
	}
	release, err := p.busy.Acquire(name)
	if err != nil {
		return nil, err
	}
	defer release()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, &owmod.Error{Kind: owmod.Canceled, Mod: name, Err: ctxErr}
	}

	id := uuid.NewString()
	start := time.Now()
	p.progress(id, name, events.PhaseRemoving, 0, 0)
	err = removeDir(mod.ModPath)
	phaseDuration.WithLabelValues(string(events.PhaseRemoving)).Observe(time.Since(start).Seconds())
	if err != nil {
		uErr := &owmod.Error{Kind: owmod.IoError, Mod: name, Path: mod.ModPath, Err: err}
		p.complete(id, name, events.OutcomeFailed, mod.Manifest.Version, uErr)
		return nil, uErr
	}

	p.local.Remove(mod.Key())
	p.changed()

	var dependents []owmod.UniqueName
	for _, m := range p.local.Snapshot().Valid() {
		if slices.Contains(m.Manifest.Dependencies, name) {
			dependents = append(dependents, m.Manifest.UniqueName)
		}
	}
	slices.Sort(dependents)

	p.logger.Info("mod uninstalled", "mod", name, "path", mod.ModPath, "dependents", len(dependents))
	p.complete(id, name, events.OutcomeUninstalled, mod.Manifest.Version, nil)
	return &UninstallResult{Mod: mod, Dependents: dependents}, nil
}

// UninstallBroken deletes an entry keyed by path: one whose manifest could
// not be loaded or that duplicates another mod's identity.
func (p *Pipeline) UninstallBroken(ctx context.Context, path string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &owmod.Error{Kind: owmod.Canceled, Path: path, Err: ctxErr}
	}
	mod, ok := p.local.Snapshot().GetByKey(path)
	if !ok {
		return &owmod.Error{Kind: owmod.NotFound, Path: path}
	}
	if !mod.Failed() && !mod.Errors.Has(owmod.Duplicate) {
		return &owmod.Error{Kind: owmod.NotFound, Mod: mod.Manifest.UniqueName, Path: path, Err: errNotBroken}
	}
	if err := removeDir(mod.ModPath); err != nil {
		return &owmod.Error{Kind: owmod.IoError, Path: path, Err: err}
	}
	p.local.Remove(path)
	p.changed()
	p.logger.Info("broken mod removed", "path", path)
	return nil
}

func (p *Pipeline) changed() {
	if p.afterChange != nil {
		p.afterChange()
	}
}

func (p *Pipeline) progress(id string, mod owmod.UniqueName, phase events.Phase, current, total int64) {
	p.events.Progress(events.InstallProgressData{
		InstallID: id,
		Mod:       mod,
		Phase:     phase,
		Current:   current,
		Total:     total,
	})
}

func (p *Pipeline) complete(id string, mod owmod.UniqueName, outcome events.Outcome, version string, err error) {
	stepsTotal.WithLabelValues(string(outcome)).Inc()
	p.events.Complete(events.InstallCompleteData{
		InstallID: id,
		Mod:       mod,
		Outcome:   outcome,
		Version:   version,
		Err:       err,
	})
}

// Get returns the result for mod.
func (r *Report) Get(mod owmod.UniqueName) (Result, bool) {
	i := slices.IndexFunc(r.Results, func(res Result) bool { return res.Mod == mod })
	if i < 0 {
		return Result{}, false
	}
	return r.Results[i], true
}

// Failed returns the failed results.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Err joins the errors of failed results, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errors.Join(errs...)
}
