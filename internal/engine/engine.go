// SPDX-License-Identifier: MPL-2.0

// Package engine is the command surface of the mod manager. It owns the local
// and remote databases, the resolver and the installation pipeline, and keeps
// the local database annotations current: every mutation is followed by a
// validation pass and a DatabaseChanged event.
//
// Engine methods return snapshots, plans, reports and structured
// *owmod.Error values. They never format output.
package engine

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/dgarroDC/ow-mod-man/internal/config"
	"github.com/dgarroDC/ow-mod-man/internal/events"
	"github.com/dgarroDC/ow-mod-man/internal/install"
	"github.com/dgarroDC/ow-mod-man/internal/localdb"
	"github.com/dgarroDC/ow-mod-man/internal/remotedb"
	"github.com/dgarroDC/ow-mod-man/internal/resolve"
	"github.com/dgarroDC/ow-mod-man/internal/validate"
	"github.com/dgarroDC/ow-mod-man/pkg/owmod"
)

// LoaderManifestFile is the loader's own manifest inside the OWML directory.
const LoaderManifestFile = "OWML.Manifest.json"

type (
	// Engine is the mod manager core. It is safe for concurrent use.
	Engine struct {
		local    *localdb.DB
		remote   *remotedb.DB
		pipeline *install.Pipeline
		events   *events.Emitter
		logger   *log.Logger

		owmlPath  string
		statePath string
	}

	// Option configures an Engine during construction.
	Option func(*settings)

	settings struct {
		registryURL string
		owmlPath    string
		statePath   string
		cachePath   string
		httpClient  *http.Client
		userAgent   string
		concurrency int
		tempDir     string
		logger      *log.Logger
		events      *events.Emitter
	}

	// ModInfo joins what both databases know about one identity.
	ModInfo struct {
		Name   owmod.UniqueName
		Local  *owmod.LocalMod
		Remote *owmod.RemoteMod
	}
)

// WithRegistryURL sets the registry document URL.
func WithRegistryURL(url string) Option {
	return func(s *settings) { s.registryURL = url }
}

// WithOWMLPath sets the loader directory used to read the installed loader version.
func WithOWMLPath(path string) Option {
	return func(s *settings) { s.owmlPath = path }
}

// WithStateFile sets where registry state is persisted between runs.
func WithStateFile(path string) Option {
	return func(s *settings) { s.statePath = path }
}

// WithRegistryCache sets where the last registry document is cached.
func WithRegistryCache(path string) Option {
	return func(s *settings) { s.cachePath = path }
}

// WithHTTPClient sets the client for registry fetches and downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

// WithUserAgent sets the User-Agent header of outgoing requests.
func WithUserAgent(ua string) Option {
	return func(s *settings) { s.userAgent = ua }
}

// WithConcurrency caps parallel downloads.
func WithConcurrency(n int) Option {
	return func(s *settings) { s.concurrency = n }
}

// WithTempDir sets where archives are downloaded.
func WithTempDir(dir string) Option {
	return func(s *settings) { s.tempDir = dir }
}

// WithLogger sets the root logger; components log under their own prefix.
func WithLogger(l *log.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithEvents sets the emitter events are published on.
func WithEvents(e *events.Emitter) Option {
	return func(s *settings) { s.events = e }
}

// New creates an Engine managing the mods in modsDir. Call Open before use.
func New(modsDir string, opts ...Option) *Engine {
	s := settings{
		registryURL: string(config.DefaultDatabaseURL),
		userAgent:   "owmods/dev",
		concurrency: install.DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	if s.events == nil {
		s.events = events.NewEmitter()
	}

	remoteOpts := []remotedb.Option{
		remotedb.WithUserAgent(s.userAgent),
		remotedb.WithLogger(s.logger.WithPrefix("remotedb")),
	}
	pipelineOpts := []install.Option{
		install.WithUserAgent(s.userAgent),
		install.WithConcurrency(s.concurrency),
		install.WithEvents(s.events),
		install.WithLogger(s.logger.WithPrefix("install")),
	}
	if s.httpClient != nil {
		remoteOpts = append(remoteOpts, remotedb.WithHTTPClient(s.httpClient))
		pipelineOpts = append(pipelineOpts, install.WithHTTPClient(s.httpClient))
	}
	if s.cachePath != "" {
		remoteOpts = append(remoteOpts, remotedb.WithCacheFile(s.cachePath))
	}
	if s.tempDir != "" {
		pipelineOpts = append(pipelineOpts, install.WithTempDir(s.tempDir))
	}

	e := &Engine{
		local:     localdb.New(modsDir, localdb.WithLogger(s.logger.WithPrefix("localdb"))),
		remote:    remotedb.New(s.registryURL, remoteOpts...),
		events:    s.events,
		logger:    s.logger.WithPrefix("engine"),
		owmlPath:  s.owmlPath,
		statePath: s.statePath,
	}
	pipelineOpts = append(pipelineOpts, install.WithAfterChange(e.revalidate))
	e.pipeline = install.New(e.local, pipelineOpts...)
	return e
}

// FromConfig creates an Engine from loaded configuration, persisting registry
// state under config.StateDir. opts are applied after the configured values.
func FromConfig(cfg *config.Config, opts ...Option) (*Engine, error) {
	statePath, err := config.StatePath()
	if err != nil {
		return nil, err
	}
	cachePath, err := config.RegistryCachePath()
	if err != nil {
		return nil, err
	}
	base := []Option{
		WithRegistryURL(cfg.DatabaseURL.String()),
		WithOWMLPath(cfg.OWMLPath.String()),
		WithStateFile(statePath),
		WithRegistryCache(cachePath),
		WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		WithConcurrency(int(cfg.Concurrency)),
	}
	return New(cfg.ResolvedModsDir(), append(base, opts...)...), nil
}

// Events returns the emitter the engine publishes on.
func (e *Engine) Events() *events.Emitter {
	return e.events
}

// ModsDir returns the managed mods directory.
func (e *Engine) ModsDir() string {
	return e.local.Root()
}

// Local returns the current local snapshot.
func (e *Engine) Local() *localdb.Snapshot {
	return e.local.Snapshot()
}

// Remote returns the current remote snapshot.
func (e *Engine) Remote() *remotedb.Snapshot {
	return e.remote.Snapshot()
}

// Open restores the cached registry recorded in the state file, if any, and
// scans the mods directory. A missing or unreadable cache is not an error;
// the remote database simply starts empty.
func (e *Engine) Open(ctx context.Context) error {
	if e.statePath != "" {
		st, err := config.LoadState(e.statePath)
		if err != nil {
			e.logger.Warn("ignoring unreadable state file", "path", e.statePath, "error", err)
			st = &config.State{}
		}
		snap, err := e.remote.LoadCache(st.RegistryETag, st.RegistryFetchedAt)
		switch {
		case err != nil:
			e.logger.Warn("ignoring registry cache", "error", err)
		case snap.Len() > 0:
			e.events.DatabaseChanged(events.DatabaseRemote, snap.Len())
		}
	}
	_, err := e.RefreshLocal(ctx)
	return err
}

// RefreshLocal rescans the mods directory and revalidates it. On failure the
// previous snapshot stays current and is returned with the error.
func (e *Engine) RefreshLocal(ctx context.Context) (*localdb.Snapshot, error) {
	if _, err := e.local.Refresh(ctx); err != nil {
		return e.local.Snapshot(), err
	}
	e.revalidate()
	return e.local.Snapshot(), nil
}

// RefreshRemote fetches the registry. When the document changed, the state
// file is updated and the local database is revalidated, since outdated
// warnings depend on registry versions. On failure the previous snapshot
// stays current.
func (e *Engine) RefreshRemote(ctx context.Context) (remotedb.RefreshResult, error) {
	res, err := e.remote.Refresh(ctx)
	if err != nil {
		e.logger.Warn("registry refresh failed", "url", e.remote.URL(), "error", err)
		return res, err
	}
	if !res.Changed {
		return res, nil
	}
	e.saveState(res.Snapshot)
	e.events.DatabaseChanged(events.DatabaseRemote, res.Snapshot.Len())
	e.revalidate()
	return res, nil
}

func (e *Engine) saveState(snap *remotedb.Snapshot) {
	if e.statePath == "" {
		return
	}
	st := &config.State{
		RegistryETag:      snap.ETag(),
		RegistryFetchedAt: snap.FetchedAt(),
		RegistryModCount:  snap.Len(),
	}
	if err := config.SaveState(e.statePath, st); err != nil {
		e.logger.Warn("failed to save state", "path", e.statePath, "error", err)
	}
}

// revalidate recomputes annotations and publishes the local snapshot.
func (e *Engine) revalidate() {
	opts := validate.Options{LoaderVersion: e.LoaderVersion()}
	remote := e.remote.Snapshot()
	snap := e.local.Apply(func(mods []*owmod.LocalMod) []*owmod.LocalMod {
		return validate.Run(mods, remote, opts)
	})
	e.events.DatabaseChanged(events.DatabaseLocal, snap.Len())
}

// LoaderVersion returns the installed loader version, or "" when the loader
// directory is unset or holds no readable loader manifest.
func (e *Engine) LoaderVersion() string {
	if e.owmlPath == "" {
		return ""
	}
	path := filepath.Join(e.owmlPath, LoaderManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			e.logger.Debug("unreadable loader manifest", "path", path, "error", err)
		}
		return ""
	}
	m, err := owmod.ParseManifest(data, path)
	if err != nil {
		e.logger.Debug("invalid loader manifest", "path", path, "error", err)
		return ""
	}
	return m.Version
}

// GetMod returns what both databases know about name.
func (e *Engine) GetMod(name owmod.UniqueName) (ModInfo, error) {
	info := ModInfo{Name: name}
	info.Local, _ = e.local.Get(name)
	info.Remote, _ = e.remote.Get(name)
	if info.Local == nil && info.Remote == nil {
		return info, owmod.NewError(owmod.NotFound, name, nil)
	}
	return info, nil
}

// Installed reports whether the mod has a valid local entry.
func (i ModInfo) Installed() bool {
	return i.Local != nil
}

// Outdated reports whether the registry holds a newer version than the installed one.
func (i ModInfo) Outdated() bool {
	return i.Local != nil && i.Remote != nil &&
		i.Local.Manifest.ParsedVersion().Less(i.Remote.ParsedVersion())
}

// SearchRemote ranks registry entries against query. An empty query lists
// every entry by download count.
func (e *Engine) SearchRemote(query string) []*owmod.RemoteMod {
	return slices.Collect(e.remote.Snapshot().Search(query))
}

// SearchLocal ranks installed mods against query. An empty query lists every
// installed mod by identity.
func (e *Engine) SearchLocal(query string) []*owmod.LocalMod {
	return slices.Collect(e.local.Snapshot().Search(query))
}

// Outdated lists installed mods the registry holds a newer version of, by identity.
func (e *Engine) Outdated() []ModInfo {
	var out []ModInfo
	snap := e.local.Snapshot()
	for _, name := range snap.Names() {
		m, _ := snap.Get(name)
		info := ModInfo{Name: name, Local: m}
		info.Remote, _ = e.remote.Get(name)
		if info.Outdated() {
			out = append(out, info)
		}
	}
	return out
}

// HasIssues reports whether any enabled mod carries an error annotation.
func (e *Engine) HasIssues() bool {
	return validate.HasIssues(e.local.Snapshot().All())
}

// HasDisabledDeps reports whether an installed dependency of name is disabled.
func (e *Engine) HasDisabledDeps(name owmod.UniqueName) (bool, error) {
	snap := e.local.Snapshot()
	m, ok := snap.Get(name)
	if !ok {
		return false, owmod.NewError(owmod.NotFound, name, nil)
	}
	for _, dep := range m.Manifest.Dependencies {
		if d, ok := snap.Get(dep); ok && !d.Enabled {
			return true, nil
		}
	}
	return false, nil
}

// Busy reports whether an install, update or uninstall of name is in flight.
func (e *Engine) Busy(name owmod.UniqueName) bool {
	return e.pipeline.Busy().Busy(name)
}

// BusyMods lists identities with an operation in flight.
func (e *Engine) BusyMods() []owmod.UniqueName {
	return e.pipeline.Busy().List()
}

// resolver plans against the current snapshots.
func (e *Engine) resolver() *resolve.Resolver {
	return resolve.New(e.local.Snapshot(), e.remote.Snapshot())
}
