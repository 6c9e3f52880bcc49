// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/dgarroDC/ow-mod-man/internal/config"
	"github.com/dgarroDC/ow-mod-man/internal/events"
	"github.com/dgarroDC/ow-mod-man/internal/resolve"
	"github.com/dgarroDC/ow-mod-man/internal/testutil"
	"github.com/dgarroDC/ow-mod-man/pkg/owmod"
)

type fixture struct {
	engine    *Engine
	modsDir   string
	stateDir  string
	owmlDir   string
	emitter   *events.Emitter
	mu        sync.Mutex
	dbChanges []events.DatabaseChangedData
}

func (f *fixture) changes() []events.DatabaseChangedData {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.dbChanges)
}

// newFixture builds an engine over a fresh mods directory. setup runs before
// Open so it can seed installed mods.
func newFixture(t *testing.T, fr *testutil.Registry, setup func(modsDir string)) *fixture {
	t.Helper()
	f := &fixture{
		modsDir:  t.TempDir(),
		stateDir: t.TempDir(),
		owmlDir:  t.TempDir(),
		emitter:  events.NewEmitter(),
	}
	f.emitter.Subscribe(func(e *events.Event) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.dbChanges = append(f.dbChanges, e.Data.(events.DatabaseChangedData))
	}, events.TypeDatabaseChanged)

	if setup != nil {
		setup(f.modsDir)
	}
	url := "http://127.0.0.1:1/database.json"
	if fr != nil {
		url = fr.DatabaseURL()
	}
	f.engine = New(f.modsDir,
		WithRegistryURL(url),
		WithOWMLPath(f.owmlDir),
		WithStateFile(filepath.Join(f.stateDir, config.StateFileName)),
		WithRegistryCache(filepath.Join(f.stateDir, config.RegistryCacheFileName)),
		WithTempDir(t.TempDir()),
		WithEvents(f.emitter),
	)
	ctx := context.Background()
	if err := f.engine.Open(ctx); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if fr != nil {
		if _, err := f.engine.RefreshRemote(ctx); err != nil {
			t.Fatalf("RefreshRemote() error: %v", err)
		}
	}
	return f
}

func (f *fixture) mod(t *testing.T, name string) *owmod.LocalMod {
	t.Helper()
	m, ok := f.engine.Local().Get(owmod.UniqueName(name))
	if !ok {
		t.Fatalf("%s not in local database", name)
	}
	return m
}

func TestEngine_PlanAndInstall(t *testing.T) {
	t.Parallel()

	fr := testutil.NewRegistry(t,
		testutil.Release{Name: "A", Version: "1.0.0", Deps: []string{"B"}},
		testutil.Release{Name: "B", Version: "2.0.0"},
	)
	f := newFixture(t, fr, nil)

	plan, report, err := f.engine.PlanAndInstall(context.Background(), "A")
	if err != nil {
		t.Fatalf("PlanAndInstall() error: %v", err)
	}
	if len(plan.Steps) != 2 || plan.Steps[0].Mod != "B" || plan.Steps[1].Mod != "A" {
		t.Fatalf("plan steps = %+v, want B then A", plan.Steps)
	}
	for _, name := range []owmod.UniqueName{"A", "B"} {
		res, ok := report.Get(name)
		if !ok || res.Outcome != events.OutcomeInstalled {
			t.Errorf("result for %s = %+v", name, res)
		}
		m := f.mod(t, string(name))
		if !m.Enabled || len(m.Errors) > 0 {
			t.Errorf("%s: enabled=%v errors=%v", name, m.Enabled, m.Errors)
		}
	}
	if f.engine.HasIssues() {
		t.Error("HasIssues() = true after a complete install")
	}

	last := f.changes()[len(f.changes())-1]
	if last.Database != events.DatabaseLocal || last.Count != 2 {
		t.Errorf("last DatabaseChanged = %+v, want local with 2 mods", last)
	}

	data, err := f.engine.Export()
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(names, []string{"A", "B"}) {
		t.Errorf("Export() = %v, want [A B]", names)
	}
}

func TestEngine_PlanAndInstallRejectedPlan(t *testing.T) {
	t.Parallel()

	fr := testutil.NewRegistry(t, testutil.Release{Name: "A", Version: "1.0.0", Deps: []string{"Ghost"}})
	f := newFixture(t, fr, nil)

	plan, report, err := f.engine.PlanAndInstall(context.Background(), "A")
	if !errors.Is(err, owmod.ErrMissingDependency) {
		t.Fatalf("err = %v, want MissingDependency", err)
	}
	if report != nil {
		t.Errorf("report = %+v, want nil for a rejected plan", report)
	}
	if plan.Ok() {
		t.Error("plan.Ok() = true")
	}
	if f.engine.Local().Len() != 0 {
		t.Errorf("local database has %d mods, want 0", f.engine.Local().Len())
	}
}

func TestEngine_RefreshRemoteMarksOutdated(t *testing.T) {
	t.Parallel()

	fr := testutil.NewRegistry(t, testutil.Release{Name: "A", Version: "1.0.0"}, testutil.Release{Name: "B", Version: "1.0.0"})
	f := newFixture(t, fr, func(modsDir string) {
		testutil.InstallMod(t, modsDir, "A", "1.0.0", true)
		testutil.InstallMod(t, modsDir, "B", "1.0.0", true)
	})
	if f.mod(t, "A").Warnings.Has(owmod.Outdated) {
		t.Fatal("A outdated at the registry version")
	}

	fr.Set(t, testutil.Release{Name: "A", Version: "1.1.0"}, testutil.Release{Name: "B", Version: "1.0.0"})
	res, err := f.engine.RefreshRemote(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Changed {
		t.Fatal("RefreshRemote() reported no change")
	}

	if !f.mod(t, "A").Warnings.Has(owmod.Outdated) {
		t.Error("A not marked outdated")
	}
	if f.mod(t, "B").Warnings.Has(owmod.Outdated) {
		t.Error("B marked outdated at the registry version")
	}
	outdated := f.engine.Outdated()
	if len(outdated) != 1 || outdated[0].Name != "A" || !outdated[0].Outdated() {
		t.Errorf("Outdated() = %+v, want [A]", outdated)
	}

	plan, report, err := f.engine.UpdateAll(context.Background())
	if err != nil {
		t.Fatalf("UpdateAll() error: %v", err)
	}
	if len(plan.Steps) != 1 || plan.Steps[0].Kind != resolve.StepUpdate {
		t.Errorf("plan = %+v, want one update", plan.Steps)
	}
	if res, _ := report.Get("A"); res.Outcome != events.OutcomeUpdated {
		t.Errorf("A outcome = %q", res.Outcome)
	}
	if got := f.mod(t, "A").Manifest.Version; got != "1.1.0" {
		t.Errorf("A version = %q, want 1.1.0", got)
	}
	if len(f.engine.Outdated()) != 0 {
		t.Error("mods still outdated after UpdateAll")
	}
}

func TestEngine_StatePersistsRegistry(t *testing.T) {
	t.Parallel()

	fr := testutil.NewRegistry(t, testutil.Release{Name: "A", Version: "1.0.0"}, testutil.Release{Name: "B", Version: "1.0.0"})
	f := newFixture(t, fr, nil)

	st, err := config.LoadState(filepath.Join(f.stateDir, config.StateFileName))
	if err != nil {
		t.Fatal(err)
	}
	if st.RegistryETag != `"rev-1"` || st.RegistryModCount != 2 || st.RegistryFetchedAt.IsZero() {
		t.Errorf("state = %+v", st)
	}

	// A second engine pointed at a dead registry starts from the cache.
	offline := New(t.TempDir(),
		WithRegistryURL("http://127.0.0.1:1/database.json"),
		WithStateFile(filepath.Join(f.stateDir, config.StateFileName)),
		WithRegistryCache(filepath.Join(f.stateDir, config.RegistryCacheFileName)),
	)
	if err := offline.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	if offline.Remote().Len() != 2 || offline.Remote().ETag() != `"rev-1"` {
		t.Errorf("restored snapshot: len=%d etag=%q", offline.Remote().Len(), offline.Remote().ETag())
	}

	_, err = offline.RefreshRemote(context.Background())
	if owmod.KindOf(err) != owmod.NetworkError {
		t.Errorf("RefreshRemote() kind = %q, want NetworkError", owmod.KindOf(err))
	}
	if offline.Remote().Len() != 2 {
		t.Error("failed refresh replaced the cached snapshot")
	}
}

func TestEngine_LoaderVersion(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, func(modsDir string) {
		testutil.WriteMod(t, modsDir, map[string]any{"uniqueName": "New", "version": "1.0.0", "owmlVersion": "2.5.0"}, true)
		testutil.WriteMod(t, modsDir, map[string]any{"uniqueName": "Old", "version": "1.0.0", "owmlVersion": "1.0.0"}, true)
	})
	if got := f.engine.LoaderVersion(); got != "" {
		t.Errorf("LoaderVersion() without manifest = %q", got)
	}

	loader := `{"uniqueName": "Alek.OWML", "version": "2.0.0"}`
	if err := os.WriteFile(filepath.Join(f.owmlDir, LoaderManifestFile), []byte(loader), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.RefreshLocal(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := f.engine.LoaderVersion(); got != "2.0.0" {
		t.Errorf("LoaderVersion() = %q, want 2.0.0", got)
	}
	if !f.mod(t, "New").Warnings.Has(owmod.LoaderOutdated) {
		t.Error("New not flagged LoaderOutdated")
	}
	if f.mod(t, "Old").Warnings.Has(owmod.LoaderOutdated) {
		t.Error("Old flagged LoaderOutdated")
	}
}

func TestEngine_EnableAndDisable(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, func(modsDir string) {
		testutil.InstallMod(t, modsDir, "A", "1.0.0", true, "B")
		testutil.InstallMod(t, modsDir, "B", "1.0.0", true)
	})
	ctx := context.Background()

	plan, _, err := f.engine.Enable(ctx, "B", false)
	if err != nil {
		t.Fatalf("disable B: %v", err)
	}
	if !plan.HasWarning(owmod.Dependents) {
		t.Error("disable plan lacks Dependents warning")
	}
	if f.mod(t, "B").Enabled {
		t.Error("B still enabled")
	}
	if !f.mod(t, "A").Errors.Has(owmod.DisabledDependency) {
		t.Error("A not flagged DisabledDependency")
	}
	if !f.engine.HasIssues() {
		t.Error("HasIssues() = false with a disabled dependency")
	}
	if has, err := f.engine.HasDisabledDeps("A"); err != nil || !has {
		t.Errorf("HasDisabledDeps(A) = %v, %v", has, err)
	}

	if _, _, err := f.engine.Enable(ctx, "A", true); err != nil {
		t.Fatalf("enable A: %v", err)
	}
	if !f.mod(t, "B").Enabled {
		t.Error("enabling A did not enable B")
	}
	if f.engine.HasIssues() {
		t.Error("HasIssues() = true after re-enabling")
	}
	if _, err := f.engine.HasDisabledDeps("Missing"); owmod.KindOf(err) != owmod.NotFound {
		t.Errorf("HasDisabledDeps(Missing) kind = %q", owmod.KindOf(err))
	}
}

func TestEngine_RequiredMods(t *testing.T) {
	t.Parallel()

	fr := testutil.NewRegistry(t, testutil.Release{Name: "Alek.OWML", Version: "2.0.0", Required: true})
	f := newFixture(t, fr, func(modsDir string) {
		testutil.InstallMod(t, modsDir, "Alek.OWML", "2.0.0", true)
		testutil.InstallMod(t, modsDir, "A", "1.0.0", true)
	})
	ctx := context.Background()

	if _, err := f.engine.Uninstall(ctx, "Alek.OWML"); !errors.Is(err, owmod.ErrRequiredMod) {
		t.Errorf("Uninstall(required) = %v, want RequiredMod", err)
	}
	if _, _, err := f.engine.Enable(ctx, "Alek.OWML", false); !errors.Is(err, owmod.ErrRequiredMod) {
		t.Errorf("disable required = %v, want RequiredMod", err)
	}

	if err := f.engine.EnableAll(ctx, false); err != nil {
		t.Fatalf("EnableAll(false) error: %v", err)
	}
	if !f.mod(t, "Alek.OWML").Enabled {
		t.Error("EnableAll(false) disabled a required mod")
	}
	if f.mod(t, "A").Enabled {
		t.Error("EnableAll(false) left A enabled")
	}

	if err := f.engine.EnableAll(ctx, true); err != nil {
		t.Fatalf("EnableAll(true) error: %v", err)
	}
	if len(f.engine.Local().Active()) != 2 {
		t.Errorf("active = %d, want 2", len(f.engine.Local().Active()))
	}
}

func TestEngine_UninstallReportsDependents(t *testing.T) {
	t.Parallel()

	var bDir string
	f := newFixture(t, nil, func(modsDir string) {
		testutil.InstallMod(t, modsDir, "A", "1.0.0", true, "B")
		bDir = testutil.InstallMod(t, modsDir, "B", "1.0.0", true)
	})

	res, err := f.engine.Uninstall(context.Background(), "B")
	if err != nil {
		t.Fatalf("Uninstall() error: %v", err)
	}
	if !slices.Equal(res.Dependents, []owmod.UniqueName{"A"}) {
		t.Errorf("Dependents = %v, want [A]", res.Dependents)
	}
	if _, err := os.Stat(bDir); !os.IsNotExist(err) {
		t.Errorf("B directory still present: %v", err)
	}
	if !f.mod(t, "A").Errors.Has(owmod.MissingDependency) {
		t.Error("A not flagged MissingDependency")
	}
	if _, err := f.engine.Uninstall(context.Background(), "B"); owmod.KindOf(err) != owmod.NotFound {
		t.Errorf("second Uninstall kind = %q, want NotFound", owmod.KindOf(err))
	}
}

func TestEngine_UninstallBroken(t *testing.T) {
	t.Parallel()

	var broken string
	f := newFixture(t, nil, func(modsDir string) {
		testutil.InstallMod(t, modsDir, "A", "1.0.0", true)
		broken = filepath.Join(modsDir, "Broken")
		if err := os.MkdirAll(broken, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(broken, owmod.ManifestFileName), []byte("{not json"), 0o644); err != nil {
			t.Fatal(err)
		}
	})

	failed := f.engine.Local().Failed()
	if len(failed) != 1 {
		t.Fatalf("failed entries = %d, want 1", len(failed))
	}
	if err := f.engine.UninstallBroken(context.Background(), failed[0].ModPath); err != nil {
		t.Fatalf("UninstallBroken() error: %v", err)
	}
	if _, err := os.Stat(broken); !os.IsNotExist(err) {
		t.Errorf("broken directory still present: %v", err)
	}
	if len(f.engine.Local().Failed()) != 0 {
		t.Error("broken entry still in the local database")
	}
	if err := f.engine.UninstallBroken(context.Background(), f.mod(t, "A").ModPath); err == nil {
		t.Error("UninstallBroken accepted a valid mod")
	}
}

func TestEngine_FixDeps(t *testing.T) {
	t.Parallel()

	fr := testutil.NewRegistry(t,
		testutil.Release{Name: "A", Version: "1.0.0", Deps: []string{"B", "C"}},
		testutil.Release{Name: "B", Version: "1.0.0"},
		testutil.Release{Name: "C", Version: "1.0.0"},
	)
	f := newFixture(t, fr, func(modsDir string) {
		testutil.InstallMod(t, modsDir, "A", "1.0.0", true, "B", "C")
		testutil.InstallMod(t, modsDir, "B", "1.0.0", false)
	})
	if !f.engine.HasIssues() {
		t.Fatal("HasIssues() = false before fixing")
	}

	_, report, err := f.engine.FixDeps(context.Background(), "A")
	if err != nil {
		t.Fatalf("FixDeps() error: %v", err)
	}
	want := map[owmod.UniqueName]events.Outcome{
		"A": events.OutcomeAlreadySatisfied,
		"B": events.OutcomeEnabled,
		"C": events.OutcomeInstalled,
	}
	for name, outcome := range want {
		if res, _ := report.Get(name); res.Outcome != outcome {
			t.Errorf("%s outcome = %q, want %q", name, res.Outcome, outcome)
		}
	}
	if f.engine.HasIssues() {
		t.Errorf("HasIssues() = true after FixDeps: A errors %v", f.mod(t, "A").Errors)
	}
}

func TestEngine_Import(t *testing.T) {
	t.Parallel()

	fr := testutil.NewRegistry(t, testutil.Release{Name: "C", Version: "1.0.0"})
	f := newFixture(t, fr, func(modsDir string) {
		testutil.InstallMod(t, modsDir, "A", "1.0.0", true)
		testutil.InstallMod(t, modsDir, "B", "1.0.0", false)
	})
	ctx := context.Background()

	res, err := f.engine.Import(ctx, []byte(`["B", "C", "B"]`), true)
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if !slices.Equal(res.Enabled, []owmod.UniqueName{"B"}) ||
		!slices.Equal(res.Installed, []owmod.UniqueName{"C"}) ||
		!slices.Equal(res.Disabled, []owmod.UniqueName{"A"}) ||
		len(res.Failed) != 0 {
		t.Errorf("Import() = %+v", res)
	}

	res, err = f.engine.Import(ctx, []byte(`["Ghost"]`), false)
	if owmod.KindOf(err) != owmod.NotFound {
		t.Errorf("Import(Ghost) kind = %q, want NotFound", owmod.KindOf(err))
	}
	if !slices.Equal(res.Failed, []owmod.UniqueName{"Ghost"}) {
		t.Errorf("Failed = %v", res.Failed)
	}

	for _, doc := range []string{`{"mods": []}`, `[" padded"]`, `["a/b"]`} {
		if _, err := f.engine.Import(ctx, []byte(doc), false); owmod.KindOf(err) != owmod.ParseError {
			t.Errorf("Import(%s) kind = %q, want ParseError", doc, owmod.KindOf(err))
		}
	}
}

func TestEngine_Queries(t *testing.T) {
	t.Parallel()

	fr := testutil.NewRegistry(t,
		testutil.Release{Name: "xen.NewHorizons", Version: "1.0.0"},
		testutil.Release{Name: "Bwc.NomaiVR", Version: "1.0.0"},
	)
	f := newFixture(t, fr, func(modsDir string) {
		testutil.InstallMod(t, modsDir, "xen.NewHorizons", "1.0.0", true)
		testutil.InstallMod(t, modsDir, "Local.Only", "1.0.0", false)
	})

	tests := []struct {
		name       owmod.UniqueName
		wantLocal  bool
		wantRemote bool
		wantKind   owmod.ErrorKind
	}{
		{"xen.NewHorizons", true, true, ""},
		{"Local.Only", true, false, ""},
		{"Bwc.NomaiVR", false, true, ""},
		{"Nobody.Nothing", false, false, owmod.NotFound},
	}
	for _, tt := range tests {
		info, err := f.engine.GetMod(tt.name)
		if owmod.KindOf(err) != tt.wantKind {
			t.Errorf("GetMod(%s) kind = %q, want %q", tt.name, owmod.KindOf(err), tt.wantKind)
		}
		if (info.Local != nil) != tt.wantLocal || (info.Remote != nil) != tt.wantRemote {
			t.Errorf("GetMod(%s) local=%v remote=%v", tt.name, info.Local != nil, info.Remote != nil)
		}
		if info.Installed() != tt.wantLocal {
			t.Errorf("GetMod(%s).Installed() = %v", tt.name, info.Installed())
		}
	}

	if got := f.engine.SearchRemote("horizons"); len(got) != 1 || got[0].UniqueName != "xen.NewHorizons" {
		t.Errorf("SearchRemote(horizons) = %v", got)
	}
	if got := f.engine.SearchLocal(""); len(got) != 2 {
		t.Errorf("SearchLocal(\"\") returned %d mods, want 2", len(got))
	}
	if f.engine.Busy("xen.NewHorizons") || len(f.engine.BusyMods()) != 0 {
		t.Error("idle engine reports busy mods")
	}
	if f.engine.ModsDir() != f.modsDir {
		t.Errorf("ModsDir() = %q, want %q", f.engine.ModsDir(), f.modsDir)
	}
}

func TestFromConfig(t *testing.T) {
	stateDir := t.TempDir()
	config.SetStateDirOverride(stateDir)
	t.Cleanup(config.Reset)

	cfg := config.DefaultConfig()
	cfg.OWMLPath = config.DirPath(t.TempDir())
	e, err := FromConfig(cfg, WithEvents(events.NewEmitter()))
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(cfg.OWMLPath.String(), "Mods"); e.ModsDir() != want {
		t.Errorf("ModsDir() = %q, want %q", e.ModsDir(), want)
	}
	if want := filepath.Join(stateDir, config.StateFileName); e.statePath != want {
		t.Errorf("statePath = %q, want %q", e.statePath, want)
	}
	if e.remote.URL() != cfg.DatabaseURL.String() {
		t.Errorf("registry URL = %q", e.remote.URL())
	}
}
