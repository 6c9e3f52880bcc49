// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgarroDC/ow-mod-man/internal/config"
	"github.com/dgarroDC/ow-mod-man/internal/engine"
	"github.com/dgarroDC/ow-mod-man/internal/testutil"
	"github.com/dgarroDC/ow-mod-man/pkg/owmod"
)

type staticConfig struct {
	cfg *config.Config
	err error
}

func (s staticConfig) Load(context.Context, config.LoadOptions) (*config.Config, error) {
	return s.cfg, s.err
}

type cliEnv struct {
	modsDir string
	stdout  bytes.Buffer
	stderr  bytes.Buffer
	app     *App
}

// newCLIEnv builds an App over a temporary mods directory. registryURL may be
// empty for commands that never reach the registry.
func newCLIEnv(t *testing.T, registryURL string) *cliEnv {
	t.Helper()
	env := &cliEnv{modsDir: t.TempDir()}
	stateDir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.ModsDir = config.DirPath(env.modsDir)
	cfg.OWMLPath = config.DirPath(t.TempDir())
	if registryURL == "" {
		registryURL = "http://127.0.0.1:1/database.json"
	}
	cfg.DatabaseURL = config.DatabaseURL(registryURL)

	env.app = NewApp(Dependencies{
		Config: staticConfig{cfg: cfg},
		NewEngine: func(cfg *config.Config, opts ...engine.Option) (*engine.Engine, error) {
			base := []engine.Option{
				engine.WithRegistryURL(cfg.DatabaseURL.String()),
				engine.WithStateFile(filepath.Join(stateDir, config.StateFileName)),
				engine.WithRegistryCache(filepath.Join(stateDir, config.RegistryCacheFileName)),
				engine.WithTempDir(t.TempDir()),
			}
			return engine.New(cfg.ResolvedModsDir(), append(base, opts...)...), nil
		},
		Stdout: &env.stdout,
		Stderr: &env.stderr,
	})
	return env
}

func (env *cliEnv) run(args ...string) error {
	env.stdout.Reset()
	env.stderr.Reset()
	root := NewRootCommand(env.app)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	t.Run("ldflags version", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version = "v1.2.3"
		Commit = "abc1234"
		BuildDate = "2025-06-15T10:00:00Z"

		want := "v1.2.3 (commit: abc1234, built: 2025-06-15T10:00:00Z)"
		if got := getVersionString(); got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})

	t.Run("dev build", func(t *testing.T) {
		origVersion := Version
		t.Cleanup(func() { Version = origVersion })

		Version = "dev"
		if got := getVersionString(); got != "dev (built from source)" {
			t.Errorf("getVersionString() = %q", got)
		}
	})
}

func TestListCommand(t *testing.T) {
	t.Parallel()

	env := newCLIEnv(t, "")
	testutil.InstallMod(t, env.modsDir, "Alpha", "1.0.0", true, "Missing")
	testutil.InstallMod(t, env.modsDir, "Beta", "2.0.0", false)

	if err := env.run("list"); err != nil {
		t.Fatalf("list: %v\nstderr: %s", err, env.stderr.String())
	}
	out := env.stdout.String()
	for _, want := range []string{"Alpha", "Beta", "2.0.0", "MissingDependency(Missing)", "2 shown, 1 enabled"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}

	if err := env.run("list", "--enabled"); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(env.stdout.String(), "Beta") {
		t.Errorf("--enabled listed a disabled mod:\n%s", env.stdout.String())
	}
}

func TestListCommand_Empty(t *testing.T) {
	t.Parallel()

	env := newCLIEnv(t, "")
	if err := env.run("list"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(env.stdout.String(), "No mods installed") {
		t.Errorf("output = %q", env.stdout.String())
	}
}

func TestInstallAndExport(t *testing.T) {
	t.Parallel()

	env := newCLIEnv(t, testutil.NewRegistry(t, testutil.Release{Name: "Gamma", Version: "3.1.0"}).DatabaseURL())
	if err := env.run("install", "Gamma"); err != nil {
		t.Fatalf("install: %v\nstderr: %s", err, env.stderr.String())
	}
	if !strings.Contains(env.stdout.String(), "installed") {
		t.Errorf("install output = %q", env.stdout.String())
	}
	if _, err := os.Stat(filepath.Join(env.modsDir, "Gamma", owmod.ManifestFileName)); err != nil {
		t.Fatalf("Gamma not on disk: %v", err)
	}

	if err := env.run("export"); err != nil {
		t.Fatal(err)
	}
	var names []string
	if err := json.Unmarshal(env.stdout.Bytes(), &names); err != nil {
		t.Fatalf("export output %q: %v", env.stdout.String(), err)
	}
	if len(names) != 1 || names[0] != "Gamma" {
		t.Errorf("export = %v, want [Gamma]", names)
	}

	if err := env.run("search", "fancy"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(env.stdout.String(), "Gamma") {
		t.Errorf("search output = %q", env.stdout.String())
	}
}

func TestInstallCommand_NotFound(t *testing.T) {
	t.Parallel()

	env := newCLIEnv(t, testutil.NewRegistry(t, testutil.Release{Name: "Gamma", Version: "1.0.0"}).DatabaseURL())
	err := env.run("install", "Nobody.Nothing")
	if owmod.KindOf(err) != owmod.NotFound {
		t.Fatalf("err = %v, want NotFound", err)
	}
	if env.stderr.Len() == 0 {
		t.Error("nothing explained on stderr")
	}
}

func TestValidateCommand(t *testing.T) {
	t.Parallel()

	env := newCLIEnv(t, testutil.NewRegistry(t, testutil.Release{Name: "Gamma", Version: "1.0.0"}).DatabaseURL())
	testutil.InstallMod(t, env.modsDir, "Alpha", "1.0.0", true)
	if err := env.run("validate"); err != nil {
		t.Fatalf("validate on a clean install: %v", err)
	}
	if !strings.Contains(env.stdout.String(), "No problems found") {
		t.Errorf("output = %q", env.stdout.String())
	}

	testutil.InstallMod(t, env.modsDir, "Beta", "1.0.0", true, "Alpha")
	if err := env.run("disable", "Alpha"); err != nil {
		t.Fatalf("disable: %v", err)
	}
	err := env.run("validate")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Fatalf("validate err = %v, want exit code 1", err)
	}
	if !strings.Contains(env.stdout.String(), "DisabledDependency(Alpha)") {
		t.Errorf("validate output:\n%s", env.stdout.String())
	}

	if err := env.run("enable", "--all"); err != nil {
		t.Fatal(err)
	}
	if err := env.run("validate"); err != nil {
		t.Errorf("validate after enable --all: %v", err)
	}
}

func TestConfigShow(t *testing.T) {
	t.Parallel()

	env := newCLIEnv(t, "")
	if err := env.run("config", "show"); err != nil {
		t.Fatal(err)
	}
	out := env.stdout.String()
	for _, want := range []string{"Current Configuration", "mods_dir", env.modsDir} {
		if !strings.Contains(out, want) {
			t.Errorf("config show missing %q:\n%s", want, out)
		}
	}
}

func TestConfigLoadFailure(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	app := NewApp(Dependencies{
		Config: staticConfig{err: errors.New("bad concurrency")},
		Stdout: &stdout,
		Stderr: &stderr,
	})
	root := NewRootCommand(app)
	root.SetArgs([]string{"list"})
	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Fatal("list succeeded with a broken configuration")
	}
	if stderr.Len() == 0 {
		t.Error("nothing explained on stderr")
	}
}

func TestFormatErrorForDisplay(t *testing.T) {
	t.Parallel()

	plain := errors.New("boom")
	if got := formatErrorForDisplay(plain, true); got != "boom" {
		t.Errorf("plain error = %q", got)
	}
}
