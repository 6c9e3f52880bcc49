// SPDX-License-Identifier: MPL-2.0

package localdb

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/dgarroDC/ow-mod-man/pkg/owmod"
)

func writeMod(t *testing.T, root, dir, manifest string, enabled *bool) string {
	t.Helper()
	path := filepath.Join(root, dir)
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(path, owmod.ManifestFileName), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if enabled != nil {
		data, _ := json.Marshal(map[string]any{"enabled": *enabled})
		if err := os.WriteFile(filepath.Join(path, ConfigFileName), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func ptr[T any](v T) *T { return &v }

func TestRefresh(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeMod(t, root, "a", `{"uniqueName": "Foo", "version": "1.0.0"}`, ptr(true))
	writeMod(t, root, "b", `{"uniqueName": "Bar", "version": "2.0.0"}`, nil)
	writeMod(t, root, "c", `{"uniqueName": "Foo", "version": "9.9.9"}`, ptr(false))
	broken := writeMod(t, root, "d", `{"name": "no identity"}`, nil)
	if err := os.MkdirAll(filepath.Join(root, "no-manifest"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeMod(t, root, ".staging-Foo-123", `{"uniqueName": "Staged"}`, nil)

	db := New(root)
	snap, err := db.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if snap.Len() != 4 {
		t.Fatalf("Len() = %d, want 4: %v", snap.Len(), snap.All())
	}

	foo, ok := db.Get("Foo")
	if !ok {
		t.Fatal("Get(Foo) missing")
	}
	if foo.Manifest.Version != "1.0.0" || !foo.Enabled {
		t.Errorf("Get(Foo) = %s enabled=%v, want first-seen 1.0.0 enabled", foo.Manifest.Version, foo.Enabled)
	}
	if foo.Errors.Has(owmod.Duplicate) {
		t.Error("first-seen Foo flagged Duplicate")
	}

	dup, ok := snap.GetByKey(filepath.Join(root, "c"))
	if !ok || !dup.Errors.Has(owmod.Duplicate) {
		t.Errorf("second Foo = %+v, want Duplicate", dup)
	}

	bar, _ := db.Get("Bar")
	if bar.Enabled {
		t.Error("mod without config.json should be disabled")
	}

	failed := snap.Failed()
	if len(failed) != 1 || failed[0].ModPath != broken || !failed[0].Errors.Has(owmod.InvalidManifest) {
		t.Errorf("Failed() = %+v", failed)
	}
	if _, ok := db.Get("Staged"); ok {
		t.Error("staging directories must be skipped")
	}
}

func TestRefresh_MissingRootIsEmpty(t *testing.T) {
	t.Parallel()

	db := New(filepath.Join(t.TempDir(), "nope"))
	snap, err := db.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if snap.Len() != 0 {
		t.Errorf("Len() = %d", snap.Len())
	}
}

func TestRefresh_CanceledKeepsPreviousSnapshot(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeMod(t, root, "a", `{"uniqueName": "A"}`, nil)
	db := New(root)
	if _, err := db.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	writeMod(t, root, "b", `{"uniqueName": "B"}`, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := db.Refresh(ctx); !errors.Is(err, owmod.ErrCanceled) {
		t.Fatalf("Refresh(canceled) error = %v", err)
	}
	if db.Snapshot().Len() != 1 {
		t.Errorf("snapshot changed after failed refresh: %d entries", db.Snapshot().Len())
	}
}

func TestSetEnabled(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dir := writeMod(t, root, "Foo", `{"uniqueName": "Foo"}`, nil)
	defaults := `{"enabled": false, "settings": {"speed": 3, "nested": {"x": [1]}}}`
	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFileName), []byte(defaults), 0o644); err != nil {
		t.Fatal(err)
	}

	db := New(root)
	if _, err := db.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	before := db.Snapshot()

	if _, err := db.SetEnabled("Foo", true); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	if m, _ := db.Get("Foo"); !m.Enabled {
		t.Error("in-memory flag not updated")
	}
	if m, _ := before.Get("Foo"); m.Enabled {
		t.Error("old snapshot was mutated")
	}

	cfg, err := readModConfig(filepath.Join(dir, ConfigFileName))
	if err != nil {
		t.Fatalf("config.json not written: %v", err)
	}
	if !cfg.Enabled || string(cfg.Settings["speed"]) != "3" {
		t.Errorf("config = enabled:%v settings:%s", cfg.Enabled, cfg.Settings)
	}

	// The flag survives a rescan.
	if _, err := db.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if m, _ := db.Get("Foo"); !m.Enabled {
		t.Error("enabled flag lost after refresh")
	}

	if _, err := db.SetEnabled("Missing", true); !errors.Is(err, owmod.ErrNotFound) {
		t.Errorf("SetEnabled(Missing) error = %v, want ErrNotFound", err)
	}
}

func TestUpsertRemoveApply(t *testing.T) {
	t.Parallel()

	db := New(t.TempDir())
	a := &owmod.LocalMod{Manifest: owmod.Manifest{UniqueName: "A", Version: "1"}, ModPath: "/m/A"}
	b := &owmod.LocalMod{Manifest: owmod.Manifest{UniqueName: "B"}, ModPath: "/m/B"}
	db.Upsert(a)
	db.Upsert(b)

	a2 := &owmod.LocalMod{Manifest: owmod.Manifest{UniqueName: "A", Version: "2"}, ModPath: "/m/A"}
	db.Upsert(a2)

	all := db.Snapshot().All()
	if len(all) != 2 || all[0] != a2 || all[1] != b {
		t.Fatalf("All() after update = %v", all)
	}

	if _, ok := db.Remove("A"); !ok {
		t.Fatal("Remove(A) = false")
	}
	if _, ok := db.Get("A"); ok {
		t.Error("A still present")
	}

	db.Apply(func(mods []*owmod.LocalMod) []*owmod.LocalMod {
		out := make([]*owmod.LocalMod, len(mods))
		for i, m := range mods {
			c := m.Clone()
			c.Errors.Add(owmod.MissingDependency, "X")
			out[i] = c
		}
		return out
	})
	if m, _ := db.Get("B"); !m.Errors.Has(owmod.MissingDependency) {
		t.Error("Apply() result not published")
	}
}

func TestSearch(t *testing.T) {
	t.Parallel()

	db := New(t.TempDir())
	db.Upsert(&owmod.LocalMod{Manifest: owmod.Manifest{UniqueName: "xen.NewHorizons", Name: "New Horizons", Author: "xen"}})
	db.Upsert(&owmod.LocalMod{Manifest: owmod.Manifest{UniqueName: "Alek.DebugMode", Name: "Debug Mode", Author: "Alek"}})

	var got []owmod.UniqueName
	for m := range db.Snapshot().Search("horizons") {
		got = append(got, m.Manifest.UniqueName)
	}
	if !slices.Equal(got, []owmod.UniqueName{"xen.NewHorizons"}) {
		t.Errorf("Search(horizons) = %v", got)
	}

	got = got[:0]
	for m := range db.Snapshot().Search("") {
		got = append(got, m.Manifest.UniqueName)
	}
	if !slices.Equal(got, []owmod.UniqueName{"Alek.DebugMode", "xen.NewHorizons"}) {
		t.Errorf("Search(\"\") = %v", got)
	}
}

func TestConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	t.Parallel()

	db := New(t.TempDir())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 200 {
			name := owmod.UniqueName("M" + string(rune('a'+i%26)))
			db.Upsert(&owmod.LocalMod{Manifest: owmod.Manifest{UniqueName: name}})
		}
	}()
	go func() {
		defer wg.Done()
		for range 200 {
			s := db.Snapshot()
			for _, m := range s.All() {
				if got, ok := s.GetByKey(m.Key()); !ok || got != m {
					t.Errorf("torn snapshot: %s", m.Key())
					return
				}
			}
		}
	}()
	wg.Wait()
}
