// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgarroDC/ow-mod-man/internal/localdb"
	"github.com/dgarroDC/ow-mod-man/pkg/owmod"
)

// MustMkdirAll creates a directory along with any necessary parents.
// The test fails immediately if the operation fails.
func MustMkdirAll(t testing.TB, path string, perm os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(path, perm); err != nil {
		t.Fatalf("failed to create directory %s: %v", path, err)
	}
}

// WriteMod writes manifest into root/<uniqueName>/manifest.json and records
// the enabled flag in the mod's config.json. It returns the mod directory.
func WriteMod(t testing.TB, root string, manifest map[string]any, enabled bool) string {
	t.Helper()
	name, _ := manifest["uniqueName"].(string)
	if name == "" {
		t.Fatal("WriteMod: manifest has no uniqueName")
	}
	dir := filepath.Join(root, name)
	MustMkdirAll(t, dir, 0o755)
	data, err := json.Marshal(manifest)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, owmod.ManifestFileName), data, 0o644); err != nil {
		t.Fatalf("failed to write manifest for %s: %v", name, err)
	}
	if err := localdb.WriteEnabled(dir, enabled); err != nil {
		t.Fatalf("failed to write config for %s: %v", name, err)
	}
	return dir
}

// InstallMod writes a minimal installed mod with the given dependencies.
func InstallMod(t testing.TB, root, name, version string, enabled bool, deps ...string) string {
	t.Helper()
	if deps == nil {
		deps = []string{}
	}
	return WriteMod(t, root, map[string]any{
		"uniqueName":   name,
		"name":         name + " Mod",
		"version":      version,
		"dependencies": deps,
	}, enabled)
}

// ModArchive builds a zip archive holding name/manifest.json and a payload
// file, laid out the way registry downloads are.
func ModArchive(t testing.TB, name, version string, deps ...string) []byte {
	t.Helper()
	if deps == nil {
		deps = []string{}
	}
	manifest, err := json.Marshal(map[string]any{"uniqueName": name, "version": version, "dependencies": deps})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range []struct{ path, body string }{
		{name + "/" + owmod.ManifestFileName, string(manifest)},
		{name + "/" + name + ".dll", "binary"},
	} {
		w, err := zw.Create(f.path)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(f.body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
