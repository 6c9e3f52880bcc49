// SPDX-License-Identifier: MPL-2.0

package install

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/dgarroDC/ow-mod-man/internal/localdb"
)

// sidePath returns a hidden sibling of target. The local database scan
// skips dot-directories, so staging and backup copies never show up as mods.
func sidePath(target, kind string) string {
	return filepath.Join(filepath.Dir(target), "."+kind+"-"+filepath.Base(target)+"-"+uuid.NewString()[:8])
}

// swapDir moves staging into target. An existing target is moved aside
// first and removed only after the rename succeeds; if the rename fails it
// is moved back. The returned leftover is a backup that could not be
// removed, for the caller to report.
func swapDir(staging, target string) (leftover string, err error) {
	backup := ""
	if _, statErr := os.Lstat(target); statErr == nil {
		backup = sidePath(target, "backup")
		if err := os.Rename(target, backup); err != nil {
			return "", err
		}
	} else if !errors.Is(statErr, fs.ErrNotExist) {
		return "", statErr
	}

	if err := os.Rename(staging, target); err != nil {
		if backup != "" {
			if restoreErr := os.Rename(backup, target); restoreErr != nil {
				return backup, errors.Join(err, restoreErr)
			}
		}
		return "", err
	}

	if backup != "" {
		if err := os.RemoveAll(backup); err != nil {
			return backup, nil
		}
	}
	return "", nil
}

// removeDir renames dir aside before deleting it, so an interrupted delete
// leaves a hidden directory rather than a half-removed mod.
func removeDir(dir string) error {
	trash := sidePath(dir, "removing")
	if err := os.Rename(dir, trash); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return os.RemoveAll(trash)
}

// preservePaths copies the mod's config file and its declared preserved
// paths from an old install into the freshly extracted one, replacing what
// the archive shipped. Paths that leave the mod directory are ignored.
func preservePaths(oldDir, newDir string, paths []string) error {
	for _, p := range append([]string{localdb.ConfigFileName}, paths...) {
		rel := filepath.Clean(filepath.FromSlash(p))
		if !filepath.IsLocal(rel) {
			continue
		}
		src := filepath.Join(oldDir, rel)
		if _, err := os.Lstat(src); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := copyTree(src, filepath.Join(newDir, rel)); err != nil {
			return err
		}
	}
	return nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) (err error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }() // read-only handle

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	_, err = io.Copy(out, in)
	return err
}
