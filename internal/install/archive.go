// SPDX-License-Identifier: MPL-2.0

package install

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dgarroDC/ow-mod-man/pkg/cueutil"
	"github.com/dgarroDC/ow-mod-man/pkg/owmod"
)

// maxEntryBytes caps a single extracted file (2 GB).
const maxEntryBytes = 2 << 30

var (
	errNoManifest    = errors.New("archive contains no " + owmod.ManifestFileName)
	errWrongMod      = errors.New("archive manifest names a different mod")
	errUnsafePath    = errors.New("archive entry escapes the mod directory")
	errEntryTooLarge = errors.New("archive entry exceeds size limit")
)

// inspectArchive checks that archivePath is a readable zip whose shallowest
// manifest.json declares want. It returns the slash-terminated directory
// holding that manifest, or "" when it sits at the top level.
func inspectArchive(archivePath string, want owmod.UniqueName) (root string, err error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", &owmod.Error{Kind: owmod.ParseError, Mod: want, Path: archivePath, Err: err}
	}
	defer func() { _ = zr.Close() }() // read-only archive

	var found *zip.File
	depth := -1
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || path.Base(f.Name) != owmod.ManifestFileName {
			continue
		}
		d := strings.Count(f.Name, "/")
		if found == nil || d < depth || (d == depth && f.Name < found.Name) {
			found, depth = f, d
		}
	}
	if found == nil {
		return "", &owmod.Error{Kind: owmod.InvalidManifest, Mod: want, Path: archivePath, Err: errNoManifest}
	}

	data, err := readEntry(found, cueutil.DefaultMaxFileSize)
	if err != nil {
		return "", &owmod.Error{Kind: owmod.ParseError, Mod: want, Path: archivePath, Err: err}
	}
	m, err := owmod.ParseManifest(data, found.Name)
	if err != nil {
		return "", &owmod.Error{Kind: owmod.InvalidManifest, Mod: want, Path: archivePath, Err: err}
	}
	if m.UniqueName != want {
		return "", &owmod.Error{
			Kind: owmod.InvalidManifest,
			Mod:  want,
			Path: archivePath,
			Err:  fmt.Errorf("%w: %s", errWrongMod, m.UniqueName),
		}
	}

	dir := path.Dir(found.Name)
	if dir == "." {
		return "", nil
	}
	return dir + "/", nil
}

// extract writes every entry under root into dest, stripping root. It stops
// between files when ctx is canceled.
func extract(ctx context.Context, archivePath, root, dest string, mod owmod.UniqueName, report func(current, total int64)) (err error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return &owmod.Error{Kind: owmod.ParseError, Mod: mod, Path: archivePath, Err: err}
	}
	defer func() { _ = zr.Close() }() // read-only archive

	absDest, err := filepath.Abs(dest)
	if err != nil {
		return &owmod.Error{Kind: owmod.IoError, Mod: mod, Path: dest, Err: err}
	}

	total := int64(len(zr.File))
	for i, file := range zr.File {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &owmod.Error{Kind: owmod.Canceled, Mod: mod, Err: ctxErr}
		}
		if !strings.HasPrefix(file.Name, root) {
			continue
		}
		rel := strings.TrimPrefix(file.Name, root)
		if rel == "" {
			continue
		}

		destPath := filepath.Join(absDest, filepath.FromSlash(rel))

		// Validate path doesn't escape destination
		relPath, relErr := filepath.Rel(absDest, destPath)
		if relErr != nil || relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
			return &owmod.Error{Kind: owmod.ParseError, Mod: mod, Path: file.Name, Err: errUnsafePath}
		}

		if file.FileInfo().IsDir() {
			if mkErr := os.MkdirAll(destPath, 0o755); mkErr != nil {
				return &owmod.Error{Kind: owmod.IoError, Mod: mod, Path: destPath, Err: mkErr}
			}
			continue
		}
		if mkErr := os.MkdirAll(filepath.Dir(destPath), 0o755); mkErr != nil {
			return &owmod.Error{Kind: owmod.IoError, Mod: mod, Path: destPath, Err: mkErr}
		}
		if exErr := extractFile(file, destPath); exErr != nil {
			kind := owmod.IoError
			if isArchiveError(exErr) {
				kind = owmod.ParseError
			}
			return &owmod.Error{Kind: kind, Mod: mod, Path: file.Name, Err: exErr}
		}
		report(int64(i+1), total)
	}
	return nil
}

// extractFile extracts a single file from the ZIP archive
func extractFile(file *zip.File, destPath string) (err error) {
	rc, err := file.Open()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	mode := file.Mode().Perm() | 0o600
	destFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := destFile.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	n, err := io.Copy(destFile, io.LimitReader(rc, maxEntryBytes+1))
	if err != nil {
		return err
	}
	if n > maxEntryBytes {
		return errEntryTooLarge
	}
	return nil
}

func readEntry(file *zip.File, limit int64) (_ []byte, err error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errEntryTooLarge
	}
	return data, nil
}

func isArchiveError(err error) bool {
	return errors.Is(err, zip.ErrChecksum) || errors.Is(err, zip.ErrFormat) ||
		errors.Is(err, zip.ErrAlgorithm) || errors.Is(err, errEntryTooLarge) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
