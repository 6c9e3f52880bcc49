// SPDX-License-Identifier: MPL-2.0

// Package localdb is the database of installed mods, built by scanning the
// mods root one directory level deep.
//
// Readers get an immutable [Snapshot] through an atomic pointer and never see
// a partially built map. Refresh and every mutation build a new Snapshot
// under a writer lock and swap it in.
package localdb

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/dgarroDC/ow-mod-man/pkg/owmod"
)

type (
	// DB is the local mod database rooted at one mods directory.
	DB struct {
		root   string
		logger *log.Logger

		// mu serializes writers; readers only load snap.
		mu   sync.Mutex
		snap atomic.Pointer[Snapshot]
	}

	// Option configures a DB.
	Option func(*DB)
)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(db *DB) {
		if l != nil {
			db.logger = l
		}
	}
}

// New creates an empty database for root. Call Refresh to populate it.
func New(root string, opts ...Option) *DB {
	db := &DB{
		root:   root,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(db)
	}
	db.snap.Store(newSnapshot(nil))
	return db
}

// Root returns the managed mods directory.
func (db *DB) Root() string {
	return db.root
}

// Snapshot returns the current snapshot.
func (db *DB) Snapshot() *Snapshot {
	return db.snap.Load()
}

// Get returns the canonical entry for name from the current snapshot.
func (db *DB) Get(name owmod.UniqueName) (*owmod.LocalMod, bool) {
	return db.Snapshot().Get(name)
}

// Refresh rescans the mods root and replaces the snapshot wholesale.
// A missing root yields an empty database. On failure the previous snapshot
// is kept.
func (db *DB) Refresh(ctx context.Context) (*Snapshot, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	mods, err := db.scan(ctx)
	if err != nil {
		return db.snap.Load(), err
	}
	s := newSnapshot(mods)
	db.snap.Store(s)
	db.logger.Debug("local database refreshed", "root", db.root, "mods", s.Len())
	return s, nil
}

func (db *DB) scan(ctx context.Context) ([]*owmod.LocalMod, error) {
	entries, err := os.ReadDir(db.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &owmod.Error{Kind: owmod.IoError, Path: db.root, Err: err}
	}

	var (
		mods []*owmod.LocalMod
		seen = make(map[owmod.UniqueName]string)
	)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, &owmod.Error{Kind: owmod.Canceled, Path: db.root, Err: err}
		}
		// Dot-directories hold pipeline staging and backups.
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dir := filepath.Join(db.root, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, owmod.ManifestFileName)); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				db.logger.Warn("skipping unreadable mod directory", "path", dir, "error", err)
			}
			continue
		}

		mod := LoadMod(dir)
		if !mod.Failed() {
			name := mod.Manifest.UniqueName
			if first, dup := seen[name]; dup {
				mod.Errors.Add(owmod.Duplicate)
				db.logger.Warn("duplicate mod identity", "mod", name, "path", dir, "first", first)
			} else {
				seen[name] = dir
			}
		} else {
			db.logger.Warn("invalid manifest", "path", dir, "error", mod.LoadErr)
		}
		mods = append(mods, mod)
	}
	return mods, nil
}

// LoadMod reads one mod directory. It never fails: a manifest that cannot
// be loaded yields an entry annotated InvalidManifest.
func LoadMod(dir string) *owmod.LocalMod {
	mod := &owmod.LocalMod{
		ModPath:  dir,
		Errors:   make(owmod.ErrorSet),
		Warnings: make(owmod.WarningSet),
	}
	m, err := owmod.LoadManifest(dir)
	if err != nil {
		mod.LoadErr = err
		mod.Errors.Add(owmod.InvalidManifest)
		return mod
	}
	mod.Manifest = *m

	// An unreadable config keeps the mod visible but disabled.
	mod.Enabled, _ = readEnabled(dir)
	return mod
}

// SetEnabled updates the enabled flag of name in memory and in the mod's
// config file. It does not touch dependencies or dependents.
func (db *DB) SetEnabled(name owmod.UniqueName, enabled bool) (*owmod.LocalMod, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	cur := db.snap.Load()
	mod, ok := cur.Get(name)
	if !ok {
		return nil, owmod.NewError(owmod.NotFound, name, nil)
	}
	if err := WriteEnabled(mod.ModPath, enabled); err != nil {
		return nil, &owmod.Error{Kind: owmod.IoError, Mod: name, Path: mod.ModPath, Err: err}
	}

	updated := mod.Clone()
	updated.Enabled = enabled
	db.swapLocked(replaceEntry(cur.mods, mod, updated))
	db.logger.Debug("mod toggled", "mod", name, "enabled", enabled)
	return updated, nil
}

// Upsert registers mod, replacing the entry with the same key in place or
// appending it.
func (db *DB) Upsert(mod *owmod.LocalMod) {
	db.mu.Lock()
	defer db.mu.Unlock()

	cur := db.snap.Load()
	if old, ok := cur.GetByKey(mod.Key()); ok {
		db.swapLocked(replaceEntry(cur.mods, old, mod))
		return
	}
	db.swapLocked(append(slices.Clone(cur.mods), mod))
}

// Remove deletes the entry with key (identity, or path for failed and
// duplicate entries) and returns it.
func (db *DB) Remove(key string) (*owmod.LocalMod, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	cur := db.snap.Load()
	old, ok := cur.GetByKey(key)
	if !ok {
		return nil, false
	}
	mods := slices.DeleteFunc(slices.Clone(cur.mods), func(m *owmod.LocalMod) bool { return m == old })
	db.swapLocked(mods)
	return old, true
}

// Apply replaces every entry with the result of fn. fn receives entries in
// scan order and must return fresh values rather than modify its input.
// The validation pass publishes its annotations this way.
func (db *DB) Apply(fn func([]*owmod.LocalMod) []*owmod.LocalMod) *Snapshot {
	db.mu.Lock()
	defer db.mu.Unlock()

	cur := db.snap.Load()
	return db.swapLocked(fn(slices.Clone(cur.mods)))
}

func (db *DB) swapLocked(mods []*owmod.LocalMod) *Snapshot {
	s := newSnapshot(mods)
	db.snap.Store(s)
	return s
}

func replaceEntry(mods []*owmod.LocalMod, old, updated *owmod.LocalMod) []*owmod.LocalMod {
	out := slices.Clone(mods)
	if i := slices.Index(out, old); i >= 0 {
		out[i] = updated
	}
	return out
}
