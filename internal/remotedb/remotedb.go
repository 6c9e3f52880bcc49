// SPDX-License-Identifier: MPL-2.0

// Package remotedb holds the registry of mods available for download.
//
// The registry document is fetched over HTTP and replaces the in-memory
// database wholesale. Readers load an immutable [Snapshot] through an atomic
// pointer; a failed refresh leaves the previous snapshot in place.
package remotedb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/dgarroDC/ow-mod-man/pkg/owmod"
)

const (
	// DefaultURL is the public registry document.
	DefaultURL = "https://ow-mods.github.io/ow-mod-db/database.json"

	// DefaultTimeout bounds one registry fetch.
	DefaultTimeout = 30 * time.Second

	// maxDocumentBytes caps the registry document size (32 MB).
	maxDocumentBytes = 32 << 20
)

type (
	// DB is the remote mod database.
	DB struct {
		url        string
		httpClient *http.Client
		userAgent  string
		cachePath  string
		logger     *log.Logger

		snap  atomic.Pointer[Snapshot]
		group singleflight.Group
	}

	// Option configures a DB during construction.
	Option func(*DB)

	// RefreshResult reports what a refresh did.
	RefreshResult struct {
		Snapshot *Snapshot
		// Changed is false when the server answered 304 Not Modified.
		Changed bool
		// Skipped lists entries rejected by validation.
		Skipped []EntryError
	}
)

// WithHTTPClient sets the HTTP client. Its Timeout bounds every fetch.
func WithHTTPClient(c *http.Client) Option {
	return func(db *DB) {
		db.httpClient = c
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(db *DB) {
		db.userAgent = ua
	}
}

// WithCacheFile keeps a copy of the last good document at path so LoadCache
// can restore the database, and its ETag, without a network round trip.
func WithCacheFile(path string) Option {
	return func(db *DB) {
		db.cachePath = path
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(db *DB) {
		if l != nil {
			db.logger = l
		}
	}
}

// New creates an empty remote database for the registry at url.
func New(url string, opts ...Option) *DB {
	db := &DB{
		url:        url,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  "owmods/dev",
		logger:     log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(db)
	}
	db.snap.Store(newSnapshot(nil, "", time.Time{}))
	return db
}

// URL returns the registry URL.
func (db *DB) URL() string { return db.url }

// Snapshot returns the current snapshot.
func (db *DB) Snapshot() *Snapshot {
	return db.snap.Load()
}

// Get returns the registry entry for name from the current snapshot.
func (db *DB) Get(name owmod.UniqueName) (*owmod.RemoteMod, bool) {
	return db.Snapshot().Get(name)
}

// LoadCache restores the snapshot from the cache file, tagging it with etag.
// A missing cache file is not an error.
func (db *DB) LoadCache(etag string, fetchedAt time.Time) (*Snapshot, error) {
	if db.cachePath == "" {
		return db.Snapshot(), nil
	}
	data, err := os.ReadFile(db.cachePath)
	if errors.Is(err, fs.ErrNotExist) {
		return db.Snapshot(), nil
	}
	if err != nil {
		return db.Snapshot(), &owmod.Error{Kind: owmod.IoError, Path: db.cachePath, Err: err}
	}
	p, err := parseDocument(data)
	if err != nil {
		return db.Snapshot(), &owmod.Error{Kind: owmod.ParseError, Path: db.cachePath, Err: err}
	}
	s := newSnapshot(p.mods, etag, fetchedAt)
	db.snap.Store(s)
	registryMods.Set(float64(s.Len()))
	return s, nil
}

// Refresh fetches the registry and swaps in the new snapshot. Concurrent
// calls share one fetch. The fetch itself is bounded by the HTTP client
// timeout; ctx only stops the caller from waiting.
func (db *DB) Refresh(ctx context.Context) (RefreshResult, error) {
	ch := db.group.DoChan("refresh", func() (any, error) {
		return db.refresh(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return RefreshResult{Snapshot: db.Snapshot()}, &owmod.Error{Kind: owmod.Canceled, Path: db.url, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return RefreshResult{Snapshot: db.Snapshot()}, res.Err
		}
		return res.Val.(RefreshResult), nil
	}
}

func (db *DB) refresh(ctx context.Context) (RefreshResult, error) {
	start := time.Now()
	defer func() { refreshDuration.Observe(time.Since(start).Seconds()) }()

	cur := db.snap.Load()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, db.url, http.NoBody)
	if err != nil {
		refreshTotal.WithLabelValues(resultNetwork).Inc()
		return RefreshResult{}, &owmod.Error{Kind: owmod.NetworkError, Path: db.url, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", db.userAgent)
	if cur.etag != "" && cur.Len() > 0 {
		req.Header.Set("If-None-Match", cur.etag)
	}

	resp, err := db.httpClient.Do(req)
	if err != nil {
		refreshTotal.WithLabelValues(resultNetwork).Inc()
		return RefreshResult{}, &owmod.Error{Kind: owmod.NetworkError, Path: db.url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	switch resp.StatusCode {
	case http.StatusNotModified:
		refreshTotal.WithLabelValues(resultNotModified).Inc()
		db.logger.Debug("registry not modified", "url", db.url, "etag", cur.etag)
		return RefreshResult{Snapshot: cur}, nil
	case http.StatusOK:
	default:
		refreshTotal.WithLabelValues(resultNetwork).Inc()
		return RefreshResult{}, &owmod.Error{
			Kind: owmod.NetworkError,
			Path: db.url,
			Err:  fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		refreshTotal.WithLabelValues(resultNetwork).Inc()
		return RefreshResult{}, &owmod.Error{Kind: owmod.NetworkError, Path: db.url, Err: err}
	}
	if len(data) > maxDocumentBytes {
		refreshTotal.WithLabelValues(resultParse).Inc()
		return RefreshResult{}, &owmod.Error{
			Kind: owmod.ParseError,
			Path: db.url,
			Err:  fmt.Errorf("document exceeds %d bytes", maxDocumentBytes),
		}
	}

	p, err := parseDocument(data)
	if err != nil {
		refreshTotal.WithLabelValues(resultParse).Inc()
		return RefreshResult{}, &owmod.Error{Kind: owmod.ParseError, Path: db.url, Err: err}
	}
	for i := range p.skipped {
		db.logger.Warn("skipping registry entry", "error", &p.skipped[i])
	}
	skippedEntries.Add(float64(len(p.skipped)))

	s := newSnapshot(p.mods, resp.Header.Get("ETag"), time.Now())
	db.snap.Store(s)
	refreshTotal.WithLabelValues(resultUpdated).Inc()
	registryMods.Set(float64(s.Len()))
	db.logger.Debug("registry refreshed", "url", db.url, "mods", s.Len(), "skipped", len(p.skipped))

	db.writeCache(data)

	return RefreshResult{Snapshot: s, Changed: true, Skipped: p.skipped}, nil
}

func (db *DB) writeCache(data []byte) {
	if db.cachePath == "" {
		return
	}
	if err := writeFileAtomic(db.cachePath, data); err != nil {
		db.logger.Warn("failed to write registry cache", "path", db.cachePath, "error", err)
	}
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".registry-*.json")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}
