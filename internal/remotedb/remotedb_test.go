// SPDX-License-Identifier: MPL-2.0

package remotedb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgarroDC/ow-mod-man/pkg/owmod"
)

const registryDoc = `{
  "releases": [
    {"uniqueName": "Bwc.NomaiVR", "name": "NomaiVR", "author": "Raicuparta", "version": "2.9.0",
     "downloadUrl": "https://example.com/vr.zip", "downloadCount": 500},
    {"uniqueName": "Alek.OWML", "name": "OWML", "author": "Alek", "authorDisplay": "Alek & friends",
     "version": "2.11.1", "downloadUrl": "https://example.com/owml.zip", "downloadCount": 9000, "required": true},
    {"uniqueName": "xen.NewHorizons", "name": "New Horizons", "author": "xen", "version": "1.20.0",
     "downloadUrl": "https://example.com/nh.zip", "downloadCount": 4000, "dependencies": ["JohnCorby.VanillaFix"],
     "prerelease": {"version": "1.21.0-beta", "downloadUrl": "https://example.com/nh-beta.zip"}},
    {"uniqueName": "Broken.NoURL", "name": "Broken", "version": "1.0.0"},
    {"uniqueName": "Bwc.NomaiVR", "name": "dup", "version": "0.1.0", "downloadUrl": "https://example.com/dup.zip"}
  ],
  "alphaReleases": [
    {"uniqueName": "Alpha.Thing", "name": "Thing", "version": "0.0.1", "downloadUrl": "https://example.com/a.zip"}
  ]
}`

type registryServer struct {
	mu   sync.Mutex
	body string
	etag string

	hits     atomic.Int32
	notMod   atomic.Int32
	status   atomic.Int32
	released chan struct{}
}

func (rs *registryServer) set(body, etag string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.body, rs.etag = body, etag
}

func (rs *registryServer) get() (body, etag string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.body, rs.etag
}

// newRegistryServer serves body with ETag "v1". With gated set, every
// request blocks until rs.released is closed.
func newRegistryServer(t *testing.T, body string, gated bool) (*registryServer, *httptest.Server) {
	t.Helper()
	rs := &registryServer{body: body, etag: `"v1"`}
	if gated {
		rs.released = make(chan struct{})
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.hits.Add(1)
		if rs.released != nil {
			<-rs.released
		}
		if code := rs.status.Load(); code != 0 {
			w.WriteHeader(int(code))
			return
		}
		body, etag := rs.get()
		if r.Header.Get("If-None-Match") == etag {
			rs.notMod.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return rs, srv
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	_, srv := newRegistryServer(t, registryDoc, false)
	db := New(srv.URL)

	res, err := db.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if !res.Changed {
		t.Error("first refresh should report Changed")
	}
	if got := res.Snapshot.Len(); got != 4 {
		t.Errorf("Len() = %d, want 4", got)
	}
	if len(res.Skipped) != 2 {
		t.Errorf("Skipped = %v, want 2 entries (invalid + duplicate)", res.Skipped)
	}
	if res.Snapshot.ETag() != `"v1"` {
		t.Errorf("ETag() = %q", res.Snapshot.ETag())
	}

	vr, ok := db.Get("Bwc.NomaiVR")
	if !ok || vr.Version != "2.9.0" {
		t.Errorf("Get(NomaiVR) = %+v, want first occurrence 2.9.0", vr)
	}
	alpha, ok := db.Get("Alpha.Thing")
	if !ok || !alpha.Alpha {
		t.Errorf("Get(Alpha.Thing) = %+v, want alpha entry", alpha)
	}
	nh, _ := db.Get("xen.NewHorizons")
	if nh.Prerelease == nil || nh.Prerelease.Version != "1.21.0-beta" {
		t.Errorf("prerelease = %+v", nh.Prerelease)
	}
	if _, ok := db.Get("Broken.NoURL"); ok {
		t.Error("entry without downloadUrl should be skipped")
	}
}

func TestRefreshNotModified(t *testing.T) {
	t.Parallel()

	rs, srv := newRegistryServer(t, registryDoc, false)
	db := New(srv.URL)

	first, err := db.Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := db.Refresh(context.Background())
	if err != nil {
		t.Fatalf("second Refresh() error = %v", err)
	}
	if second.Changed {
		t.Error("304 should not report Changed")
	}
	if second.Snapshot != first.Snapshot {
		t.Error("304 should keep the same snapshot")
	}
	if rs.notMod.Load() != 1 {
		t.Errorf("server sent %d not-modified responses, want 1", rs.notMod.Load())
	}
}

func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		setup    func(rs *registryServer)
		wantKind owmod.ErrorKind
	}{
		{
			name:     "server error",
			setup:    func(rs *registryServer) { rs.status.Store(http.StatusInternalServerError) },
			wantKind: owmod.NetworkError,
		},
		{
			name: "not json",
			setup:    func(rs *registryServer) { rs.set("<html>oops</html>", `"v2"`) },
			wantKind: owmod.ParseError,
		},
		{
			name: "missing releases",
			setup:    func(rs *registryServer) { rs.set(`{"mods": []}`, `"v3"`) },
			wantKind: owmod.ParseError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rs, srv := newRegistryServer(t, registryDoc, false)
			db := New(srv.URL)
			good, err := db.Refresh(context.Background())
			if err != nil {
				t.Fatal(err)
			}

			tt.setup(rs)
			_, err = db.Refresh(context.Background())
			if got := owmod.KindOf(err); got != tt.wantKind {
				t.Fatalf("KindOf(%v) = %s, want %s", err, got, tt.wantKind)
			}
			if db.Snapshot() != good.Snapshot {
				t.Error("failed refresh replaced the snapshot")
			}
		})
	}
}

func TestRefreshUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	db := New(url, WithHTTPClient(&http.Client{Timeout: time.Second}))
	_, err := db.Refresh(context.Background())
	if !errors.Is(err, owmod.ErrNetwork) {
		t.Fatalf("Refresh() error = %v, want ErrNetwork", err)
	}
	if db.Snapshot().Len() != 0 {
		t.Error("unreachable registry should leave the database empty")
	}
}

func TestRefreshSharesInFlightFetch(t *testing.T) {
	t.Parallel()

	rs, srv := newRegistryServer(t, registryDoc, true)
	db := New(srv.URL)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Go(func() {
			_, errs[i] = db.Refresh(context.Background())
		})
	}
	// Give every caller a chance to join the in-flight call before the
	// server answers.
	time.Sleep(50 * time.Millisecond)
	close(rs.released)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d: %v", i, err)
		}
	}
	if hits := rs.hits.Load(); hits != 1 {
		t.Errorf("server hits = %d, want 1", hits)
	}
}

func TestRefreshCallerCanceled(t *testing.T) {
	t.Parallel()

	rs, srv := newRegistryServer(t, registryDoc, true)
	t.Cleanup(func() { close(rs.released) })
	db := New(srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := db.Refresh(ctx)
	if !errors.Is(err, owmod.ErrCanceled) {
		t.Fatalf("Refresh() error = %v, want ErrCanceled", err)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	t.Parallel()

	_, srv := newRegistryServer(t, registryDoc, false)
	cache := filepath.Join(t.TempDir(), "cache", "registry.json")

	db := New(srv.URL, WithCacheFile(cache))
	res, err := db.Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	restored := New("http://127.0.0.1:0/unused", WithCacheFile(cache))
	snap, err := restored.LoadCache(res.Snapshot.ETag(), res.Snapshot.FetchedAt())
	if err != nil {
		t.Fatalf("LoadCache() error = %v", err)
	}
	if snap.Len() != res.Snapshot.Len() || snap.ETag() != `"v1"` {
		t.Errorf("restored Len=%d ETag=%q, want %d %q", snap.Len(), snap.ETag(), res.Snapshot.Len(), `"v1"`)
	}

	missing := New("", WithCacheFile(filepath.Join(t.TempDir(), "absent.json")))
	if _, err := missing.LoadCache("", time.Time{}); err != nil {
		t.Errorf("LoadCache() on missing file error = %v", err)
	}
}

func TestSnapshotAllAndSearch(t *testing.T) {
	t.Parallel()

	_, srv := newRegistryServer(t, registryDoc, false)
	db := New(srv.URL)
	if _, err := db.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	snap := db.Snapshot()

	var all []owmod.UniqueName
	for _, m := range snap.All() {
		all = append(all, m.UniqueName)
	}
	want := []owmod.UniqueName{"Alek.OWML", "xen.NewHorizons", "Bwc.NomaiVR", "Alpha.Thing"}
	if !slices.Equal(all, want) {
		t.Errorf("All() = %v, want %v", all, want)
	}

	var empty []owmod.UniqueName
	for m := range snap.Search("") {
		empty = append(empty, m.UniqueName)
	}
	if !slices.Equal(empty, want) {
		t.Errorf("Search(\"\") = %v, want All order", empty)
	}

	var hits []owmod.UniqueName
	for m := range snap.Search("horizons") {
		hits = append(hits, m.UniqueName)
	}
	if len(hits) == 0 || hits[0] != "xen.NewHorizons" {
		t.Errorf("Search(horizons) = %v, want New Horizons first", hits)
	}

	var byAuthor []owmod.UniqueName
	for m := range snap.Search("friends") {
		byAuthor = append(byAuthor, m.UniqueName)
	}
	if !slices.Contains(byAuthor, "Alek.OWML") {
		t.Errorf("Search(friends) = %v, want match on display author", byAuthor)
	}
}
