// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// RegistryETag is the validator every Registry response carries.
const RegistryETag = `"rev-1"`

type (
	// Release is one registry entry served by Registry.
	Release struct {
		Name     string
		Version  string
		Deps     []string
		Required bool
	}

	// Registry serves /database.json and one archive per release at
	// /<Name>.zip. Releases can be swapped mid-test with Set.
	Registry struct {
		*httptest.Server

		mu       sync.Mutex
		releases []Release
		archives map[string][]byte
	}
)

// NewRegistry starts a registry server closed by t.Cleanup.
func NewRegistry(t testing.TB, releases ...Release) *Registry {
	t.Helper()
	r := &Registry{archives: map[string][]byte{}}
	r.Server = httptest.NewServer(http.HandlerFunc(r.serve))
	t.Cleanup(r.Close)
	r.Set(t, releases...)
	return r
}

// Set replaces the served releases and rebuilds their archives.
func (r *Registry) Set(t testing.TB, releases ...Release) {
	t.Helper()
	archives := make(map[string][]byte, len(releases))
	for _, rel := range releases {
		archives["/"+rel.Name+".zip"] = ModArchive(t, rel.Name, rel.Version, rel.Deps...)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releases = releases
	r.archives = archives
}

// DatabaseURL is the registry document URL.
func (r *Registry) DatabaseURL() string {
	return r.URL + "/database.json"
}

func (r *Registry) serve(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req.URL.Path != "/database.json" {
		data, ok := r.archives[req.URL.Path]
		if !ok {
			http.NotFound(w, req)
			return
		}
		_, _ = w.Write(data)
		return
	}
	entries := make([]map[string]any, 0, len(r.releases))
	for _, rel := range r.releases {
		entries = append(entries, map[string]any{
			"uniqueName":    rel.Name,
			"name":          "Fancy " + rel.Name,
			"author":        "tester",
			"version":       rel.Version,
			"downloadUrl":   r.URL + "/" + rel.Name + ".zip",
			"downloadCount": 1,
			"required":      rel.Required,
			"dependencies":  rel.Deps,
		})
	}
	w.Header().Set("ETag", RegistryETag)
	_ = json.NewEncoder(w).Encode(map[string]any{"releases": entries})
}
