package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/glefebvre/housou/internal/models"
)

// Backend is a fake schedule API serving /api/config, /api/items and /api/metadata
type Backend struct {
	Server *httptest.Server

	mu       sync.Mutex
	config   *models.Config
	items    map[string][]models.AnimeItem
	metadata map[string]*models.UnifiedMetadata
	status   map[string]int
	hits     map[string]int
	queries  map[string][]string
}

// NewBackend starts a fake backend that is closed when the test ends
func NewBackend(t *testing.T, cfg *models.Config) *Backend {
	t.Helper()

	b := &Backend{
		config:   cfg,
		items:    map[string][]models.AnimeItem{},
		metadata: map[string]*models.UnifiedMetadata{},
		status:   map[string]int{},
		hits:     map[string]int{},
		queries:  map[string][]string{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/config", b.handleConfig)
	mux.HandleFunc("/api/items", b.handleItems)
	mux.HandleFunc("/api/metadata", b.handleMetadata)

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the base URL of the fake backend
func (b *Backend) URL() string {
	return b.Server.URL
}

// SetItems serves items for a year/season pair. Use season "" for the whole year.
func (b *Backend) SetItems(year, season string, items []models.AnimeItem) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[year+"/"+season] = items
}

// SetMetadata serves md for title. A nil md is served as JSON null.
func (b *Backend) SetMetadata(title string, md *models.UnifiedMetadata) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metadata[title] = md
}

// FailWith makes path answer with status
func (b *Backend) FailWith(path string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status[path] = status
}

// Hits returns how many requests reached path
func (b *Backend) Hits(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[path]
}

// Queries returns the raw query strings received on path
func (b *Backend) Queries(path string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.queries[path]...)
}

func (b *Backend) record(r *http.Request) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hits[r.URL.Path]++
	b.queries[r.URL.Path] = append(b.queries[r.URL.Path], r.URL.RawQuery)
	status, failing := b.status[r.URL.Path]
	return status, failing
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (b *Backend) handleConfig(w http.ResponseWriter, r *http.Request) {
	if status, failing := b.record(r); failing {
		http.Error(w, http.StatusText(status), status)
		return
	}
	b.mu.Lock()
	cfg := b.config
	b.mu.Unlock()
	writeJSON(w, cfg)
}

func (b *Backend) handleItems(w http.ResponseWriter, r *http.Request) {
	if status, failing := b.record(r); failing {
		http.Error(w, http.StatusText(status), status)
		return
	}

	q := r.URL.Query()
	b.mu.Lock()
	items, ok := b.items[q.Get("year")+"/"+q.Get("season")]
	b.mu.Unlock()
	if !ok {
		items = []models.AnimeItem{}
	}
	writeJSON(w, items)
}

func (b *Backend) handleMetadata(w http.ResponseWriter, r *http.Request) {
	if status, failing := b.record(r); failing {
		http.Error(w, http.StatusText(status), status)
		return
	}

	b.mu.Lock()
	md := b.metadata[r.URL.Query().Get("title")]
	b.mu.Unlock()
	writeJSON(w, md)
}
