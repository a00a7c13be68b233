package catalog

import (
	"sync"
	"time"
)

// Source kinds for Entry.SourceKind.
const (
	SourceHFSpace = "hf_space"
	SourceLocal   = "local"
)

// Entry is one app catalog row served to the UI. Entries are unique by
// lower-cased name within a snapshot.
type Entry struct {
	Name        string         `json:"name"`
	ID          string         `json:"id,omitempty"`
	Description string         `json:"description,omitempty"`
	URL         string         `json:"url,omitempty"`
	SourceKind  string         `json:"source_kind"`
	IsOfficial  bool           `json:"is_official"`
	IsInstalled bool           `json:"is_installed"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// OfficialEntry is one row of the remote curated index.
type OfficialEntry struct {
	Name        string `json:"name"`
	SpaceID     string `json:"space_id"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Store holds the current catalog snapshot. Prefetch replaces it wholesale;
// there is no incremental merge across runs.
type Store struct {
	mu        sync.RWMutex
	entries   []Entry
	fetchedAt time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Replace swaps in a new snapshot.
func (s *Store) Replace(entries []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = entries
	s.fetchedAt = time.Now()
}

// Entries returns the current snapshot. Empty until the first prefetch.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry(nil), s.entries...)
}

// FetchedAt returns when the snapshot was assembled, zero before the first.
func (s *Store) FetchedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchedAt
}
