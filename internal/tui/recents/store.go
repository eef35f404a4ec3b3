// Package recents remembers the locations and ISPs a user looked at last,
// so pickers and the watch view can offer them without a search.
package recents

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

// Item is a recently viewed entity.
type Item struct {
	ID     string    `json:"id"`
	Label  string    `json:"label"`
	Type   string    `json:"type"`
	UsedAt time.Time `json:"used_at"`
}

// Item types.
const (
	TypeLocation   = "location"
	TypeClientIsp  = "client_isp"
	TypeTransitIsp = "transit_isp"
)

// FileName is the store file inside the cache directory.
const FileName = "recents.json"

// Store manages recently used items.
type Store struct {
	mu        sync.RWMutex
	items     map[string][]Item // keyed by type
	maxItems  int
	path      string
	now       func() time.Time
	lastError error // recents are non-critical; failures are kept for debugging
}

// NewStore opens the store at <cacheDir>/recents.json.
func NewStore(cacheDir string) *Store {
	s := &Store{
		items:    make(map[string][]Item),
		maxItems: 10,
		path:     filepath.Join(cacheDir, FileName),
		now:      time.Now,
	}
	s.load()
	return s
}

// Add moves item to the front of its type's list.
func (s *Store) Add(item Item) {
	if item.ID == "" || item.Type == "" {
		return
	}

	s.mu.Lock()
	item.UsedAt = s.now()
	items := slices.DeleteFunc(slices.Clone(s.items[item.Type]), func(existing Item) bool {
		return existing.ID == item.ID
	})
	items = append([]Item{item}, items...)
	if len(items) > s.maxItems {
		items = items[:s.maxItems]
	}
	s.items[item.Type] = items
	snapshot := s.copyItems()
	s.mu.Unlock()

	s.save(snapshot)
}

// Get returns a copy of the recent items of itemType, newest first.
func (s *Store) Get(itemType string) []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items[itemType])
}

// IDs returns the recent IDs of itemType, newest first.
func (s *Store) IDs(itemType string) []string {
	items := s.Get(itemType)
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}

// Clear removes all items of itemType, or everything when itemType is empty.
func (s *Store) Clear(itemType string) {
	s.mu.Lock()
	if itemType == "" {
		s.items = make(map[string][]Item)
	} else {
		delete(s.items, itemType)
	}
	snapshot := s.copyItems()
	s.mu.Unlock()

	s.save(snapshot)
}

// copyItems must be called with the lock held.
func (s *Store) copyItems() map[string][]Item {
	result := make(map[string][]Item, len(s.items))
	for k, v := range s.items {
		result[k] = slices.Clone(v)
	}
	return result
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path) //nolint:gosec // G304: Path is from trusted config
	if err != nil {
		return
	}
	var items map[string][]Item
	if err := json.Unmarshal(data, &items); err != nil || items == nil {
		return
	}
	s.items = items
}

// save writes snapshot through a temp file so readers never see a
// partial document.
func (s *Store) save(snapshot map[string][]Item) {
	err := func() error {
		if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
			return err
		}
		data, err := json.MarshalIndent(snapshot, "", "  ")
		if err != nil {
			return err
		}
		tmp := s.path + ".tmp"
		if err := os.WriteFile(tmp, data, 0600); err != nil {
			return err
		}
		return os.Rename(tmp, s.path)
	}()

	s.mu.Lock()
	s.lastError = err
	s.mu.Unlock()
}

// LastError returns the last error from a save, if any.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}
