package cache

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// IndexEntry is the persisted metadata for one L2-stored artifact.
type IndexEntry struct {
	Key          string // hex content hash
	Type         EntryType
	Path         string // relative to the L2 root
	Size         int64  // on-disk (possibly compressed) size
	OriginalSize int64  // decompressed size
	Compressed   bool
	CachedAt     time.Time
	LastAccess   time.Time
	ExpiresAt    time.Time
	Metadata     string // free-form JSON, e.g. source URL
}

// IsExpired reports whether this entry has outlived its TTL.
func (e IndexEntry) IsExpired() bool {
	return !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt)
}

// Index is the persisted map of content hash -> IndexEntry backing L2.
// It is written to a single gob-encoded file and fsynced on every Flush,
// the same atomic temp-then-rename commit pattern the teacher's
// pkg/helpers/archive.go uses for its repacked tarballs.
type Index struct {
	mu      sync.RWMutex
	path    string
	entries map[string]IndexEntry
	dirty   bool
}

// OpenIndex loads (or creates) the index file at path.
func OpenIndex(path string) (*Index, error) {
	idx := &Index{path: path, entries: make(map[string]IndexEntry)}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return idx, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries map[string]IndexEntry
	if err := gob.NewDecoder(f).Decode(&entries); err != nil {
		// A corrupt index file is recoverable: start empty rather than
		// fail the whole cache open.
		return idx, nil
	}
	idx.entries = entries
	return idx, nil
}

// Get returns the entry for key, if present.
func (idx *Index) Get(key string) (IndexEntry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.entries[key]
	return e, ok
}

// Insert adds or replaces an entry.
func (idx *Index) Insert(e IndexEntry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[e.Key] = e
	idx.dirty = true
}

// Remove deletes an entry, returning it if it existed.
func (idx *Index) Remove(key string) (IndexEntry, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	e, ok := idx.entries[key]
	if ok {
		delete(idx.entries, key)
		idx.dirty = true
	}
	return e, ok
}

// Touch updates LastAccess for key.
func (idx *Index) Touch(key string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if e, ok := idx.entries[key]; ok {
		e.LastAccess = time.Now()
		idx.entries[key] = e
		idx.dirty = true
	}
}

// Contains reports presence without touching recency.
func (idx *Index) Contains(key string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.entries[key]
	return ok
}

// Len returns the number of indexed entries.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Clear empties the index.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = make(map[string]IndexEntry)
	idx.dirty = true
}

// FindByType returns every entry of the given type.
func (idx *Index) FindByType(t EntryType) []IndexEntry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var out []IndexEntry
	for _, e := range idx.entries {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// FindExpired returns the keys of every entry past its TTL.
func (idx *Index) FindExpired() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var out []string
	for k, e := range idx.entries {
		if e.IsExpired() {
			out = append(out, k)
		}
	}
	return out
}

// FindOldest returns up to n entries sorted by ascending LastAccess, the
// eviction candidates for evict_lru.
func (idx *Index) FindOldest(n int) []IndexEntry {
	idx.mu.RLock()
	all := make([]IndexEntry, 0, len(idx.entries))
	for _, e := range idx.entries {
		all = append(all, e)
	}
	idx.mu.RUnlock()

	sortByLastAccess(all)
	if len(all) > n {
		all = all[:n]
	}
	return all
}

func sortByLastAccess(entries []IndexEntry) {
	// insertion sort over every index entry: FindOldest is called on
	// maintenance paths only, never the hot path.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].LastAccess.Before(entries[j-1].LastAccess); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

// Flush persists the index to disk via a temp-file-then-rename, only if
// it has unsaved changes.
func (idx *Index) Flush() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.dirty {
		return nil
	}

	dir := filepath.Dir(idx.path)
	tmp, err := os.CreateTemp(dir, ".index-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if err := gob.NewEncoder(tmp).Encode(idx.entries); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, idx.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	idx.dirty = false
	return nil
}
