package index

import (
	"sync"
	"time"
)

// CacheEntry records the last-observed fingerprint of one session file plus
// the summary computed at that time. Keyed by path, not identity: the path
// is the unit of staleness tracking, and malformed sources can carry
// colliding identities across distinct files.
type CacheEntry struct {
	Path     string          `json:"path"`
	Identity string          `json:"identity"`
	ModTime  time.Time       `json:"mod_time"`
	Size     int64           `json:"size"`
	Summary  *SessionSummary `json:"summary"`
}

// StalenessCache decides reuse vs re-parse. A lookup hits only when both
// size and mtime match the recorded entry exactly; any mismatch, including
// "no entry", is a miss. This approximates content hashing and is
// acceptable because the source files are append-only in practice.
type StalenessCache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
}

// NewStalenessCache creates an empty cache.
func NewStalenessCache() *StalenessCache {
	return &StalenessCache{entries: make(map[string]*CacheEntry)}
}

// Lookup returns the cached summary for path when the fingerprint matches.
func (c *StalenessCache) Lookup(path string, size int64, mtime time.Time) (*SessionSummary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[path]
	if !ok || e.Size != size || !e.ModTime.Equal(mtime) {
		return nil, false
	}
	return e.Summary, true
}

// Store inserts or replaces the entry for path.
func (c *StalenessCache) Store(path, identity string, size int64, mtime time.Time, summary *SessionSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[path] = &CacheEntry{
		Path:     path,
		Identity: identity,
		ModTime:  mtime,
		Size:     size,
		Summary:  summary,
	}
}

// Entries returns a snapshot of all entries for persistence.
func (c *StalenessCache) Entries() []*CacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*CacheEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	return out
}

// Restore replaces the cache contents from persisted entries.
func (c *StalenessCache) Restore(entries []*CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*CacheEntry, len(entries))
	for _, e := range entries {
		c.entries[e.Path] = e
	}
}

// Len returns the number of tracked paths.
func (c *StalenessCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
