package index

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStalenessCacheExactMatch(t *testing.T) {
	c := NewStalenessCache()
	mtime := time.Date(2025, 6, 1, 12, 0, 0, 123456789, time.UTC)
	summary := &SessionSummary{ID: "s1"}

	c.Store("/x/a.json", "s1", 100, mtime, summary)

	got, ok := c.Lookup("/x/a.json", 100, mtime)
	assert.True(t, ok)
	assert.Same(t, summary, got)

	// size mismatch
	_, ok = c.Lookup("/x/a.json", 101, mtime)
	assert.False(t, ok)

	// mtime mismatch, even by a nanosecond
	_, ok = c.Lookup("/x/a.json", 100, mtime.Add(time.Nanosecond))
	assert.False(t, ok)

	// unknown path
	_, ok = c.Lookup("/x/b.json", 100, mtime)
	assert.False(t, ok)
}

func TestStalenessCacheKeyedByPath(t *testing.T) {
	// Two files carrying the same identity are tracked as separate entries.
	c := NewStalenessCache()
	mtime := time.Now()

	c.Store("/x/a.json", "dup", 10, mtime, &SessionSummary{ID: "dup", FirstMessage: "a"})
	c.Store("/x/b.json", "dup", 20, mtime, &SessionSummary{ID: "dup", FirstMessage: "b"})

	assert.Equal(t, 2, c.Len())

	got, ok := c.Lookup("/x/a.json", 10, mtime)
	assert.True(t, ok)
	assert.Equal(t, "a", got.FirstMessage)
}

func TestStalenessCacheRestore(t *testing.T) {
	c := NewStalenessCache()
	mtime := time.Now()
	c.Store("/x/old.json", "old", 1, mtime, &SessionSummary{ID: "old"})

	c.Restore([]*CacheEntry{
		{Path: "/y/new.json", Identity: "new", Size: 5, ModTime: mtime, Summary: &SessionSummary{ID: "new"}},
	})

	assert.Equal(t, 1, c.Len())
	_, ok := c.Lookup("/x/old.json", 1, mtime)
	assert.False(t, ok)
	got, ok := c.Lookup("/y/new.json", 5, mtime)
	assert.True(t, ok)
	assert.Equal(t, "new", got.ID)
}
