package index

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionBody(id, question, answer string) string {
	return fmt.Sprintf(`{
		"sessionId": %q,
		"creationDate": 1700000000000,
		"lastMessageDate": 1700000100000,
		"responderUsername": "GitHub Copilot",
		"requests": [{"message": {"text": %q}, "response": {"value": %q}}]
	}`, id, question, answer)
}

func TestScanBuildsIndex(t *testing.T) {
	root := t.TempDir()
	writeSessionFile(t, root, "hash-a", "s1.json", sessionBody("s1", "q1", "a1"))
	writeSessionFile(t, root, "hash-a", "s2.json", sessionBody("s2", "q2", "a2"))
	writeSessionFile(t, root, "hash-b", "s3.json", sessionBody("s3", "q3", "a3"))

	e := NewEngine(root, nil)
	snap := e.Scan(context.Background())

	assert.Len(t, snap, 3)
	st := e.Stats()
	assert.Equal(t, 3, st.SessionsFound)
	assert.Equal(t, 0, st.CacheHits)
	assert.Equal(t, 2, st.ContainersVisited)

	s, ok := e.Get("s2")
	require.True(t, ok)
	assert.Equal(t, "q2", s.FirstMessage)
	assert.Equal(t, 2, s.MessageCount)

	path, ok := e.PathFor("s2")
	require.True(t, ok)
	assert.Contains(t, path, "s2.json")
}

func TestScanFreshnessWindow(t *testing.T) {
	root := t.TempDir()
	writeSessionFile(t, root, "hash-a", "s1.json", sessionBody("s1", "q", "a"))

	e := NewEngine(root, nil)
	first := e.Scan(context.Background())
	firstAt := e.LastScan()

	// Immediately rescanning returns the identical snapshot without a new
	// pass: the scan timestamp does not move.
	second := e.Scan(context.Background())
	assert.Equal(t, first, second)
	assert.Equal(t, firstAt, e.LastScan())
}

func TestScanCacheHitSkipsExtraction(t *testing.T) {
	root := t.TempDir()
	writeSessionFile(t, root, "hash-a", "s1.json", sessionBody("s1", "q", "a"))
	writeSessionFile(t, root, "hash-a", "s2.json", sessionBody("s2", "q", "a"))

	e := NewEngine(root, nil)
	e.Scan(context.Background())
	assert.Equal(t, 0, e.Stats().CacheHits)

	// Dirty bypasses the freshness window but the fingerprints still match,
	// so every file is served from cache.
	e.MarkDirty()
	e.Scan(context.Background())

	st := e.Stats()
	assert.Equal(t, 2, st.SessionsFound)
	assert.Equal(t, 2, st.CacheHits)
}

func TestScanReplacesSnapshotWholesale(t *testing.T) {
	root := t.TempDir()
	writeSessionFile(t, root, "hash-a", "s1.json", sessionBody("s1", "q", "a"))
	path2 := writeSessionFile(t, root, "hash-a", "s2.json", sessionBody("s2", "q", "a"))

	e := NewEngine(root, nil)
	e.Scan(context.Background())
	assert.Len(t, e.Snapshot(), 2)

	require.NoError(t, os.Remove(path2))
	e.MarkDirty()
	e.Scan(context.Background())

	snap := e.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "s1", snap[0].ID)

	// The identity->path table accumulates across scans.
	_, ok := e.PathFor("s2")
	assert.True(t, ok)
}

func TestScanCountsParseErrors(t *testing.T) {
	root := t.TempDir()
	writeSessionFile(t, root, "hash-a", "good.json", sessionBody("good", "q", "a"))
	writeSessionFile(t, root, "hash-a", "bad.json", `garbage`)
	writeSessionFile(t, root, "hash-a", "nosession.json", `{"sessionId": "empty"}`)

	e := NewEngine(root, nil)
	e.Scan(context.Background())

	st := e.Stats()
	assert.Equal(t, 1, st.SessionsFound)
	assert.Equal(t, 1, st.ParseErrors) // bad.json only; nosession.json is not an error
}

func TestLoadMessagesUpgradesCount(t *testing.T) {
	root := t.TempDir()
	// Second turn has no recognizable response: 2 turns estimate 4 messages
	// but only 3 exist.
	writeSessionFile(t, root, "hash-a", "s1.json", `{
		"sessionId": "s1",
		"requests": [
			{"message": {"text": "q1"}, "response": {"value": "a1"}},
			{"message": {"text": "q2"}, "response": {"unknown": 1}}
		]
	}`)

	e := NewEngine(root, nil)
	e.Scan(context.Background())

	s, _ := e.Get("s1")
	assert.Equal(t, 4, s.MessageCount)

	msgs, err := e.LoadMessages("s1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	s, _ = e.Get("s1")
	assert.Equal(t, 3, s.MessageCount)
	assert.Len(t, s.Messages, 3)
}

func TestLoadMessagesNoBackingPath(t *testing.T) {
	e := NewEngine(t.TempDir(), nil)
	e.Add(&SessionSummary{
		ID:       "imported",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	}, "")

	msgs, err := e.LoadMessages("imported")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Content)
}

func TestScanCollidingIdentitiesShadow(t *testing.T) {
	// Two distinct files carrying the same embedded sessionId: the snapshot
	// must hold a single entry for that identity, agreeing with Get.
	root := t.TempDir()
	writeSessionFile(t, root, "hash-a", "one.json", sessionBody("collide", "from a", "a"))
	writeSessionFile(t, root, "hash-b", "two.json", sessionBody("collide", "from b", "b"))

	e := NewEngine(root, nil)
	snap := e.Scan(context.Background())

	require.Len(t, snap, 1)
	assert.Equal(t, "collide", snap[0].ID)
	assert.Equal(t, 1, e.Stats().SessionsFound)

	got, ok := e.Get("collide")
	require.True(t, ok)
	assert.Equal(t, snap[0].FirstMessage, got.FirstMessage)

	// Both files stay tracked in the cache as separate path entries.
	assert.Equal(t, 2, e.cache.Len())
}

// stubStore feeds canned entries to Engine.Init.
type stubStore struct {
	entries []*CacheEntry
	saved   [][]*CacheEntry
}

func (s *stubStore) SaveEntries(entries []*CacheEntry) error {
	s.saved = append(s.saved, entries)
	return nil
}

func (s *stubStore) LoadEntries() ([]*CacheEntry, error) {
	return s.entries, nil
}

func TestInitCollidingIdentitiesShadow(t *testing.T) {
	mtime := time.Now()
	store := &stubStore{entries: []*CacheEntry{
		{Path: "/r/a/chatSessions/one.json", Identity: "collide", Size: 1, ModTime: mtime,
			Summary: &SessionSummary{ID: "collide", FirstMessage: "from a"}},
		{Path: "/r/b/chatSessions/two.json", Identity: "collide", Size: 2, ModTime: mtime,
			Summary: &SessionSummary{ID: "collide", FirstMessage: "from b"}},
	}}

	e := NewEngine("/r", store)
	e.Init()

	snap := e.Snapshot()
	require.Len(t, snap, 1)

	// Snapshot and Get must agree on which summary won.
	got, ok := e.Get("collide")
	require.True(t, ok)
	assert.Equal(t, "from b", got.FirstMessage)
	assert.Equal(t, "from b", snap[0].FirstMessage)

	path, ok := e.PathFor("collide")
	require.True(t, ok)
	assert.Equal(t, "/r/b/chatSessions/two.json", path)
}

func TestAddShadowsExisting(t *testing.T) {
	e := NewEngine(t.TempDir(), nil)
	e.Add(&SessionSummary{ID: "dup", FirstMessage: "old"}, "")
	e.Add(&SessionSummary{ID: "dup", FirstMessage: "new"}, "")

	assert.Len(t, e.Snapshot(), 1)
	s, _ := e.Get("dup")
	assert.Equal(t, "new", s.FirstMessage)
}

func TestSnapshotIsolation(t *testing.T) {
	e := NewEngine(t.TempDir(), nil)
	e.Add(&SessionSummary{ID: "s", Tags: []string{"Unknown"}}, "")

	snap := e.Snapshot()
	snap[0].Tags[0] = "mutated"
	snap[0].FirstMessage = "mutated"

	s, _ := e.Get("s")
	assert.Equal(t, "Unknown", s.Tags[0])
	assert.Empty(t, s.FirstMessage)
}

func TestConcurrentScansExclusive(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 30; i++ {
		name := fmt.Sprintf("s%d.json", i)
		writeSessionFile(t, root, "hash-a", name, sessionBody(fmt.Sprintf("s%d", i), "q", "a"))
	}

	e := NewEngine(root, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Scan(context.Background())
		}()
	}
	wg.Wait()

	// At least one full pass completed; no duplicates from racing passes.
	snap := e.Snapshot()
	seen := map[string]bool{}
	for _, s := range snap {
		assert.False(t, seen[s.ID], "duplicate %s", s.ID)
		seen[s.ID] = true
	}
}
