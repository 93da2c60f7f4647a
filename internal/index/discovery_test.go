package index

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSessionFile lays out root/<container>/chatSessions/<name> with body.
func writeSessionFile(t *testing.T, root, container, name, body string) string {
	t.Helper()
	dir := filepath.Join(root, container, sessionsDirName)
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDiscoverLayout(t *testing.T) {
	root := t.TempDir()
	writeSessionFile(t, root, "hash-a", "s1.json", `{}`)
	writeSessionFile(t, root, "hash-a", "s2.json", `{}`)
	writeSessionFile(t, root, "hash-b", "s3.json", `{}`)
	writeSessionFile(t, root, "hash-a", "notes.txt", `ignored`)

	// container without chatSessions is skipped silently
	require.NoError(t, os.MkdirAll(filepath.Join(root, "hash-empty"), 0755))

	stats := ScanStats{}
	cands := Discover(root, &stats)

	assert.Len(t, cands, 3)
	assert.Equal(t, 2, stats.ContainersVisited)

	byContainer := map[string]int{}
	for _, c := range cands {
		byContainer[c.ContainerID]++
		assert.True(t, strings.HasSuffix(c.Path, SessionFileSuffix))
		assert.False(t, c.ModTime.IsZero())
		assert.Greater(t, c.Size, int64(0))
	}
	assert.Equal(t, 2, byContainer["hash-a"])
	assert.Equal(t, 1, byContainer["hash-b"])
}

func TestDiscoverMissingRoot(t *testing.T) {
	stats := ScanStats{}
	cands := Discover(filepath.Join(t.TempDir(), "nope"), &stats)
	assert.Empty(t, cands)
	assert.Zero(t, stats.ParseErrors)
}

func TestDiscoverSkipsLargeFiles(t *testing.T) {
	root := t.TempDir()
	path := writeSessionFile(t, root, "hash-a", "big.json", `{}`)

	// Sparse-truncate past the ceiling instead of writing 50MiB.
	require.NoError(t, os.Truncate(path, MaxSessionFileSize+1))
	writeSessionFile(t, root, "hash-a", "small.json", `{}`)

	stats := ScanStats{}
	cands := Discover(root, &stats)

	require.Len(t, cands, 1)
	assert.Equal(t, "small.json", filepath.Base(cands[0].Path))
	assert.Equal(t, 1, stats.SkippedLarge)
}
