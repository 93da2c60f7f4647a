package transfer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Acidni-LLC/copilot-chat-manager/internal/index"
)

func sampleSummaries() []*index.SessionSummary {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return []*index.SessionSummary{
		{
			ID:             "sess-1",
			ContainerLabel: "my-app",
			CreatedAt:      base,
			UpdatedAt:      base.Add(time.Hour),
			Tags:           []string{"GitHub Copilot"},
			MessageCount:   2,
			Messages: []index.Message{
				{ID: "sess-1-0", Role: index.RoleUser, Content: "how do I do <this>?", Timestamp: base},
				{ID: "sess-1-1", Role: index.RoleAssistant, Content: "like so", Timestamp: base},
			},
		},
		{
			ID:             "sess-2",
			ContainerLabel: "other",
			CreatedAt:      base,
			UpdatedAt:      base,
			MessageCount:   1,
			Messages: []index.Message{
				{ID: "sess-2-0", Role: index.RoleUser, Content: "ping", Timestamp: base},
			},
		},
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	data, err := Export(sampleSummaries(), FormatJSON)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, WriteFile(path, data))

	engine := index.NewEngine(t.TempDir(), nil)
	res, err := Import(path, engine)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 0, res.Skipped)
	assert.Empty(t, res.Errors)

	s, ok := engine.Get("sess-1")
	require.True(t, ok)
	assert.Equal(t, "my-app", s.ContainerLabel)
	assert.Equal(t, 2, s.MessageCount)
	require.Len(t, s.Messages, 2)
	assert.Equal(t, index.RoleUser, s.Messages[0].Role)
	assert.Equal(t, "how do I do <this>?", s.Messages[0].Content)
	assert.Equal(t, index.RoleAssistant, s.Messages[1].Role)
	assert.Equal(t, "how do I do <this>?", s.FirstMessage)
}

func TestImportIdempotent(t *testing.T) {
	data, err := Export(sampleSummaries(), FormatJSON)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, WriteFile(path, data))

	engine := index.NewEngine(t.TempDir(), nil)
	_, err = Import(path, engine)
	require.NoError(t, err)
	before := engine.Snapshot()

	res, err := Import(path, engine)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Imported)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, before, engine.Snapshot())
}

func TestImportSingleEntry(t *testing.T) {
	chat := toExportedChat(sampleSummaries()[0])
	data, err := json.Marshal(chat)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "single.json")
	require.NoError(t, os.WriteFile(path, data, 0644))

	engine := index.NewEngine(t.TempDir(), nil)
	res, err := Import(path, engine)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.True(t, engine.Contains("sess-1"))
}

func TestImportNativeSession(t *testing.T) {
	dir := t.TempDir()
	sessionsDir := filepath.Join(dir, "my-workspace", "chatSessions")
	require.NoError(t, os.MkdirAll(sessionsDir, 0755))
	path := filepath.Join(sessionsDir, "native.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"sessionId": "native-1",
		"creationDate": 1700000000000,
		"lastMessageDate": 1700000100000,
		"requests": [{"message": {"text": "hello"}, "response": {"value": "hi"}}]
	}`), 0644))

	engine := index.NewEngine(t.TempDir(), nil)
	res, err := Import(path, engine)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)

	s, ok := engine.Get("native-1")
	require.True(t, ok)
	// no descriptor: label falls back to the grandparent directory name
	assert.Equal(t, "my-workspace", s.ContainerLabel)
	assert.Equal(t, 2, s.MessageCount)

	// the backing file is known, so a full load works
	backing, ok := engine.PathFor("native-1")
	require.True(t, ok)
	assert.Equal(t, path, backing)
}

func TestImportNativeSessionUsesDescriptor(t *testing.T) {
	dir := t.TempDir()
	containerDir := filepath.Join(dir, "hash-1234")
	sessionsDir := filepath.Join(containerDir, "chatSessions")
	require.NoError(t, os.MkdirAll(sessionsDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(containerDir, "workspace.json"),
		[]byte(`{"folder": "file:///home/dev/real-project"}`), 0644))

	path := filepath.Join(sessionsDir, "native.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"sessionId": "native-2",
		"requests": [{"message": {"text": "hello"}}]
	}`), 0644))

	engine := index.NewEngine(t.TempDir(), nil)
	res, err := Import(path, engine)
	require.NoError(t, err)
	require.Equal(t, 1, res.Imported)

	s, ok := engine.Get("native-2")
	require.True(t, ok)
	// the sibling descriptor beats the grandparent directory name
	assert.Equal(t, "real-project", s.ContainerLabel)
}

func TestImportUnrecognizedShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weird.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"zebra": 1, "aardvark": 2}`), 0644))

	engine := index.NewEngine(t.TempDir(), nil)
	_, err := Import(path, engine)
	require.Error(t, err)
	// diagnostics name the observed top-level fields
	assert.Contains(t, err.Error(), "aardvark")
	assert.Contains(t, err.Error(), "zebra")
}

func TestImportNotJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	engine := index.NewEngine(t.TempDir(), nil)
	_, err := Import(path, engine)
	assert.Error(t, err)
}

func TestImportEnvelopePartialSuccess(t *testing.T) {
	env := Envelope{
		Version:  EnvelopeVersion,
		Exporter: exporterTag,
		Chats: []ExportedChat{
			{ID: "ok-1", Messages: []ExportedMessage{{Role: "user", Content: "x"}}},
			{ID: "", Messages: nil}, // missing identity
		},
	}
	data, err := json.Marshal(env)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "mixed.json")
	require.NoError(t, os.WriteFile(path, data, 0644))

	engine := index.NewEngine(t.TempDir(), nil)
	res, err := Import(path, engine)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Imported)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "missing identity")
}

func TestExportMarkdown(t *testing.T) {
	data, err := Export(sampleSummaries(), FormatMarkdown)
	require.NoError(t, err)
	md := string(data)

	assert.Contains(t, md, "## sess-1")
	assert.Contains(t, md, "### 1. user")
	assert.Contains(t, md, "how do I do <this>?")
	assert.Contains(t, md, "## sess-2")
}

func TestExportHTMLEscapes(t *testing.T) {
	data, err := Export(sampleSummaries(), FormatHTML)
	require.NoError(t, err)
	html := string(data)

	assert.Contains(t, html, "&lt;this&gt;")
	assert.NotContains(t, html, "<this>")
	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
}

func TestExportUnsupportedFormat(t *testing.T) {
	_, err := Export(sampleSummaries(), Format("yaml"))
	assert.Error(t, err)
}

func TestExportNativeCopyPreservesBytes(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src.json")
	// unknown fields the index model does not represent
	original := []byte(`{"sessionId": "s", "requests": [], "customExtension": {"keep": true}}`)
	require.NoError(t, os.WriteFile(src, original, 0644))

	dest := filepath.Join(t.TempDir(), "out", "copy.json")
	require.NoError(t, ExportNativeCopy(src, dest))

	copied, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, original, copied)
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	require.NoError(t, WriteFile(path, []byte("v1")))
	require.NoError(t, WriteFile(path, []byte("v2")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))

	// no temp files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
