package index

import (
	"encoding/json"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// extractPrefixSize bounds the first read attempt. Typical session files
// are well under this, so most extractions never read the file twice.
const extractPrefixSize = 64 * 1024

// previewLimit is the rune cap for first/last message previews.
const previewLimit = 200

// defaultTag is used when the source carries no model metadata.
const defaultTag = "Unknown"

// ExtractSummary parses a candidate into a Session Summary without
// materializing full message content. A structurally valid file with no
// request entries yields (nil, nil): not a session, not an error.
func ExtractSummary(cand Candidate, containerLabel string, now time.Time) (*SessionSummary, error) {
	ns, err := readSessionFile(cand.Path, cand.Size)
	if err != nil {
		return nil, err
	}
	if ns.TurnCount() == 0 {
		return nil, nil
	}

	identity := ns.SessionID
	if identity == "" {
		identity = strings.TrimSuffix(filepath.Base(cand.Path), SessionFileSuffix)
	}

	created := ns.CreatedAt
	if created.IsZero() {
		created = now
	}
	updated := ns.UpdatedAt
	if updated.IsZero() {
		updated = now
	}

	tag := ns.Model
	if tag == "" {
		tag = defaultTag
	}

	return &SessionSummary{
		ID:             identity,
		ContainerID:    cand.ContainerID,
		ContainerLabel: containerLabel,
		CreatedAt:      created,
		UpdatedAt:      updated,
		FirstMessage:   truncatePreview(ns.FirstUserText(), previewLimit),
		LastMessage:    truncatePreview(ns.LastUserText(), previewLimit),
		// Turns x 2 approximates one user + one assistant message per turn;
		// LoadMessages replaces this with the exact count.
		MessageCount: ns.TurnCount() * 2,
		FileSize:     cand.Size,
		Tags:         []string{tag},
	}, nil
}

// readSessionFile is a two-step attempt: parse a bounded prefix first, and
// only when that fails on a file larger than the prefix (truncated
// mid-structure) fall back to reading the whole file.
func readSessionFile(path string, size int64) (*NativeSession, error) {
	if size <= extractPrefixSize {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return ParseNative(data)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	prefix, err := io.ReadAll(io.LimitReader(f, extractPrefixSize))
	if err != nil {
		f.Close()
		return nil, err
	}

	if ns, err := ParseNative(prefix); err == nil {
		f.Close()
		return ns, nil
	}

	// Tried partial, failed: retry full from the start.
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		return nil, err
	}
	return ParseNative(data)
}

// containerDescriptor mirrors the workspace.json sibling file.
type containerDescriptor struct {
	Folder string `json:"folder"`
}

// ContainerLabel resolves a human-readable label for a container: the base
// name of the workspace folder from the sibling workspace.json, or a
// synthesized placeholder from the container identity.
func ContainerLabel(root, containerID string) string {
	if label := DescriptorLabel(filepath.Join(root, containerID)); label != "" {
		return label
	}

	id := containerID
	if len(id) > 8 {
		id = id[:8]
	}
	return "workspace-" + id
}

// DescriptorLabel reads the workspace.json descriptor inside containerDir
// and returns the workspace folder's base name, or "" when the descriptor
// is absent or unusable.
func DescriptorLabel(containerDir string) string {
	data, err := os.ReadFile(filepath.Join(containerDir, "workspace.json"))
	if err != nil {
		return ""
	}
	var desc containerDescriptor
	if json.Unmarshal(data, &desc) != nil || desc.Folder == "" {
		return ""
	}
	return folderBase(desc.Folder)
}

// folderBase extracts the last path element from a folder reference, which
// may be a file:// URI or a plain path.
func folderBase(folder string) string {
	if u, err := url.Parse(folder); err == nil && u.Scheme != "" {
		folder = u.Path
	}
	folder = strings.TrimRight(folder, "/\\")
	if folder == "" {
		return ""
	}
	base := filepath.Base(filepath.FromSlash(folder))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return base
}

// truncatePreview cuts text to limit runes, ellipsis-suffixed if truncated.
func truncatePreview(text string, limit int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
