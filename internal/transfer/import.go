package transfer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Acidni-LLC/copilot-chat-manager/internal/index"
)

// Indexer is what import needs from the index: duplicate detection and
// insertion. Satisfied by *index.Engine.
type Indexer interface {
	Contains(id string) bool
	Add(summary *index.SessionSummary, sourcePath string)
}

// ImportResult aggregates the outcome of one import call. Partial success is
// normal: some entries imported, others skipped as duplicates or failed,
// reported together.
type ImportResult struct {
	Imported int
	Skipped  int
	Errors   []string
}

// Import reads path and detects its shape by structural sniffing, in
// priority order: an envelope carrying a chats array, a single exported
// chat, or a native session file. Entries whose identity already exists in
// the index are skipped, not errors. A file matching none of the shapes is
// a hard failure reporting the top-level field names found.
func Import(path string, idx Indexer) (*ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("transfer: read import file: %w", err)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("transfer: not a JSON object: %w", err)
	}

	res := &ImportResult{}
	switch {
	case top["chats"] != nil:
		importEnvelope(data, idx, res)
	case top["id"] != nil && top["messages"] != nil:
		importSingle(data, idx, res)
	case top["sessionId"] != nil && top["requests"] != nil:
		importNative(data, path, idx, res)
	default:
		return nil, fmt.Errorf("transfer: unrecognized import shape, top-level fields: %s",
			strings.Join(fieldNames(top), ", "))
	}

	transferLog.Info("import_complete",
		slog.String("path", path),
		slog.Int("imported", res.Imported),
		slog.Int("skipped", res.Skipped),
		slog.Int("errors", len(res.Errors)))
	return res, nil
}

func fieldNames(top map[string]json.RawMessage) []string {
	names := make([]string, 0, len(top))
	for k := range top {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func importEnvelope(data []byte, idx Indexer, res *ImportResult) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("envelope: %v", err))
		return
	}
	for i, chat := range env.Chats {
		importChat(chat, fmt.Sprintf("chats[%d]", i), idx, res)
	}
}

func importSingle(data []byte, idx Indexer, res *ImportResult) {
	var chat ExportedChat
	if err := json.Unmarshal(data, &chat); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("entry: %v", err))
		return
	}
	importChat(chat, "entry", idx, res)
}

func importChat(chat ExportedChat, label string, idx Indexer, res *ImportResult) {
	if chat.ID == "" {
		res.Errors = append(res.Errors, label+": missing identity")
		return
	}
	if idx.Contains(chat.ID) {
		res.Skipped++
		return
	}
	idx.Add(chatToSummary(chat), "")
	res.Imported++
}

// chatToSummary rebuilds a SessionSummary from an exported chat, deriving
// previews and the exact message count from the attached messages.
func chatToSummary(chat ExportedChat) *index.SessionSummary {
	msgs := make([]index.Message, 0, len(chat.Messages))
	var first, last string
	for i, m := range chat.Messages {
		msgs = append(msgs, index.Message{
			ID:        fmt.Sprintf("%s-%d", chat.ID, i),
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.Timestamp,
		})
		if m.Role == index.RoleUser {
			if first == "" {
				first = m.Content
			}
			last = m.Content
		}
	}

	return &index.SessionSummary{
		ID:             chat.ID,
		ContainerLabel: chat.Workspace,
		CreatedAt:      chat.CreatedAt,
		UpdatedAt:      chat.UpdatedAt,
		FirstMessage:   previewOf(first),
		LastMessage:    previewOf(last),
		MessageCount:   len(msgs),
		Tags:           chat.Tags,
		AttachmentRef:  chat.AttachmentRef,
		Messages:       msgs,
	}
}

// importNative converts an on-disk native session file through the same
// parsing path the extractor and loader use. The container label comes from
// the sibling workspace.json descriptor when one exists, else the file's
// grandparent directory name, matching the root/<container>/chatSessions/
// layout.
func importNative(data []byte, path string, idx Indexer, res *ImportResult) {
	ns, err := index.ParseNative(data)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("native session: %v", err))
		return
	}

	identity := ns.SessionID
	if identity == "" {
		identity = strings.TrimSuffix(filepath.Base(path), index.SessionFileSuffix)
	}
	if idx.Contains(identity) {
		res.Skipped++
		return
	}

	msgs := ns.Messages()
	tag := ns.Model
	if tag == "" {
		tag = "Unknown"
	}

	containerDir := filepath.Dir(filepath.Dir(path))
	label := index.DescriptorLabel(containerDir)
	if label == "" {
		label = filepath.Base(containerDir)
	}

	idx.Add(&index.SessionSummary{
		ID:             identity,
		ContainerLabel: label,
		CreatedAt:      ns.CreatedAt,
		UpdatedAt:      ns.UpdatedAt,
		FirstMessage:   previewOf(ns.FirstUserText()),
		LastMessage:    previewOf(ns.LastUserText()),
		MessageCount:   len(msgs),
		Tags:           []string{tag},
		Messages:       msgs,
	}, path)
	res.Imported++
}

// previewOf trims a full message down to the listing preview length.
func previewOf(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= 200 {
		return text
	}
	return string(runes[:200]) + "..."
}
