// Package transfer moves sessions in and out of the index: multi-format
// export and structurally-sniffed, deduplicating import.
package transfer

import (
	"encoding/json"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Acidni-LLC/copilot-chat-manager/internal/index"
	"github.com/Acidni-LLC/copilot-chat-manager/internal/logging"
)

var transferLog = logging.ForComponent(logging.CompTransfer)

// EnvelopeVersion is the current export envelope schema version.
const EnvelopeVersion = 1

// exporterTag identifies payloads produced by this tool so imports can
// recognize their own envelopes.
const exporterTag = "copilot-chat-manager"

// Format selects the export serialization.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	// FormatNative byte-copies the original backing file of exactly one
	// session, preserving fields the index model does not represent.
	FormatNative Format = "native"
)

// Envelope is the versioned native JSON export payload.
type Envelope struct {
	Version    int            `json:"version"`
	Exporter   string         `json:"exporter"`
	ExportedAt time.Time      `json:"exported_at"`
	Chats      []ExportedChat `json:"chats"`
}

// ExportedChat is one session in the envelope: summary plus full messages.
type ExportedChat struct {
	ID            string            `json:"id"`
	Workspace     string            `json:"workspace"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	Tags          []string          `json:"tags,omitempty"`
	AttachmentRef string            `json:"attachment_ref,omitempty"`
	Messages      []ExportedMessage `json:"messages"`
}

// ExportedMessage is one turn half within an exported chat.
type ExportedMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Export serializes summaries (messages must already be loaded) into the
// requested format. FormatNative is not handled here; use ExportNativeCopy.
func Export(summaries []*index.SessionSummary, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return exportJSON(summaries)
	case FormatMarkdown:
		return exportMarkdown(summaries), nil
	case FormatHTML:
		return exportHTML(summaries), nil
	default:
		return nil, fmt.Errorf("transfer: unsupported export format %q", format)
	}
}

func exportJSON(summaries []*index.SessionSummary) ([]byte, error) {
	env := Envelope{
		Version:    EnvelopeVersion,
		Exporter:   exporterTag,
		ExportedAt: time.Now(),
		Chats:      make([]ExportedChat, 0, len(summaries)),
	}
	for _, s := range summaries {
		env.Chats = append(env.Chats, toExportedChat(s))
	}
	return json.MarshalIndent(env, "", "  ")
}

func toExportedChat(s *index.SessionSummary) ExportedChat {
	chat := ExportedChat{
		ID:            s.ID,
		Workspace:     s.ContainerLabel,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
		Tags:          s.Tags,
		AttachmentRef: s.AttachmentRef,
		Messages:      make([]ExportedMessage, 0, len(s.Messages)),
	}
	for _, m := range s.Messages {
		chat.Messages = append(chat.Messages, ExportedMessage{
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.Timestamp,
		})
	}
	return chat
}

// exportMarkdown flattens sessions into one document: a section per session,
// a sub-section per message.
func exportMarkdown(summaries []*index.SessionSummary) []byte {
	var b strings.Builder
	b.WriteString("# Chat Sessions\n\n")

	for _, s := range summaries {
		fmt.Fprintf(&b, "## %s\n\n", s.ID)
		fmt.Fprintf(&b, "- Workspace: %s\n", s.ContainerLabel)
		fmt.Fprintf(&b, "- Created: %s\n", s.CreatedAt.Format(time.RFC3339))
		fmt.Fprintf(&b, "- Updated: %s\n", s.UpdatedAt.Format(time.RFC3339))
		if len(s.Tags) > 0 {
			fmt.Fprintf(&b, "- Tags: %s\n", strings.Join(s.Tags, ", "))
		}
		b.WriteString("\n")

		for i, m := range s.Messages {
			fmt.Fprintf(&b, "### %d. %s\n\n", i+1, m.Role)
			b.WriteString(m.Content)
			b.WriteString("\n\n")
		}
	}
	return []byte(b.String())
}

// exportHTML produces a self-contained document with all content escaped.
func exportHTML(summaries []*index.SessionSummary) []byte {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	b.WriteString("<title>Chat Sessions</title>\n</head>\n<body>\n")
	b.WriteString("<h1>Chat Sessions</h1>\n")

	for _, s := range summaries {
		fmt.Fprintf(&b, "<section>\n<h2>%s</h2>\n", html.EscapeString(s.ID))
		fmt.Fprintf(&b, "<p>Workspace: %s</p>\n", html.EscapeString(s.ContainerLabel))
		fmt.Fprintf(&b, "<p>Created: %s &mdash; Updated: %s</p>\n",
			s.CreatedAt.Format(time.RFC3339), s.UpdatedAt.Format(time.RFC3339))

		for _, m := range s.Messages {
			fmt.Fprintf(&b, "<article>\n<h3>%s</h3>\n<pre>%s</pre>\n</article>\n",
				html.EscapeString(m.Role), html.EscapeString(m.Content))
		}
		b.WriteString("</section>\n")
	}
	b.WriteString("</body>\n</html>\n")
	return []byte(b.String())
}

// ExportNativeCopy byte-copies the original backing file of one session to
// destPath, preserving every field the source format defines even where the
// index model does not represent it.
func ExportNativeCopy(srcPath, destPath string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("transfer: read source: %w", err)
	}
	return WriteFile(destPath, data)
}

// WriteFile writes data to path via a same-directory temp file and rename,
// so a crash mid-write never leaves a truncated export behind.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
