package index

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SessionFileSuffix is the fixed suffix convention for native session files.
const SessionFileSuffix = ".json"

// nativeFile mirrors the on-disk Copilot chat session shape. Dates are
// millisecond epoch integers. Turn responses stay raw until probed so that
// metadata extraction never materializes full response bodies.
type nativeFile struct {
	SessionID       string       `json:"sessionId"`
	CreationDate    int64        `json:"creationDate"`
	LastMessageDate int64        `json:"lastMessageDate"`
	Responder       string       `json:"responderUsername"`
	Requester       string       `json:"requesterUsername"`
	Requests        []nativeTurn `json:"requests"`
}

type nativeTurn struct {
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
	Response  json.RawMessage `json:"response"`
	Result    json.RawMessage `json:"result"`
	Timestamp int64           `json:"timestamp"`
}

// NativeSession is the parsed form of a native session file.
type NativeSession struct {
	SessionID string
	CreatedAt time.Time // zero when the source omits creationDate
	UpdatedAt time.Time
	Model     string
	turns     []nativeTurn
}

// ParseNative parses a complete native session file. It fails on malformed
// JSON; a structurally valid file without requests parses fine and reports
// TurnCount() == 0 (callers treat that as "not a session").
func ParseNative(data []byte) (*NativeSession, error) {
	var raw nativeFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse session file: %w", err)
	}

	s := &NativeSession{
		SessionID: raw.SessionID,
		Model:     raw.Responder,
		turns:     raw.Requests,
	}
	if raw.CreationDate > 0 {
		s.CreatedAt = time.UnixMilli(raw.CreationDate)
	}
	if raw.LastMessageDate > 0 {
		s.UpdatedAt = time.UnixMilli(raw.LastMessageDate)
	}
	return s, nil
}

// TurnCount returns the number of request entries.
func (s *NativeSession) TurnCount() int { return len(s.turns) }

// FirstUserText returns the text of the first non-empty user turn.
func (s *NativeSession) FirstUserText() string {
	for _, t := range s.turns {
		if t.Message.Text != "" {
			return t.Message.Text
		}
	}
	return ""
}

// LastUserText returns the text of the last non-empty user turn.
func (s *NativeSession) LastUserText() string {
	for i := len(s.turns) - 1; i >= 0; i-- {
		if s.turns[i].Message.Text != "" {
			return s.turns[i].Message.Text
		}
	}
	return ""
}

// Messages materializes the ordered message list. Each turn emits a user
// message when request text is present, then an assistant message when any
// recognized response shape yields text. A turn with no recognizable
// response contributes the user message only.
func (s *NativeSession) Messages() []Message {
	var msgs []Message
	for i, t := range s.turns {
		ts := s.UpdatedAt
		if t.Timestamp > 0 {
			ts = time.UnixMilli(t.Timestamp)
		}
		if t.Message.Text != "" {
			msgs = append(msgs, Message{
				ID:        fmt.Sprintf("%s-%d-user", s.SessionID, i),
				Role:      RoleUser,
				Content:   t.Message.Text,
				Timestamp: ts,
			})
		}
		if text := responseText(t.Response, t.Result); text != "" {
			msgs = append(msgs, Message{
				ID:        fmt.Sprintf("%s-%d-assistant", s.SessionID, i),
				Role:      RoleAssistant,
				Content:   text,
				Timestamp: ts,
			})
		}
	}
	return msgs
}

// responseText probes the known response shapes in priority order; the
// first non-empty match wins:
//  1. response.value
//  2. response.result.value
//  3. result.message
//  4. response as a list of parts, joined by newlines
func responseText(response, result json.RawMessage) string {
	if len(response) > 0 {
		var direct struct {
			Value  string `json:"value"`
			Result struct {
				Value string `json:"value"`
			} `json:"result"`
		}
		if err := json.Unmarshal(response, &direct); err == nil {
			if direct.Value != "" {
				return direct.Value
			}
			if direct.Result.Value != "" {
				return direct.Result.Value
			}
		}
	}

	if len(result) > 0 {
		var alt struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(result, &alt); err == nil && alt.Message != "" {
			return alt.Message
		}
	}

	if len(response) > 0 {
		var parts []struct {
			Value string `json:"value"`
			Text  string `json:"text"`
		}
		if err := json.Unmarshal(response, &parts); err == nil {
			var sb strings.Builder
			for _, p := range parts {
				text := p.Value
				if text == "" {
					text = p.Text
				}
				if text == "" {
					continue
				}
				if sb.Len() > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString(text)
			}
			if sb.Len() > 0 {
				return sb.String()
			}
		}
	}

	return ""
}
