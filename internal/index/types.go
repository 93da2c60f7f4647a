package index

import "time"

// Message roles. A message is exactly one of the two.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn half inside a session. Ordering within a session is
// the discovery order in the source file; no reordering is performed.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionSummary is the lightweight, listing-oriented description of one
// session. Messages are attached only after a full load (or when rehydrated
// from the persisted cache); MessageCount is an estimate (turns x 2) until
// LoadMessages overwrites it with the exact count.
type SessionSummary struct {
	ID             string    `json:"id"`
	ContainerID    string    `json:"container_id"`
	ContainerLabel string    `json:"container_label"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	FirstMessage   string    `json:"first_message"`
	LastMessage    string    `json:"last_message"`
	MessageCount   int       `json:"message_count"`
	FileSize       int64     `json:"file_size"`
	Tags           []string  `json:"tags,omitempty"`
	AttachmentRef  string    `json:"attachment_ref,omitempty"`
	Messages       []Message `json:"messages,omitempty"`
}

// Clone returns a deep copy so snapshot consumers cannot mutate the index.
func (s *SessionSummary) Clone() *SessionSummary {
	out := *s
	if s.Tags != nil {
		out.Tags = append([]string(nil), s.Tags...)
	}
	if s.Messages != nil {
		out.Messages = append([]Message(nil), s.Messages...)
	}
	return &out
}

// Candidate is one stat-ed session file produced by discovery.
type Candidate struct {
	Path        string
	ContainerID string
	Size        int64
	ModTime     time.Time
}

// ScanStats counts what a single scan pass saw. Recomputed fresh each scan,
// never persisted.
type ScanStats struct {
	ContainersVisited int `json:"containers_visited"`
	SessionsFound     int `json:"sessions_found"`
	ParseErrors       int `json:"parse_errors"`
	SkippedLarge      int `json:"skipped_large"`
	CacheHits         int `json:"cache_hits"`
}
