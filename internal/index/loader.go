package index

import (
	"log/slog"
	"os"
)

// LoadMessages materializes the full ordered message list for one session.
// The backing file is re-read and fully parsed; the stored summary is then
// upgraded in place with the exact messages and count, so subsequent
// snapshots carry them. An identity with no known backing path returns the
// messages already attached to its summary, which may be empty. On read or
// parse failure the previous summary is left untouched and nil is returned
// with the error.
func (e *Engine) LoadMessages(id string) ([]Message, error) {
	path, ok := e.PathFor(id)
	if !ok {
		e.mu.RLock()
		defer e.mu.RUnlock()
		if s, found := e.byID[id]; found {
			return append([]Message(nil), s.Messages...), nil
		}
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		indexLog.Warn("load_read_failed",
			slog.String("session", id),
			slog.String("path", path),
			slog.String("error", err.Error()))
		return nil, err
	}

	ns, err := ParseNative(data)
	if err != nil {
		indexLog.Warn("load_parse_failed",
			slog.String("session", id),
			slog.String("path", path),
			slog.String("error", err.Error()))
		return nil, err
	}

	msgs := ns.Messages()

	e.mu.Lock()
	if s, found := e.byID[id]; found {
		s.Messages = msgs
		s.MessageCount = len(msgs)
	}
	e.mu.Unlock()

	indexLog.Debug("messages_loaded",
		slog.String("session", id),
		slog.Int("count", len(msgs)))

	return msgs, nil
}
