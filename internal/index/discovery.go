package index

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Acidni-LLC/copilot-chat-manager/internal/logging"
)

var scanLog = logging.ForComponent(logging.CompScan)

// MaxSessionFileSize is the ceiling above which a session file is counted
// as skipped-large and excluded from extraction, loading and search.
const MaxSessionFileSize = 50 * 1024 * 1024

// sessionsDirName is the nested directory each container must have;
// containers without it are not workspaces with chat history.
const sessionsDirName = "chatSessions"

// Discover enumerates candidate session files under root. Each immediate
// subdirectory of root is one container; its chatSessions/ directory is
// listed for files with the session suffix, and each candidate is stat-ed
// (size + mtime) without reading content. A missing root yields an empty
// list; per-container read errors are counted in stats but do not abort
// discovery of other containers.
func Discover(root string, stats *ScanStats) []Candidate {
	containers, err := os.ReadDir(root)
	if err != nil {
		if !os.IsNotExist(err) {
			scanLog.Warn("root_read_failed", slog.String("root", root), slog.String("error", err.Error()))
		}
		return nil
	}

	var candidates []Candidate
	for _, c := range containers {
		if !c.IsDir() {
			continue
		}

		sessionsDir := filepath.Join(root, c.Name(), sessionsDirName)
		entries, err := os.ReadDir(sessionsDir)
		if err != nil {
			if os.IsNotExist(err) {
				continue // not a chat workspace
			}
			stats.ParseErrors++
			scanLog.Warn("container_read_failed", slog.String("container", c.Name()), slog.String("error", err.Error()))
			continue
		}
		stats.ContainersVisited++

		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), SessionFileSuffix) {
				continue
			}
			info, err := e.Info()
			if err != nil {
				stats.ParseErrors++
				continue
			}
			if info.Size() > MaxSessionFileSize {
				stats.SkippedLarge++
				scanLog.Debug("skipped_large",
					slog.String("path", filepath.Join(sessionsDir, e.Name())),
					slog.Int64("size", info.Size()))
				continue
			}
			candidates = append(candidates, Candidate{
				Path:        filepath.Join(sessionsDir, e.Name()),
				ContainerID: c.Name(),
				Size:        info.Size(),
				ModTime:     info.ModTime(),
			})
		}
	}

	return candidates
}
