package index

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Acidni-LLC/copilot-chat-manager/internal/logging"
	"github.com/Acidni-LLC/copilot-chat-manager/internal/platform"
)

var watchLog = logging.ForComponent(logging.CompWatch)

// watchDebounce is how long file activity must settle before onChange fires.
// Editors touch session files in bursts, so a per-event callback would mark
// the index dirty dozens of times for one save.
const watchDebounce = 300 * time.Millisecond

// Watcher monitors the root and every container's chatSessions directory for
// session-file changes and invokes onChange once per settled burst. The
// typical onChange is Engine.MarkDirty, which makes the next scan bypass the
// freshness window.
type Watcher struct {
	root     string
	watcher  *fsnotify.Watcher
	onChange func()
	stopCh   chan struct{}
	stopOnce sync.Once

	mu        sync.Mutex
	lastEvent time.Time
}

// NewWatcher creates a watcher for root. Call Start to begin delivery.
func NewWatcher(root string, onChange func()) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:     root,
		watcher:  fsWatcher,
		onChange: onChange,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start registers watch points and launches the event loop. A root on a
// filesystem with unreliable notification support (9p, NFS, CIFS) logs a
// warning but still starts; events may simply never arrive there.
func (w *Watcher) Start() error {
	if warn := platform.CheckNotifySupport(w.root); warn != "" {
		watchLog.Warn("notify_support", slog.String("warning", warn))
	}

	if err := w.watcher.Add(w.root); err != nil {
		return err
	}
	w.addContainerDirs()

	go w.watchLoop()
	return nil
}

// addContainerDirs registers every existing container's chatSessions
// directory. Containers appearing later are picked up from Create events on
// the root.
func (w *Watcher) addContainerDirs() {
	containers, err := os.ReadDir(w.root)
	if err != nil {
		return
	}
	for _, c := range containers {
		if !c.IsDir() {
			continue
		}
		dir := filepath.Join(w.root, c.Name(), sessionsDirName)
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			watchLog.Debug("watch_add_failed",
				slog.String("dir", dir),
				slog.String("error", err.Error()))
		}
	}
}

// Stop stops the watcher. Safe to call multiple times.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) watchLoop() {
	var debounceTimer *time.Timer

	for {
		select {
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if !w.relevant(event) {
				continue
			}

			w.mu.Lock()
			w.lastEvent = time.Now()
			w.mu.Unlock()

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(watchDebounce, func() {
				w.mu.Lock()
				elapsed := time.Since(w.lastEvent)
				w.mu.Unlock()

				if elapsed >= watchDebounce {
					watchLog.Debug("change_settled")
					w.onChange()
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			watchLog.Debug("watch_error", slog.String("error", err.Error()))
		}
	}
}

// relevant filters events down to session-file activity, and opportunistically
// registers chatSessions directories of containers created after Start.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// New container under the root: watch its sessions dir if present.
			if filepath.Dir(event.Name) == w.root {
				dir := filepath.Join(event.Name, sessionsDirName)
				if _, err := os.Stat(dir); err == nil {
					_ = w.watcher.Add(dir)
				}
			}
			return false
		}
	}

	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return strings.HasSuffix(event.Name, SessionFileSuffix)
}
