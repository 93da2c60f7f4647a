package index

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/Acidni-LLC/copilot-chat-manager/internal/logging"
)

var indexLog = logging.ForComponent(logging.CompIndex)

// ScanBatchSize is how many files are extracted concurrently. A batch must
// fully complete before the next starts, bounding open file handles.
const ScanBatchSize = 10

// FreshnessWindow is the coarse debounce for repeated scans: a scan that
// completed this recently is treated as cache-valid and short-circuited,
// unless the watcher has marked the index dirty.
const FreshnessWindow = 30 * time.Second

// Store is the persistence boundary for cache entries. Implemented by
// cachedb; written wholesale after each successful scan, read wholesale at
// startup.
type Store interface {
	SaveEntries(entries []*CacheEntry) error
	LoadEntries() ([]*CacheEntry, error)
}

// Engine owns the Index: the session summaries, the identity-to-path side
// table and the staleness cache. It is explicitly constructed and injected;
// consumers only read snapshots returned by its query operations.
type Engine struct {
	root  string
	cache *StalenessCache
	store Store

	// limiter paces batch starts so a large cold scan does not monopolize
	// disk I/O.
	limiter *rate.Limiter

	mu        sync.RWMutex
	summaries []*SessionSummary
	byID      map[string]*SessionSummary
	pathByID  map[string]string
	stats     ScanStats
	lastScan  time.Time

	scanning atomic.Bool
	dirty    atomic.Bool
}

// NewEngine creates an engine scanning root, persisting through store.
// store may be nil (in-memory only, used by tests).
func NewEngine(root string, store Store) *Engine {
	return &Engine{
		root:     root,
		cache:    NewStalenessCache(),
		store:    store,
		limiter:  rate.NewLimiter(rate.Limit(20), 5),
		byID:     make(map[string]*SessionSummary),
		pathByID: make(map[string]string),
	}
}

// Init loads the persisted cache and reconstructs the in-memory index from
// it, so metadata queries are servable before the first scan completes.
// A missing or corrupt persisted cache is treated as empty, not fatal.
func (e *Engine) Init() {
	if e.store == nil {
		return
	}

	entries, err := e.store.LoadEntries()
	if err != nil {
		indexLog.Warn("cache_load_failed", slog.String("error", err.Error()))
		return
	}

	e.cache.Restore(entries)

	e.mu.Lock()
	defer e.mu.Unlock()
	pos := make(map[string]int, len(entries))
	for _, entry := range entries {
		if entry.Summary == nil {
			continue
		}
		// Persisted identity collisions shadow last-wins, keeping the
		// snapshot slice and byID in agreement.
		if i, seen := pos[entry.Identity]; seen {
			e.summaries[i] = entry.Summary
		} else {
			pos[entry.Identity] = len(e.summaries)
			e.summaries = append(e.summaries, entry.Summary)
		}
		e.byID[entry.Identity] = entry.Summary
		e.pathByID[entry.Identity] = entry.Path
	}

	indexLog.Info("index_restored",
		slog.Int("entries", len(entries)),
		slog.Int("sessions", len(e.byID)))
}

// Root returns the resolved root directory being scanned.
func (e *Engine) Root() string { return e.root }

// MarkDirty forces the next Scan to bypass the freshness window. Called by
// the watcher when session files change on disk.
func (e *Engine) MarkDirty() { e.dirty.Store(true) }

// Scan walks the root, reuses cached summaries where the (size, mtime)
// fingerprint still matches, extracts the rest in batches, replaces the
// index snapshot wholesale and persists the cache. A scan already in
// progress, or one completed within the freshness window, returns the
// current snapshot instead of racing a second pass.
func (e *Engine) Scan(ctx context.Context) []*SessionSummary {
	if !e.scanning.CompareAndSwap(false, true) {
		return e.Snapshot()
	}
	defer e.scanning.Store(false)

	e.mu.RLock()
	fresh := !e.dirty.Load() && !e.lastScan.IsZero() && time.Since(e.lastScan) < FreshnessWindow
	e.mu.RUnlock()
	if fresh {
		return e.Snapshot()
	}

	start := time.Now()
	stats := ScanStats{}
	candidates := Discover(e.root, &stats)

	labels := make(map[string]string)
	now := time.Now()

	var newSummaries []*SessionSummary
	for batchStart := 0; batchStart < len(candidates); batchStart += ScanBatchSize {
		if err := e.limiter.Wait(ctx); err != nil {
			break
		}

		end := min(batchStart+ScanBatchSize, len(candidates))
		batch := candidates[batchStart:end]

		type result struct {
			summary *SessionSummary
			hit     bool
			failed  bool
		}
		results := make([]result, len(batch))

		var wg sync.WaitGroup
		for i, cand := range batch {
			label, ok := labels[cand.ContainerID]
			if !ok {
				label = ContainerLabel(e.root, cand.ContainerID)
				labels[cand.ContainerID] = label
			}

			wg.Add(1)
			go func(i int, cand Candidate, label string) {
				defer wg.Done()

				if cached, ok := e.cache.Lookup(cand.Path, cand.Size, cand.ModTime); ok {
					results[i] = result{summary: cached, hit: true}
					return
				}

				summary, err := ExtractSummary(cand, label, now)
				if err != nil {
					indexLog.Debug("extract_failed",
						slog.String("path", cand.Path),
						slog.String("error", err.Error()))
					results[i] = result{failed: true}
					return
				}
				if summary == nil {
					return // not a session
				}
				e.cache.Store(cand.Path, summary.ID, cand.Size, cand.ModTime, summary)
				results[i] = result{summary: summary}
			}(i, cand, label)
		}
		wg.Wait()

		for i, r := range results {
			switch {
			case r.failed:
				stats.ParseErrors++
			case r.summary != nil:
				if r.hit {
					stats.CacheHits++
				}
				newSummaries = append(newSummaries, r.summary)
				e.mu.Lock()
				e.pathByID[r.summary.ID] = batch[i].Path
				e.mu.Unlock()
			}
		}
	}
	// Colliding identities from distinct files shadow: the last observed
	// summary wins in the snapshot, just as it does in byID and pathByID.
	newSummaries = dedupeByID(newSummaries)
	stats.SessionsFound = len(newSummaries)

	// Replace the snapshot wholesale; the identity->path table accumulates.
	e.mu.Lock()
	e.summaries = newSummaries
	e.byID = make(map[string]*SessionSummary, len(newSummaries))
	for _, s := range newSummaries {
		e.byID[s.ID] = s
	}
	e.stats = stats
	e.lastScan = time.Now()
	e.mu.Unlock()
	e.dirty.Store(false)

	e.persist()

	indexLog.Info("scan_complete",
		slog.Int("sessions", stats.SessionsFound),
		slog.Int("cache_hits", stats.CacheHits),
		slog.Int("parse_errors", stats.ParseErrors),
		slog.Int("skipped_large", stats.SkippedLarge),
		slog.Duration("elapsed", time.Since(start)))

	return e.Snapshot()
}

// dedupeByID collapses summaries sharing an identity, keeping discovery
// order with the last occurrence winning in place.
func dedupeByID(summaries []*SessionSummary) []*SessionSummary {
	pos := make(map[string]int, len(summaries))
	out := summaries[:0]
	for _, s := range summaries {
		if i, seen := pos[s.ID]; seen {
			out[i] = s
			continue
		}
		pos[s.ID] = len(out)
		out = append(out, s)
	}
	return out
}

// persist writes the whole cache after a successful scan pass. Persistence
// failure is logged, never escalated.
func (e *Engine) persist() {
	if e.store == nil {
		return
	}
	if err := e.store.SaveEntries(e.cache.Entries()); err != nil {
		indexLog.Warn("cache_persist_failed", slog.String("error", err.Error()))
	}
}

// Snapshot returns a deep copy of the current summaries in scan-append
// order. Callers needing a specific order sort the returned slice.
func (e *Engine) Snapshot() []*SessionSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*SessionSummary, len(e.summaries))
	for i, s := range e.summaries {
		out[i] = s.Clone()
	}
	return out
}

// Get returns a copy of one summary by identity.
func (e *Engine) Get(id string) (*SessionSummary, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s, ok := e.byID[id]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// Contains reports whether an identity is present in the index.
func (e *Engine) Contains(id string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.byID[id]
	return ok
}

// PathFor returns the backing file path for an identity, if known.
func (e *Engine) PathFor(id string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.pathByID[id]
	return p, ok
}

// Paths returns a copy of the identity-to-path table restricted to
// identities currently in the index. Used by search to locate raw text.
func (e *Engine) Paths() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string]string, len(e.byID))
	for id := range e.byID {
		if p, ok := e.pathByID[id]; ok {
			out[id] = p
		}
	}
	return out
}

// GroupByContainer groups the current snapshot by container label.
func (e *Engine) GroupByContainer() map[string][]*SessionSummary {
	groups := make(map[string][]*SessionSummary)
	for _, s := range e.Snapshot() {
		groups[s.ContainerLabel] = append(groups[s.ContainerLabel], s)
	}
	return groups
}

// Recent returns up to max summaries ordered most-recently-updated first.
func (e *Engine) Recent(max int) []*SessionSummary {
	snap := e.Snapshot()
	sort.Slice(snap, func(i, j int) bool {
		return snap[i].UpdatedAt.After(snap[j].UpdatedAt)
	})
	if max > 0 && len(snap) > max {
		snap = snap[:max]
	}
	return snap
}

// Stats returns the statistics of the most recent scan pass.
func (e *Engine) Stats() ScanStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}

// LastScan returns when the last scan pass completed (zero before any scan).
func (e *Engine) LastScan() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastScan
}

// Add inserts an imported summary into the index, shadowing any existing
// entry with the same identity. sourcePath may be empty for entries with no
// backing file (envelope imports); such entries survive only until restart.
func (e *Engine) Add(summary *SessionSummary, sourcePath string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.byID[summary.ID]; !exists {
		e.summaries = append(e.summaries, summary)
	} else {
		for i, s := range e.summaries {
			if s.ID == summary.ID {
				e.summaries[i] = summary
				break
			}
		}
	}
	e.byID[summary.ID] = summary
	if sourcePath != "" {
		e.pathByID[summary.ID] = sourcePath
	}
}
