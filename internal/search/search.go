// Package search implements full-text deep search and topic extraction over
// raw session file content, plus fuzzy matching over index summaries.
package search

import (
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"
	"golang.org/x/sync/errgroup"

	"github.com/Acidni-LLC/copilot-chat-manager/internal/index"
	"github.com/Acidni-LLC/copilot-chat-manager/internal/logging"
)

var searchLog = logging.ForComponent(logging.CompSearch)

// maxConcurrentReads bounds how many session files deep search holds open
// at once.
const maxConcurrentReads = 8

// Mode selects how multiple search terms combine.
type Mode string

const (
	// ModeAny includes a session when any term occurs at least once.
	ModeAny Mode = "any"
	// ModeAll includes a session only when every term occurs at least once.
	ModeAll Mode = "all"
	// ModeExact joins the terms into a single phrase and matches it literally.
	ModeExact Mode = "exact"
)

// Result is one session's match detail: per-term occurrence counts and the
// total across terms.
type Result struct {
	ID         string
	Path       string
	TermCounts map[string]int
	Total      int
}

// DeepSearch counts case-insensitive term occurrences in the raw text of
// every file in paths (identity -> backing path) and returns the sessions
// admitted by mode, ordered by descending total count. Searching raw bytes
// rather than the parsed structure is deliberate: response bodies and
// embedded metadata count too. Unreadable files are skipped silently.
func DeepSearch(paths map[string]string, terms []string, mode Mode) []Result {
	terms = normalizeTerms(terms)
	if len(terms) == 0 || len(paths) == 0 {
		return nil
	}

	var phrase string
	if mode == ModeExact {
		phrase = strings.Join(terms, " ")
	}

	var mu sync.Mutex
	var results []Result

	var g errgroup.Group
	g.SetLimit(maxConcurrentReads)

	for id, path := range paths {
		id, path := id, path
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				searchLog.Debug("search_read_skipped",
					slog.String("path", path),
					slog.String("error", err.Error()))
				return nil
			}
			text := strings.ToLower(string(data))

			counts := make(map[string]int, len(terms))
			total := 0
			if mode == ModeExact {
				n := strings.Count(text, phrase)
				counts[phrase] = n
				total = n
			} else {
				for _, term := range terms {
					n := strings.Count(text, term)
					counts[term] = n
					total += n
				}
			}

			if !admit(mode, counts, total) {
				return nil
			}

			mu.Lock()
			results = append(results, Result{ID: id, Path: path, TermCounts: counts, Total: total})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Total > results[j].Total
	})
	return results
}

// admit applies the per-mode inclusion rule.
func admit(mode Mode, counts map[string]int, total int) bool {
	switch mode {
	case ModeAll:
		for _, n := range counts {
			if n == 0 {
				return false
			}
		}
		return true
	default: // any, exact
		return total > 0
	}
}

func normalizeTerms(terms []string) []string {
	out := terms[:0:0]
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// fuzzySource implements fuzzy.Source over index summaries. Matching text is
// the container label plus the first-message preview, the fields a user
// remembers a conversation by.
type fuzzySource struct {
	summaries []*index.SessionSummary
}

func (s fuzzySource) String(i int) string {
	sum := s.summaries[i]
	return sum.ContainerLabel + " " + sum.FirstMessage
}

func (s fuzzySource) Len() int {
	return len(s.summaries)
}

// FuzzyMatch ranks summaries against query with typo tolerance. An empty
// query returns the input order unchanged.
func FuzzyMatch(summaries []*index.SessionSummary, query string) []*index.SessionSummary {
	query = strings.TrimSpace(query)
	if query == "" {
		return summaries
	}

	matches := fuzzy.FindFrom(query, fuzzySource{summaries: summaries})
	out := make([]*index.SessionSummary, 0, len(matches))
	for _, m := range matches {
		out = append(out, summaries[m.Index])
	}
	return out
}
