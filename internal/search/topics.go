package search

import (
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// minTokenLen is the shortest token eligible as a topic.
const minTokenLen = 4

// DefaultPerFileTopics is the per-file truncation depth used by the global
// aggregation.
const DefaultPerFileTopics = 50

// TopicCount is one ranked vocabulary token.
type TopicCount struct {
	Word  string
	Count int
}

var tokenRe = regexp.MustCompile(`[a-z0-9_]+`)

// Topics extracts the top ranked vocabulary tokens from text. Tokens are
// lower-cased words of at least four characters starting with a letter;
// stop-listed words and identifier-like tokens (underscores, leading digits,
// trailing digits after letters) are discarded. limit <= 0 means unlimited.
func Topics(text string, limit int) []TopicCount {
	counts := make(map[string]int)
	for _, tok := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		if !keepToken(tok) {
			continue
		}
		counts[tok]++
	}
	return rank(counts, limit)
}

// keepToken applies the length, shape and stop-word filters.
func keepToken(tok string) bool {
	if len(tok) < minTokenLen {
		return false
	}
	if tok[0] < 'a' || tok[0] > 'z' {
		return false // leading digit or underscore
	}
	if strings.ContainsRune(tok, '_') {
		return false
	}
	// Trailing digits after letters read as identifiers (utf8, sha256).
	if last := tok[len(tok)-1]; last >= '0' && last <= '9' {
		return false
	}
	return !stopWords[tok]
}

// GlobalTopics aggregates topics across the files in paths by summing each
// file's truncated per-file top list. Summing already-truncated lists is an
// approximation that bounds per-file cost; it is not a single corpus-wide
// tally. Unreadable files are skipped silently.
func GlobalTopics(paths map[string]string, limit int) []TopicCount {
	var mu sync.Mutex
	totals := make(map[string]int)

	var g errgroup.Group
	g.SetLimit(maxConcurrentReads)

	for _, path := range paths {
		path := path
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				searchLog.Debug("topics_read_skipped",
					slog.String("path", path),
					slog.String("error", err.Error()))
				return nil
			}

			// Tokenize outside the lock; only the merge is serialized.
			fileTopics := Topics(string(data), DefaultPerFileTopics)

			mu.Lock()
			for _, tc := range fileTopics {
				totals[tc.Word] += tc.Count
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return rank(totals, limit)
}

// rank orders counts descending, ties broken alphabetically for stable
// output, truncated to limit when positive.
func rank(counts map[string]int, limit int) []TopicCount {
	out := make([]TopicCount, 0, len(counts))
	for w, n := range counts {
		out = append(out, TopicCount{Word: w, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Word < out[j].Word
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
