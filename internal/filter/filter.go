// Package filter screens relayed text against the blocked-word list and
// the forbidden-link detector, and tracks per-user link strikes.
package filter

import (
	"context"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"anonchat/backend/internal/config"
)

// Verdict classifies one piece of relayed text.
type Verdict int

const (
	Clean Verdict = iota
	BlockedWord
	Forbidden
)

// Result is a verdict plus the fragment that triggered it.
type Result struct {
	Verdict Verdict
	Match   string
}

// linkPattern flags URLs, bare dotted TLDs, and bot handles. Matching is
// case-insensitive so "WWW.Example.COM" is caught too.
var linkPattern = regexp.MustCompile(`(?i)(http[s]?://|www\.|\.com|\.net|\.org|\.me|\.io|\.ly|\.ru|\.ir|\.in|\.id|@[\w\d_]{5,32}bot\b)`)

// WordSource supplies the current blocked-word list.
type WordSource interface {
	BlockedWords(ctx context.Context) ([]string, error)
}

// Filter caches the blocked-word set and refreshes it on a fixed interval
// so word edits from the admin surface take effect without a restart.
type Filter struct {
	source  WordSource
	refresh time.Duration

	mu       sync.Mutex
	words    []string
	loadedAt time.Time
}

// New builds a filter over the given word source. The word set is loaded
// lazily on first use.
func New(source WordSource) *Filter {
	return &Filter{
		source:  source,
		refresh: config.BlockedWordsRefresh,
	}
}

// Check classifies text. Blocked words win over links, matching the order
// the relay acts on them.
func (f *Filter) Check(ctx context.Context, text string) Result {
	if text == "" {
		return Result{Verdict: Clean}
	}

	lowered := strings.ToLower(text)
	for _, word := range f.currentWords(ctx) {
		if strings.Contains(lowered, word) {
			return Result{Verdict: BlockedWord, Match: word}
		}
	}

	if match := linkPattern.FindString(text); match != "" {
		return Result{Verdict: Forbidden, Match: match}
	}
	return Result{Verdict: Clean}
}

// Reload forces a fetch of the word set. Admin word edits call this so
// they apply immediately instead of after the next refresh tick.
func (f *Filter) Reload(ctx context.Context) error {
	words, err := f.source.BlockedWords(ctx)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.words = foldWords(words)
	f.loadedAt = time.Now()
	f.mu.Unlock()
	return nil
}

func (f *Filter) currentWords(ctx context.Context) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if time.Since(f.loadedAt) < f.refresh && !f.loadedAt.IsZero() {
		return f.words
	}
	words, err := f.source.BlockedWords(ctx)
	if err != nil {
		// Keep serving the stale set; an unreachable store must not
		// stall the relay.
		log.Printf("WARN: Failed to refresh blocked words: %v", err)
		f.loadedAt = time.Now()
		return f.words
	}
	f.words = foldWords(words)
	f.loadedAt = time.Now()
	return f.words
}

func foldWords(words []string) []string {
	folded := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			folded = append(folded, w)
		}
	}
	return folded
}

// Strikes counts forbidden-link offenses per user. Counts live in process
// memory only and reset on restart.
type Strikes struct {
	mu     sync.Mutex
	counts map[int64]int
}

// NewStrikes returns an empty strike counter.
func NewStrikes() *Strikes {
	return &Strikes{counts: make(map[int64]int)}
}

// Strike increments the user's count and returns the new value.
func (s *Strikes) Strike(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[userID]++
	return s.counts[userID]
}

// Count returns the user's current count.
func (s *Strikes) Count(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[userID]
}

// Reset clears the user's count.
func (s *Strikes) Reset(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, userID)
}
