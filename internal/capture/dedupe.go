package capture

import (
	"strings"
	"sync"
	"time"

	"github.com/antzucaro/matchr"
)

// nearDupThreshold is the Jaro-Winkler similarity above which two transcripts
// inside the window are treated as the same utterance. Speech recognizers
// often emit the same sentence twice with tiny differences in punctuation or
// casing; exact matching alone misses those.
const nearDupThreshold = 0.93

// Deduplicator drops echoed transcripts and enforces that at most one
// transcript is being processed at a time. Safe for concurrent use.
type Deduplicator struct {
	window time.Duration
	now    func() time.Time

	mu       sync.Mutex
	lastText string
	lastAt   time.Time
	inFlight bool
}

// NewDeduplicator creates a Deduplicator with the given duplicate window.
func NewDeduplicator(window time.Duration) *Deduplicator {
	return &Deduplicator{window: window, now: time.Now}
}

// Admit reports whether text should be processed. It returns false when a
// previous transcript is still being processed, or when text duplicates a
// transcript admitted within the window. An admitted transcript must be
// released with [Deduplicator.Done].
func (d *Deduplicator) Admit(text string) bool {
	norm := normalizeTranscript(text)
	if norm == "" {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.inFlight {
		return false
	}

	now := d.now()
	if d.lastText != "" && now.Sub(d.lastAt) <= d.window && isDuplicate(norm, d.lastText) {
		return false
	}

	d.lastText = norm
	d.lastAt = now
	d.inFlight = true
	return true
}

// Done releases the in-flight slot taken by a successful Admit.
func (d *Deduplicator) Done() {
	d.mu.Lock()
	d.inFlight = false
	d.mu.Unlock()
}

// isDuplicate reports whether two normalized transcripts are the same
// utterance, exactly or by similarity.
func isDuplicate(a, b string) bool {
	if a == b {
		return true
	}
	return matchr.JaroWinkler(a, b, false) >= nearDupThreshold
}

// normalizeTranscript lowercases text and collapses runs of whitespace so
// that formatting differences do not defeat duplicate detection.
func normalizeTranscript(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
