package conversation

import "strings"

// goodbyePhrases is the built-in multilingual phrase set. Matching is a
// deliberately liberal case-insensitive substring test on either party's
// text: ending a conversation too eagerly beats stranding the user in a hung
// session.
var goodbyePhrases = []string{
	// English
	"goodbye",
	"bye",
	"see you",
	"that's all",
	"that is all",
	// French
	"au revoir",
	"à bientôt",
	"c'est tout",
	// Spanish
	"adiós",
	"hasta luego",
	// German
	"auf wiedersehen",
	"tschüss",
	// Arabic
	"مع السلامة",
	"وداعا",
}

// GoodbyeDetector matches text against the built-in goodbye phrase set plus
// configured extras.
type GoodbyeDetector struct {
	phrases []string
}

// NewGoodbyeDetector creates a detector with the built-in phrases plus
// extras. Extras are matched the same way as built-ins.
func NewGoodbyeDetector(extras []string) *GoodbyeDetector {
	phrases := make([]string, 0, len(goodbyePhrases)+len(extras))
	phrases = append(phrases, goodbyePhrases...)
	for _, e := range extras {
		if p := strings.ToLower(strings.TrimSpace(e)); p != "" {
			phrases = append(phrases, p)
		}
	}
	return &GoodbyeDetector{phrases: phrases}
}

// Match reports whether text contains a goodbye phrase.
func (d *GoodbyeDetector) Match(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range d.phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
