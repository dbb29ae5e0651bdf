package conversation

import "testing"

func TestGoodbyeMatchesBuiltins(t *testing.T) {
	t.Parallel()
	d := NewGoodbyeDetector(nil)

	for _, text := range []string{
		"goodbye",
		"Okay, BYE!",
		"see you tomorrow",
		"bon, au revoir",
		"adiós amigo",
		"tschüss dann",
		"مع السلامة",
	} {
		if !d.Match(text) {
			t.Errorf("Match(%q) = false, want true", text)
		}
	}
}

func TestGoodbyeIgnoresOrdinaryText(t *testing.T) {
	t.Parallel()
	d := NewGoodbyeDetector(nil)

	for _, text := range []string{
		"what's the weather like",
		"tell me more",
		"",
	} {
		if d.Match(text) {
			t.Errorf("Match(%q) = true, want false", text)
		}
	}
}

func TestGoodbyeExtras(t *testing.T) {
	t.Parallel()
	d := NewGoodbyeDetector([]string{" Over and Out ", ""})

	if !d.Match("roger, over and out") {
		t.Error("configured extra phrase not matched")
	}
}
