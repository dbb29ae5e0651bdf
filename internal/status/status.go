// Package status maps conversation state to the small set of categories a
// user-facing surface renders. The mapping is pure; the HTTP handler is a
// thin JSON wrapper around it.
package status

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/voxloop/voxloop/internal/conversation"
)

// Category is one user-facing status bucket.
type Category string

const (
	CategoryReady      Category = "ready"
	CategoryListening  Category = "listening"
	CategoryProcessing Category = "processing"
	CategorySpeaking   Category = "speaking"
	CategoryEnding     Category = "ending"
	CategoryError      Category = "error"
)

// Status is what a surface renders: the category plus whichever detail the
// category carries (level meter while listening, elapsed timer while
// speaking, message on error).
type Status struct {
	Category Category `json:"category"`

	// Level is the microphone level in [0, 1]. Present while listening.
	Level float64 `json:"level,omitempty"`

	// Elapsed is how long the current utterance has been playing. Present
	// while speaking.
	Elapsed string `json:"elapsed,omitempty"`

	// Message is a human-readable failure description. Present on error.
	Message string `json:"message,omitempty"`
}

// Present maps a conversation snapshot to its Status. Deterministic given
// state and now.
func Present(st conversation.State, now time.Time) Status {
	if !st.Active {
		if msg := errorMessage(st.LastError); msg != "" {
			return Status{Category: CategoryError, Message: msg}
		}
		return Status{Category: CategoryReady}
	}

	switch st.Phase {
	case conversation.PhaseListening:
		return Status{Category: CategoryListening, Level: st.AudioLevel}
	case conversation.PhaseProcessing:
		return Status{Category: CategoryProcessing}
	case conversation.PhaseSpeaking:
		return Status{
			Category: CategorySpeaking,
			Elapsed:  now.Sub(st.PhaseStarted).Round(100 * time.Millisecond).String(),
		}
	case conversation.PhaseEnding:
		return Status{Category: CategoryEnding}
	default:
		return Status{Category: CategoryReady}
	}
}

// errorMessage renders the error kinds that end a conversation. Other kinds
// are absorbed by the loop and never shown once idle.
func errorMessage(k conversation.ErrorKind) string {
	switch k {
	case conversation.ErrorPermissionDenied:
		return "Microphone access was denied."
	case conversation.ErrorDeviceUnavailable:
		return "No usable microphone was found."
	case conversation.ErrorUnsupported:
		return "Voice capture is not supported on this device."
	default:
		return ""
	}
}

// Handler serves the current status as JSON. snapshot is called per request.
func Handler(snapshot func() conversation.State) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if err := json.NewEncoder(w).Encode(Present(snapshot(), time.Now())); err != nil {
			http.Error(w, `{"category":"error"}`, http.StatusInternalServerError)
		}
	}
}
