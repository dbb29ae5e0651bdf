// Package tts defines the Provider interface for speech-synthesis backends.
//
// A provider wraps a synthesis service (e.g., ElevenLabs or a local Piper
// instance) behind a single request/response call: text plus locale in,
// encoded audio bytes out. The playback layer owns timeouts (via ctx) and
// the exactly-once completion contract; providers only need to synthesize.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"

	"github.com/voxloop/voxloop/pkg/audio"
)

// MaxTextLen is the maximum number of characters submitted for synthesis.
// Longer replies are truncated before the request to bound synthesis latency.
const MaxTextLen = 4000

// Request describes one synthesis call.
type Request struct {
	// Text is the reply to speak. Callers should cap it with [Truncate].
	Text string

	// Locale is the BCP-47 tag selecting voice and pronunciation
	// (e.g., "en-US", "fr-FR", "ar"). Empty means the provider default.
	Locale string
}

// Provider is the abstraction over any speech-synthesis backend.
type Provider interface {
	// Synthesize converts req.Text to a playable audio clip. The request is
	// bounded by ctx; callers attach their request-level timeout there.
	//
	// Returns an error if synthesis fails or ctx expires; a successful call
	// always returns a non-empty clip.
	Synthesize(ctx context.Context, req Request) (audio.Clip, error)
}

// Truncate caps text at [MaxTextLen] characters, cutting on a rune boundary.
func Truncate(text string) string {
	if len(text) <= MaxTextLen {
		return text
	}
	runes := []rune(text)
	if len(runes) <= MaxTextLen {
		return text
	}
	return string(runes[:MaxTextLen])
}
