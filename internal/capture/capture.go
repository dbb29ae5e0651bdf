// Package capture implements the listening half of the conversation loop:
// strategies that record the user's speech and turn it into one final
// transcript per listening turn.
//
// Two strategies exist. The native strategy in the native subpackage streams
// audio to a realtime transcription session. The server strategy in the
// serverstt subpackage records a bounded clip and uploads it for batch
// transcription. [Probe] decides at startup which one a deployment can use.
package capture

import (
	"context"
	"errors"
)

// ErrNoSpeech is returned by a listening turn that ended without the user
// saying anything usable.
var ErrNoSpeech = errors.New("capture: no speech detected")

// ErrUnavailable is returned when a strategy cannot start at all, for example
// because the microphone or its transcription backend is unreachable. The
// caller should fail over to another strategy.
var ErrUnavailable = errors.New("capture: strategy unavailable")

// ErrSessionBusy is returned when a listening turn is started while a
// previous one is still finishing. Strategies reject the new turn rather
// than queue it.
var ErrSessionBusy = errors.New("capture: session busy")

// Handlers carries optional progress callbacks for one listening turn.
// Callbacks are invoked from the turn's own goroutine, never concurrently
// with each other, and never after Listen returns.
type Handlers struct {
	// OnPartial receives interim transcripts as the user speaks.
	OnPartial func(text string)

	// OnLevel receives the present microphone level in [0, 1].
	OnLevel func(level float64)

	// OnStreamEnd fires when the recognizer stream ended on its own rather
	// than through a clean stop. The conversation loop gives the audio
	// stack a longer settle before reopening the microphone in that case.
	OnStreamEnd func()
}

// Listener runs listening turns. Implementations must be safe for sequential
// reuse: one Listen call at a time, many over a session's lifetime.
type Listener interface {
	// Listen captures until the user has finished speaking and returns the
	// final transcript. It returns [ErrNoSpeech] when the turn timed out
	// without speech, [ErrUnavailable] when the strategy could not start,
	// and ctx.Err() when the caller canceled the turn.
	Listen(ctx context.Context, h Handlers) (string, error)
}
