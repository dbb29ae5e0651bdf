// Package stt defines the speech-to-text capability interfaces the capture
// layer depends on.
//
// Two shapes of transcription are covered, matching the two capture
// strategies:
//
//   - [Provider] — a streaming recognizer (e.g., Deepgram). Once a session is
//     opened it accepts raw PCM audio frames and emits two streams of
//     [Transcript] values: low-latency partials for responsiveness and
//     authoritative finals for the conversation.
//   - [Transcriber] — a batch record-then-upload service. One bounded audio
//     clip in, one transcript out.
//
// Both capabilities are optional on a given deployment; the capture layer
// probes for them and degrades from streaming to batch when necessary.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"time"
)

// Transcript represents a speech-to-text result from a recognizer.
// Both partial (interim) and final transcripts use this type.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// IsFinal indicates whether this is a final (authoritative) or partial
	// (interim) transcript.
	IsFinal bool

	// Confidence is the overall confidence score (0.0–1.0). May be zero if
	// the provider does not report confidence.
	Confidence float64

	// Timestamp marks when the utterance started, relative to session start.
	Timestamp time.Duration
}

// StreamConfig describes the audio format and recognition hints for a new
// streaming session. All fields must be compatible with what the underlying
// provider supports.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. 16000 is the usual
	// recognition-optimised mono rate.
	SampleRate int

	// Channels is the number of audio channels. 1 = mono (required by most
	// recognizers). Implementors may downmix stereo internally.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g., "en-US",
	// "fr-FR", "ar"). An empty string lets the provider auto-detect, if
	// supported.
	Language string
}

// SessionHandle represents an open streaming recognition session. It is an
// interface so test code can provide mock implementations without a live
// provider connection.
//
// A session may end spontaneously — some recognizers terminate the stream
// after a final result even while the user keeps talking. That case is
// signalled by the Partials and Finals channels closing without Close having
// been called; the capture layer distinguishes it from a clean stop.
//
// Callers must call Close when the session is no longer needed. All methods
// must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw PCM audio bytes for transcription.
	// The chunk must match the SampleRate, Channels, and 16-bit depth agreed
	// in StreamConfig. Calling SendAudio after Close returns an error.
	SendAudio(chunk []byte) error

	// Partials returns a read-only channel that emits low-latency interim
	// Transcript values. These are suitable for driving UI indicators and
	// silence timers but must never reach the conversation history.
	// The channel is closed when the session ends.
	Partials() <-chan Transcript

	// Finals returns a read-only channel that emits authoritative Transcript
	// values once the provider has committed to a result. These are the
	// values handed to the deduplicator. The channel is closed when the
	// session ends.
	Finals() <-chan Transcript

	// Close terminates the session, flushes pending audio, and releases all
	// associated resources. After Close returns, the Partials and Finals
	// channels will be closed. Calling Close more than once is safe and
	// returns nil.
	Close() error
}

// Provider is the abstraction over any streaming recognizer backend.
type Provider interface {
	// StartStream opens a new streaming transcription session with the given
	// audio format. The returned SessionHandle is ready to accept audio
	// immediately.
	//
	// Returns an error if the session cannot be established (authentication
	// failure, unsupported configuration, ctx already cancelled). The caller
	// owns the SessionHandle and must call Close when done.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}

// Transcriber is the abstraction over a batch transcription service used by
// the record-then-upload capture strategy.
type Transcriber interface {
	// Transcribe uploads a complete WAV-encoded clip and returns the
	// recognised text. An empty string with a nil error means the service
	// heard nothing. The request is bounded by ctx; callers attach their
	// upload timeout there.
	Transcribe(ctx context.Context, wav []byte, language string) (string, error)
}
