// Package audio defines the capture and playback capability interfaces the
// voxloop conversation core depends on.
//
// The two primary abstractions are:
//
//   - [Device] — the entry point for one deployment target (a browser bridge,
//     an embedded microphone, a telephony leg). It opens [Source] values for
//     microphone capture and exposes a [Sink] for playback.
//   - [Source] / [Sink] — one live capture stream and one playback output.
//
// Both capabilities are optional on a given target; the capture layer probes
// for them at startup and degrades to whichever strategies are available.
//
// This package lives under pkg/ because external code (platform bridges) is
// expected to implement [Device], [Source], and [Sink]. Implementations must
// be safe for concurrent use.
package audio

import (
	"context"
	"errors"
	"time"
)

// Device acquisition errors. Implementations must return (or wrap) these so
// the conversation layer can map them onto its user-facing error taxonomy.
var (
	// ErrPermissionDenied indicates the user refused microphone access.
	// Never auto-retried; the user must explicitly try again.
	ErrPermissionDenied = errors.New("audio: microphone permission denied")

	// ErrDeviceUnavailable indicates no capture device exists or the device
	// is held by another process.
	ErrDeviceUnavailable = errors.New("audio: capture device unavailable")

	// ErrUnsupported indicates the target provides neither a streaming
	// recognizer nor a media-recording primitive.
	ErrUnsupported = errors.New("audio: capture not supported on this platform")
)

// Frame is a single chunk of raw PCM audio flowing through the pipeline.
// Frames are the atomic unit of audio transport — captured from a [Source],
// gated by silence detection, and uploaded or streamed to a recognizer.
type Frame struct {
	// Data is 16-bit signed little-endian PCM. Sample rate and channel count
	// are carried alongside rather than assumed.
	Data []byte

	// SampleRate in Hz (e.g., 16000 for speech recognition input).
	SampleRate int

	// Channels: 1 for mono (recognition input), 2 for stereo playback.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the wall-clock length of the frame's PCM payload.
// Returns zero for frames with an invalid or unset format.
func (f Frame) Duration() time.Duration {
	bytesPerSecond := f.SampleRate * f.Channels * 2
	if bytesPerSecond <= 0 {
		return 0
	}
	return time.Duration(len(f.Data)) * time.Second / time.Duration(bytesPerSecond)
}

// Source is one live microphone capture stream.
//
// The frames channel is closed when the source ends — either because Close
// was called or because the underlying device stopped delivering audio.
// Callers must drain Frames to avoid blocking the producer.
type Source interface {
	// Frames returns the read-only channel delivering captured PCM frames.
	// The same channel value is returned on every call.
	Frames() <-chan Frame

	// Close releases the device handle and closes the frames channel.
	// Calling Close more than once is safe and returns nil.
	Close() error
}

// Clip is one complete synthesized utterance ready for playback.
type Clip struct {
	// Data is the encoded audio payload as returned by the synthesis service.
	Data []byte

	// MIMEType identifies the encoding (e.g., "audio/mpeg", "audio/wav").
	MIMEType string
}

// Playback is one in-progress playback of a [Clip].
//
// Exactly one terminal value is delivered on Done — nil for natural
// completion, non-nil for a playback failure — after which the channel is
// closed. Implementations must never leave Done silent.
type Playback interface {
	// Done returns the channel that receives the single terminal result.
	Done() <-chan error

	// Stop cancels playback and releases resources. It is idempotent and
	// safe to call after natural completion.
	Stop() error
}

// Sink accepts synthesized audio for playback.
type Sink interface {
	// Play begins playback of clip. The returned [Playback] is already
	// running; ctx cancellation stops it as if Stop had been called.
	//
	// Returns an error only if playback cannot be started at all.
	Play(ctx context.Context, clip Clip) (Playback, error)
}

// Device bundles the capture and playback capabilities of one deployment
// target. OpenSource may fail with [ErrPermissionDenied],
// [ErrDeviceUnavailable], or [ErrUnsupported]; the conversation layer treats
// those as terminal for the current attempt.
type Device interface {
	// OpenSource acquires the microphone and starts delivering frames.
	// The caller owns the returned [Source] and must call Close.
	OpenSource(ctx context.Context) (Source, error)

	// Sink returns the playback output for this device. The same value is
	// returned on every call; only one clip should play at a time.
	Sink() Sink
}
