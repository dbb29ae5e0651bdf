// Package conversation implements the turn-taking state machine at the heart
// of voxloop: listen for the user, generate a reply, speak it, and listen
// again until somebody says goodbye.
package conversation

import "time"

// Phase is the single active stage of the conversation state machine.
// Exactly one phase holds at any time.
type Phase int

const (
	// PhaseIdle means no conversation is running.
	PhaseIdle Phase = iota

	// PhaseListening means a capture turn is in progress.
	PhaseListening

	// PhaseProcessing means a transcript is being turned into a reply.
	PhaseProcessing

	// PhaseSpeaking means a reply is being synthesised and played.
	PhaseSpeaking

	// PhaseEnding means a farewell is playing and the conversation is
	// shutting down.
	PhaseEnding
)

// String returns the human-readable name of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseListening:
		return "listening"
	case PhaseProcessing:
		return "processing"
	case PhaseSpeaking:
		return "speaking"
	case PhaseEnding:
		return "ending"
	default:
		return "unknown"
	}
}

// ErrorKind classifies failures for presentation. Zero value means no error.
type ErrorKind int

const (
	// ErrorNone means no error is being surfaced.
	ErrorNone ErrorKind = iota

	// ErrorPermissionDenied means microphone access was refused. Terminal
	// for the attempt; never auto-retried.
	ErrorPermissionDenied

	// ErrorDeviceUnavailable means no usable microphone was found.
	ErrorDeviceUnavailable

	// ErrorUnsupported means neither capture strategy can run here.
	ErrorUnsupported

	// ErrorTransient covers recognition and device hiccups that were
	// auto-retried or absorbed by a restart.
	ErrorTransient

	// ErrorService covers transcription, synthesis, and responder failures.
	ErrorService
)

// String returns the human-readable name of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorNone:
		return "none"
	case ErrorPermissionDenied:
		return "permission_denied"
	case ErrorDeviceUnavailable:
		return "device_unavailable"
	case ErrorUnsupported:
		return "unsupported"
	case ErrorTransient:
		return "transient"
	case ErrorService:
		return "service"
	default:
		return "unknown"
	}
}

// State is a snapshot of the conversation for presentation. The controller
// is its single writer.
type State struct {
	// Phase is the current stage of the state machine.
	Phase Phase

	// PhaseStarted is when the current phase was entered. Zero while idle.
	PhaseStarted time.Time

	// Active reports whether a conversation is running.
	Active bool

	// EndingRequested reports whether a graceful end has been asked for.
	EndingRequested bool

	// AudioLevel is the present microphone level in [0, 1]. Only meaningful
	// while listening; best-effort.
	AudioLevel float64

	// LastError classifies the most recent surfaced failure.
	LastError ErrorKind
}
