// Package serverstt implements the record-then-upload capture strategy used
// when no streaming recognizer is available: a bounded, silence-gated clip is
// recorded locally and sent to a batch transcription service.
package serverstt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxloop/voxloop/internal/capture"
	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/voice/stt"
)

const (
	// minClipBytes is the size below which a recording is treated as
	// containing no speech and never uploaded.
	minClipBytes = 1024

	defaultUploadTimeout = 20 * time.Second
)

// Config tunes a [Listener]. Zero fields get defaults.
type Config struct {
	// InitialSilence ends a turn that produced no speech at all.
	// Default: 10s.
	InitialSilence time.Duration

	// PostSpeechSilence ends the recording once the speaker has gone quiet
	// after speaking. Default: 3s.
	PostSpeechSilence time.Duration

	// MaxClipDuration bounds the recording regardless of silence.
	// Default: 8s.
	MaxClipDuration time.Duration

	// UploadTimeout bounds the transcription request. Default: 20s.
	UploadTimeout time.Duration

	// SampleRate and Channels describe the recorded PCM. Defaults: 16000, 1.
	SampleRate int
	Channels   int

	// Language is the recognition hint forwarded with the upload.
	Language string
}

func (c *Config) applyDefaults() {
	if c.InitialSilence <= 0 {
		c.InitialSilence = 10 * time.Second
	}
	if c.PostSpeechSilence <= 0 {
		c.PostSpeechSilence = 3 * time.Second
	}
	if c.MaxClipDuration <= 0 {
		c.MaxClipDuration = 8 * time.Second
	}
	if c.UploadTimeout <= 0 {
		c.UploadTimeout = defaultUploadTimeout
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
}

// Listener records bounded clips and uploads them for transcription. At most
// one upload is in flight at a time; a Listen call that would start a second
// one is rejected with [capture.ErrSessionBusy].
type Listener struct {
	device      audio.Device
	transcriber stt.Transcriber
	cfg         Config

	uploadGate chan struct{}
}

var _ capture.Listener = (*Listener)(nil)

// New creates a record-then-upload Listener.
func New(device audio.Device, transcriber stt.Transcriber, cfg Config) *Listener {
	cfg.applyDefaults()
	return &Listener{
		device:      device,
		transcriber: transcriber,
		cfg:         cfg,
		uploadGate:  make(chan struct{}, 1),
	}
}

// Listen implements capture.Listener.
func (l *Listener) Listen(ctx context.Context, h capture.Handlers) (string, error) {
	pcm, err := l.record(ctx, h)
	if err != nil {
		return "", err
	}
	if len(pcm) < minClipBytes {
		return "", capture.ErrNoSpeech
	}

	select {
	case l.uploadGate <- struct{}{}:
	default:
		return "", capture.ErrSessionBusy
	}
	defer func() { <-l.uploadGate }()

	uploadCtx, cancel := context.WithTimeout(ctx, l.cfg.UploadTimeout)
	defer cancel()

	wav := audio.EncodeWAV(pcm, l.cfg.SampleRate, l.cfg.Channels)
	text, err := l.transcriber.Transcribe(uploadCtx, wav, l.cfg.Language)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return "", ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		// The upload timed out; the turn counts as one where nothing usable
		// was heard so the loop simply listens again.
		slog.Warn("serverstt: transcription timed out", "timeout", l.cfg.UploadTimeout)
		return "", capture.ErrNoSpeech
	default:
		return "", fmt.Errorf("serverstt: transcribe: %w", err)
	}
	if text == "" {
		return "", capture.ErrNoSpeech
	}
	return text, nil
}

// record captures PCM until the speaker finishes, the clip limit is hit, or
// the silence window expires with nothing said.
func (l *Listener) record(ctx context.Context, h capture.Handlers) ([]byte, error) {
	src, err := l.device.OpenSource(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: open source: %v", capture.ErrUnavailable, err)
	}
	defer src.Close()

	var (
		buf         bytes.Buffer
		heardSpeech bool
		quietSince  time.Duration
		recorded    time.Duration
	)

	deadline := time.NewTimer(l.cfg.InitialSilence)
	defer deadline.Stop()

	frames := src.Frames()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-deadline.C:
			if !heardSpeech {
				return nil, capture.ErrNoSpeech
			}
			return buf.Bytes(), nil

		case frame, ok := <-frames:
			if !ok {
				if !heardSpeech {
					return nil, capture.ErrNoSpeech
				}
				return buf.Bytes(), nil
			}

			if h.OnLevel != nil {
				h.OnLevel(audio.Level(frame.Data))
			}

			d := frame.Duration()
			recorded += d
			if audio.IsSilence(frame.Data) {
				quietSince += d
			} else {
				quietSince = 0
				if !heardSpeech {
					heardSpeech = true
					// Speech began; the remaining budget is the
					// post-speech window.
					resetTimer(deadline, l.cfg.PostSpeechSilence)
				}
			}
			buf.Write(frame.Data)

			if heardSpeech {
				if quietSince >= l.cfg.PostSpeechSilence {
					return buf.Bytes(), nil
				}
				// Keep the wall-clock timer ahead of the frame-based
				// silence accounting.
				resetTimer(deadline, l.cfg.PostSpeechSilence)
			}
			if recorded >= l.cfg.MaxClipDuration {
				if !heardSpeech {
					return nil, capture.ErrNoSpeech
				}
				return buf.Bytes(), nil
			}
		}
	}
}

// resetTimer safely re-arms t with d.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
