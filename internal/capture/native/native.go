// Package native implements the streaming capture strategy: microphone
// frames are fed to a realtime recognizer and the turn ends when the speaker
// goes quiet.
package native

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/voxloop/voxloop/internal/capture"
	"github.com/voxloop/voxloop/internal/resilience"
	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/voice/stt"
)

const initRetryDelay = 250 * time.Millisecond

// Config tunes a [Listener]. Zero fields get defaults.
type Config struct {
	// InitialSilence ends a turn that produced no speech at all.
	// Default: 10s.
	InitialSilence time.Duration

	// PostSpeechSilence finalises a turn once the speaker has gone quiet
	// after saying something. Default: 3s.
	PostSpeechSilence time.Duration

	// InitRetries is how many times opening the microphone or the stream is
	// attempted before the strategy reports itself unavailable. Default: 3.
	InitRetries int

	// Stream is the audio format and language hint for the recognizer.
	Stream stt.StreamConfig
}

func (c *Config) applyDefaults() {
	if c.InitialSilence <= 0 {
		c.InitialSilence = 10 * time.Second
	}
	if c.PostSpeechSilence <= 0 {
		c.PostSpeechSilence = 3 * time.Second
	}
	if c.InitRetries <= 0 {
		c.InitRetries = 3
	}
}

// Listener runs streaming listening turns against a device and recognizer.
type Listener struct {
	device   audio.Device
	provider stt.Provider
	cfg      Config
}

var _ capture.Listener = (*Listener)(nil)

// New creates a streaming Listener.
func New(device audio.Device, provider stt.Provider, cfg Config) *Listener {
	cfg.applyDefaults()
	return &Listener{device: device, provider: provider, cfg: cfg}
}

// Listen implements capture.Listener.
func (l *Listener) Listen(ctx context.Context, h capture.Handlers) (string, error) {
	src, err := l.openSource(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", capture.ErrUnavailable, err)
	}
	defer src.Close()

	sess, err := l.provider.StartStream(ctx, l.cfg.Stream)
	if err != nil {
		return "", fmt.Errorf("%w: start stream: %v", capture.ErrUnavailable, err)
	}
	defer sess.Close()

	return l.run(ctx, h, src, sess)
}

// openSource opens the microphone, retrying transient failures. Permission
// and capability errors are not retried; a second ask will not change them.
func (l *Listener) openSource(ctx context.Context) (audio.Source, error) {
	var src audio.Source
	err := resilience.Retry(ctx, l.cfg.InitRetries, initRetryDelay, func(ctx context.Context) error {
		s, err := l.device.OpenSource(ctx)
		if err != nil {
			if errors.Is(err, audio.ErrPermissionDenied) || errors.Is(err, audio.ErrUnsupported) {
				return resilience.Permanent(err)
			}
			return err
		}
		src = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return src, nil
}

// run is the turn loop: pump frames in, watch transcripts, end on silence.
func (l *Listener) run(ctx context.Context, h capture.Handlers, src audio.Source, sess stt.SessionHandle) (string, error) {
	silence := time.NewTimer(l.cfg.InitialSilence)
	defer silence.Stop()

	resetSilence := func(d time.Duration) {
		if !silence.Stop() {
			select {
			case <-silence.C:
			default:
			}
		}
		silence.Reset(d)
	}

	var (
		finals      []string
		heardSpeech bool
	)
	frames := src.Frames()
	partials := sess.Partials()
	finalCh := sess.Finals()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()

		case frame, ok := <-frames:
			if !ok {
				// Microphone ended on its own; finalise with what we have.
				return l.finish(sess, finals)
			}
			if h.OnLevel != nil {
				h.OnLevel(audio.Level(frame.Data))
			}
			if err := sess.SendAudio(frame.Data); err != nil {
				slog.Warn("send audio failed, finalising turn", "error", err)
				return l.finish(sess, finals)
			}

		case t, ok := <-partials:
			if !ok {
				// Spontaneous session end; keep draining finals.
				partials = nil
				if finalCh == nil {
					notifyStreamEnd(h)
					return joinFinals(finals)
				}
				continue
			}
			heardSpeech = true
			resetSilence(l.cfg.PostSpeechSilence)
			if h.OnPartial != nil {
				h.OnPartial(t.Text)
			}

		case t, ok := <-finalCh:
			if !ok {
				finalCh = nil
				if partials == nil {
					notifyStreamEnd(h)
					return joinFinals(finals)
				}
				continue
			}
			heardSpeech = true
			finals = append(finals, t.Text)
			resetSilence(l.cfg.PostSpeechSilence)

		case <-silence.C:
			if !heardSpeech {
				return "", capture.ErrNoSpeech
			}
			return l.finish(sess, finals)
		}
	}
}

// finish flushes the session and collects any finals that arrive during the
// flush.
func (l *Listener) finish(sess stt.SessionHandle, finals []string) (string, error) {
	go sess.Close()

	partials := sess.Partials()
	finalCh := sess.Finals()
	for partials != nil || finalCh != nil {
		select {
		case _, ok := <-partials:
			if !ok {
				partials = nil
			}
		case t, ok := <-finalCh:
			if !ok {
				finalCh = nil
				continue
			}
			finals = append(finals, t.Text)
		}
	}

	return joinFinals(finals)
}

// notifyStreamEnd reports a recognizer stream that ended without being asked
// to, so the loop can settle longer before the next turn.
func notifyStreamEnd(h capture.Handlers) {
	if h.OnStreamEnd != nil {
		h.OnStreamEnd()
	}
}

// joinFinals merges final transcripts into one utterance.
func joinFinals(finals []string) (string, error) {
	text := strings.TrimSpace(strings.Join(finals, " "))
	if text == "" {
		return "", capture.ErrNoSpeech
	}
	return text, nil
}
