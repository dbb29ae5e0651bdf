// Package playback implements the speaking half of the conversation loop:
// synthesise a reply and play it to completion, with bounded waits so a hung
// provider or output device can never wedge the loop.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/voice/tts"
)

// ErrPlaybackTimeout is returned when the output device fails to finish a
// clip within the playback budget.
var ErrPlaybackTimeout = errors.New("playback: timed out")

// ErrInterrupted is returned when Stop cut the playback short.
var ErrInterrupted = errors.New("playback: interrupted")

// Config tunes a [Player]. Zero fields get defaults.
type Config struct {
	// SynthesisTimeout bounds the TTS request. Default: 15s.
	SynthesisTimeout time.Duration

	// PlaybackTimeout bounds how long a clip may take to finish playing.
	// Default: 45s.
	PlaybackTimeout time.Duration

	// ObserveSynthesis, when set, receives the duration of each successful
	// synthesis request.
	ObserveSynthesis func(time.Duration)

	// ObservePlayback, when set, receives the duration of each playback that
	// reached a terminal state.
	ObservePlayback func(time.Duration)
}

func (c *Config) applyDefaults() {
	if c.SynthesisTimeout <= 0 {
		c.SynthesisTimeout = 15 * time.Second
	}
	if c.PlaybackTimeout <= 0 {
		c.PlaybackTimeout = 45 * time.Second
	}
}

// Player speaks replies through an audio sink. One utterance plays at a
// time; Speak calls are serialised by the conversation loop. Stop may be
// called from any goroutine and is idempotent.
type Player struct {
	sink audio.Sink
	tts  tts.Provider
	cfg  Config

	mu      sync.Mutex
	current audio.Playback
	stopped bool
}

// New creates a Player speaking through sink with voice from provider.
func New(sink audio.Sink, provider tts.Provider, cfg Config) *Player {
	cfg.applyDefaults()
	return &Player{sink: sink, tts: provider, cfg: cfg}
}

// Speak synthesises text and plays it to completion. It returns nil exactly
// when the clip finished naturally, [ErrInterrupted] when Stop cut it short,
// and [ErrPlaybackTimeout] when the device hung. Speak never returns before
// the playback has reached a terminal state.
func (p *Player) Speak(ctx context.Context, text, locale string) error {
	synthCtx, cancel := context.WithTimeout(ctx, p.cfg.SynthesisTimeout)
	defer cancel()

	synthStart := time.Now()
	clip, err := p.tts.Synthesize(synthCtx, tts.Request{Text: text, Locale: locale})
	if err != nil {
		return fmt.Errorf("playback: synthesize: %w", err)
	}
	if p.cfg.ObserveSynthesis != nil {
		p.cfg.ObserveSynthesis(time.Since(synthStart))
	}

	playStart := time.Now()
	if p.cfg.ObservePlayback != nil {
		defer func() { p.cfg.ObservePlayback(time.Since(playStart)) }()
	}

	pb, err := p.sink.Play(ctx, clip)
	if err != nil {
		return fmt.Errorf("playback: play: %w", err)
	}

	p.mu.Lock()
	p.current = pb
	p.stopped = false
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.current = nil
		p.stopped = false
		p.mu.Unlock()
	}()

	timer := time.NewTimer(p.cfg.PlaybackTimeout)
	defer timer.Stop()

	select {
	case err, ok := <-pb.Done():
		if p.wasStopped() {
			return ErrInterrupted
		}
		if !ok || err == nil {
			return nil
		}
		return fmt.Errorf("playback: %w", err)

	case <-timer.C:
		_ = pb.Stop()
		<-pb.Done()
		return ErrPlaybackTimeout

	case <-ctx.Done():
		_ = pb.Stop()
		<-pb.Done()
		return ctx.Err()
	}
}

// Stop interrupts the current playback, if any. Safe to call at any time and
// from any goroutine; repeated calls are no-ops.
func (p *Player) Stop() {
	p.mu.Lock()
	pb := p.current
	if pb != nil {
		p.stopped = true
	}
	p.mu.Unlock()

	if pb != nil {
		_ = pb.Stop()
	}
}

func (p *Player) wasStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}
