// Package mock provides in-memory mock implementations of the
// [audio.Device], [audio.Source], [audio.Sink], and [audio.Playback]
// interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so
// tests can assert on call counts and arguments, and expose exported fields
// that the test sets to control return values.
//
// Typical usage:
//
//	src := mock.NewSource(16)
//	dev := &mock.Device{OpenSourceResult: src, SinkResult: &mock.Sink{}}
//	src.Emit(audio.Frame{Data: pcm, SampleRate: 16000, Channels: 1})
//	src.End()
package mock

import (
	"context"
	"sync"

	"github.com/voxloop/voxloop/pkg/audio"
)

// ─── Source ───────────────────────────────────────────────────────────────────

// Source is a scriptable implementation of [audio.Source]. Tests push frames
// with [Source.Emit] and end the stream with [Source.End].
type Source struct {
	mu     sync.Mutex
	frames chan audio.Frame
	closed bool

	// CallCountClose records how many times Close was called.
	CallCountClose int

	// CloseError is returned by Close (first call only).
	CloseError error
}

// NewSource creates a Source whose frames channel has the given buffer depth.
func NewSource(buf int) *Source {
	return &Source{frames: make(chan audio.Frame, buf)}
}

// Emit delivers a frame to the consumer. Calling Emit after End panics, like
// any send on a closed channel — tests should script emissions before ending.
func (s *Source) Emit(f audio.Frame) {
	s.frames <- f
}

// End closes the frames channel without counting as an explicit Close,
// simulating a device that stopped delivering audio on its own.
func (s *Source) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.frames)
	}
}

// Frames implements [audio.Source].
func (s *Source) Frames() <-chan audio.Frame { return s.frames }

// Close implements [audio.Source].
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	if s.CallCountClose > 1 {
		return nil
	}
	if !s.closed {
		s.closed = true
		close(s.frames)
	}
	return s.CloseError
}

// ─── Playback ─────────────────────────────────────────────────────────────────

// Playback is a scriptable implementation of [audio.Playback]. Tests resolve
// it with [Playback.Complete] or [Playback.Fail].
type Playback struct {
	mu       sync.Mutex
	done     chan error
	resolved bool

	// CallCountStop records how many times Stop was called.
	CallCountStop int
}

// NewPlayback creates an unresolved Playback.
func NewPlayback() *Playback {
	return &Playback{done: make(chan error, 1)}
}

// Complete resolves the playback as naturally finished. Subsequent
// resolutions are ignored.
func (p *Playback) Complete() { p.resolve(nil) }

// Fail resolves the playback with err. Subsequent resolutions are ignored.
func (p *Playback) Fail(err error) { p.resolve(err) }

func (p *Playback) resolve(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resolved {
		return
	}
	p.resolved = true
	p.done <- err
	close(p.done)
}

// Done implements [audio.Playback].
func (p *Playback) Done() <-chan error { return p.done }

// Stop implements [audio.Playback]. It resolves the playback with nil if it
// has not resolved yet.
func (p *Playback) Stop() error {
	p.mu.Lock()
	p.CallCountStop++
	p.mu.Unlock()
	p.resolve(nil)
	return nil
}

// ─── Sink ─────────────────────────────────────────────────────────────────────

// Sink is a mock implementation of [audio.Sink].
type Sink struct {
	mu sync.Mutex

	// PlayError, when non-nil, is returned by Play instead of a Playback.
	PlayError error

	// Playbacks holds pre-scripted Playback values handed out by Play, in
	// order. When exhausted (or empty), Play creates a fresh [Playback].
	Playbacks []*Playback

	// RecordedClips holds every clip passed to Play.
	RecordedClips []audio.Clip

	// CallCountPlay records how many times Play was called.
	CallCountPlay int

	// Live holds the playbacks handed out by Play, in order. Tests use it to
	// resolve a playback the sink created itself.
	Live []*Playback
}

// Play implements [audio.Sink].
func (s *Sink) Play(_ context.Context, clip audio.Clip) (audio.Playback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CallCountPlay++
	s.RecordedClips = append(s.RecordedClips, clip)

	if s.PlayError != nil {
		return nil, s.PlayError
	}

	var p *Playback
	if len(s.Playbacks) > 0 {
		p = s.Playbacks[0]
		s.Playbacks = s.Playbacks[1:]
	} else {
		p = NewPlayback()
	}
	s.Live = append(s.Live, p)
	return p, nil
}

// ─── Device ───────────────────────────────────────────────────────────────────

// Device is a mock implementation of [audio.Device].
type Device struct {
	mu sync.Mutex

	// OpenSourceResult is returned by OpenSource when no error is scripted.
	OpenSourceResult *Source

	// OpenSourceError, when non-nil, is returned by every OpenSource call
	// not covered by OpenSourceErrors.
	OpenSourceError error

	// OpenSourceErrors, when non-empty, scripts OpenSource per call: the
	// first call returns OpenSourceErrors[0], and so on. A nil entry means
	// that call succeeds with OpenSourceResult. Useful for scripting
	// retry-on-init-failure sequences.
	OpenSourceErrors []error

	// SinkResult is returned by Sink. A zero-value Sink is created on first
	// use when nil.
	SinkResult *Sink

	// CallCountOpenSource records how many times OpenSource was called.
	CallCountOpenSource int
}

// OpenSource implements [audio.Device].
func (d *Device) OpenSource(_ context.Context) (audio.Source, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := d.CallCountOpenSource
	d.CallCountOpenSource++

	if idx < len(d.OpenSourceErrors) {
		if err := d.OpenSourceErrors[idx]; err != nil {
			return nil, err
		}
		return d.OpenSourceResult, nil
	}
	if d.OpenSourceError != nil {
		return nil, d.OpenSourceError
	}
	return d.OpenSourceResult, nil
}

// Sink implements [audio.Device].
func (d *Device) Sink() audio.Sink {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.SinkResult == nil {
		d.SinkResult = &Sink{}
	}
	return d.SinkResult
}
