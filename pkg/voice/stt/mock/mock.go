// Package mock provides in-memory mock implementations of the
// [stt.Provider], [stt.SessionHandle], and [stt.Transcriber] interfaces for
// use in unit tests.
//
// All mocks are safe for concurrent use. Tests script recognizer behaviour by
// pushing transcripts into a [Session] and ending it either cleanly (via the
// consumer's Close) or spontaneously (via [Session.EndSpontaneously]).
package mock

import (
	"context"
	"sync"

	"github.com/voxloop/voxloop/pkg/voice/stt"
)

// ─── Session ──────────────────────────────────────────────────────────────────

// Session is a scriptable implementation of [stt.SessionHandle].
type Session struct {
	mu       sync.Mutex
	partials chan stt.Transcript
	finals   chan stt.Transcript
	ended    bool

	// SendAudioError is returned by SendAudio when non-nil.
	SendAudioError error

	// RecordedAudio accumulates every chunk passed to SendAudio.
	RecordedAudio [][]byte

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// NewSession creates an open Session with buffered transcript channels.
func NewSession() *Session {
	return &Session{
		partials: make(chan stt.Transcript, 64),
		finals:   make(chan stt.Transcript, 64),
	}
}

// EmitPartial delivers an interim transcript to the consumer.
func (s *Session) EmitPartial(text string) {
	s.partials <- stt.Transcript{Text: text, IsFinal: false}
}

// EmitFinal delivers a final transcript to the consumer.
func (s *Session) EmitFinal(text string) {
	s.finals <- stt.Transcript{Text: text, IsFinal: true, Confidence: 1.0}
}

// EndSpontaneously closes both transcript channels without Close having been
// called, simulating a recognizer that terminated the stream on its own.
func (s *Session) EndSpontaneously() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.end()
}

func (s *Session) end() {
	if !s.ended {
		s.ended = true
		close(s.partials)
		close(s.finals)
	}
}

// SendAudio implements [stt.SessionHandle].
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SendAudioError != nil {
		return s.SendAudioError
	}
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.RecordedAudio = append(s.RecordedAudio, cp)
	return nil
}

// Partials implements [stt.SessionHandle].
func (s *Session) Partials() <-chan stt.Transcript { return s.partials }

// Finals implements [stt.SessionHandle].
func (s *Session) Finals() <-chan stt.Transcript { return s.finals }

// Close implements [stt.SessionHandle].
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	s.end()
	return nil
}

// ─── Provider ─────────────────────────────────────────────────────────────────

// Provider is a mock implementation of [stt.Provider].
type Provider struct {
	mu sync.Mutex

	// StartStreamResult is returned by StartStream when no error is
	// scripted. When nil, a fresh [Session] is created per call.
	StartStreamResult *Session

	// StartStreamError, when non-nil, is returned by every StartStream call
	// not covered by StartStreamErrors.
	StartStreamError error

	// StartStreamErrors scripts StartStream per call: call n returns
	// StartStreamErrors[n] when set. A nil entry means that call succeeds.
	StartStreamErrors []error

	// RecordedConfigs holds every config passed to StartStream.
	RecordedConfigs []stt.StreamConfig

	// Sessions holds the sessions handed out by StartStream, in order.
	Sessions []*Session

	// CallCountStartStream records how many times StartStream was called.
	CallCountStartStream int
}

// StartStream implements [stt.Provider].
func (p *Provider) StartStream(_ context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.CallCountStartStream
	p.CallCountStartStream++
	p.RecordedConfigs = append(p.RecordedConfigs, cfg)

	if idx < len(p.StartStreamErrors) {
		if err := p.StartStreamErrors[idx]; err != nil {
			return nil, err
		}
	} else if p.StartStreamError != nil {
		return nil, p.StartStreamError
	}

	sess := p.StartStreamResult
	if sess == nil {
		sess = NewSession()
	}
	p.Sessions = append(p.Sessions, sess)
	return sess, nil
}

// ─── Transcriber ──────────────────────────────────────────────────────────────

// Transcriber is a mock implementation of [stt.Transcriber].
type Transcriber struct {
	mu sync.Mutex

	// TranscribeResult is returned by Transcribe when TranscribeError is nil.
	TranscribeResult string

	// TranscribeError, when non-nil, is returned by Transcribe.
	TranscribeError error

	// Block, when non-nil, makes Transcribe wait until the channel is closed
	// or ctx is cancelled. Used to test single-upload-in-flight behaviour.
	Block chan struct{}

	// RecordedUploads holds every wav payload passed to Transcribe.
	RecordedUploads [][]byte

	// RecordedLanguages holds every language hint passed to Transcribe.
	RecordedLanguages []string

	// CallCountTranscribe records how many times Transcribe was called.
	CallCountTranscribe int
}

// Transcribe implements [stt.Transcriber].
func (t *Transcriber) Transcribe(ctx context.Context, wav []byte, language string) (string, error) {
	t.mu.Lock()
	t.CallCountTranscribe++
	cp := make([]byte, len(wav))
	copy(cp, wav)
	t.RecordedUploads = append(t.RecordedUploads, cp)
	t.RecordedLanguages = append(t.RecordedLanguages, language)
	block := t.Block
	result, err := t.TranscribeResult, t.TranscribeError
	t.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return result, err
}
