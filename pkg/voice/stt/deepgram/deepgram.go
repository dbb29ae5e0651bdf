// Package deepgram provides a Deepgram-backed streaming recognizer using the
// Deepgram WebSocket API. It implements the stt.Provider interface and serves
// as the native-recognition backend of the capture layer.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/voxloop/voxloop/pkg/voice/stt"
)

const (
	deepgramEndpoint  = "wss://api.deepgram.com/v1/listen"
	defaultModel      = "nova-3"
	defaultLanguage   = "en"
	defaultSampleRate = 16000
)

// ErrSessionClosed is returned by SendAudio after Close has been called.
var ErrSessionClosed = errors.New("deepgram: session closed")

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the default BCP-47 language code for recognition.
// Per-session languages from [stt.StreamConfig] take precedence.
func WithLanguage(language string) Option {
	return func(p *Provider) { p.language = language }
}

// WithEndpoint overrides the Deepgram WebSocket endpoint. Used in tests and
// for self-hosted Deepgram deployments.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) { p.endpoint = endpoint }
}

// Provider implements stt.Provider backed by the Deepgram streaming API.
type Provider struct {
	apiKey   string
	endpoint string
	model    string
	language string
}

// Compile-time interface assertion.
var _ stt.Provider = (*Provider)(nil)

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: missing API key")
	}
	p := &Provider{
		apiKey:   apiKey,
		endpoint: deepgramEndpoint,
		model:    defaultModel,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream opens a streaming transcription session with Deepgram.
// It respects cfg.SampleRate, cfg.Channels, and cfg.Language.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	wsURL, err := p.buildURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	opts := &websocket.DialOptions{HTTPHeader: http.Header{}}
	opts.HTTPHeader.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, opts)
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}

	sess := &session{
		conn:     conn,
		partials: make(chan stt.Transcript, 64),
		finals:   make(chan stt.Transcript, 64),
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
	}
	go sess.readLoop(ctx)

	return sess, nil
}

// buildURL constructs the streaming endpoint URL for the given config.
func (p *Provider) buildURL(cfg stt.StreamConfig) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("encoding", "linear16")
	q.Set("punctuate", "true")
	q.Set("interim_results", "true")

	if cfg.Language != "" {
		q.Set("language", cfg.Language)
	} else {
		q.Set("language", p.language)
	}
	if cfg.SampleRate > 0 {
		q.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
	} else {
		q.Set("sample_rate", strconv.Itoa(defaultSampleRate))
	}
	if cfg.Channels > 0 {
		q.Set("channels", strconv.Itoa(cfg.Channels))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ─── session ───────────────────────────────────────────────────────────────

// session is a live Deepgram streaming session implementing stt.SessionHandle.
//
// Audio writes go straight to the connection, serialized by writeMu; the
// network therefore backpressures the caller, which is what the capture layer
// wants when a client floods frames. Transcripts arrive on readLoop.
type session struct {
	conn     *websocket.Conn
	partials chan stt.Transcript
	finals   chan stt.Transcript

	writeMu sync.Mutex
	closed  bool

	done     chan struct{}
	readDone chan struct{}
	once     sync.Once
}

// SendAudio delivers one PCM chunk to Deepgram. Blocks until the write
// completes or the session closes.
func (s *session) SendAudio(chunk []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if err := s.conn.Write(context.Background(), websocket.MessageBinary, chunk); err != nil {
		return fmt.Errorf("deepgram: send audio: %w", err)
	}
	return nil
}

// Partials returns the channel of interim transcripts.
func (s *session) Partials() <-chan stt.Transcript { return s.partials }

// Finals returns the channel of final transcripts.
func (s *session) Finals() <-chan stt.Transcript { return s.finals }

// Close flushes Deepgram's buffered audio via CloseStream, waits for the read
// loop to drain remaining results, and closes the connection. Idempotent.
func (s *session) Close() error {
	s.once.Do(func() {
		s.writeMu.Lock()
		s.closed = true
		// CloseStream tells Deepgram to flush and finish the stream.
		_ = s.conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"CloseStream"}`))
		s.writeMu.Unlock()

		close(s.done)
		select {
		case <-s.readDone:
		case <-time.After(2 * time.Second):
		}
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
	return nil
}

// readLoop receives JSON messages from Deepgram and routes them to the
// partials and finals channels. Closing both channels on exit is what signals
// a spontaneous stream end to the capture layer.
func (s *session) readLoop(ctx context.Context) {
	defer close(s.readDone)
	defer close(s.finals)
	defer close(s.partials)

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			return
		}
		t, ok := parseResponse(msg)
		if !ok {
			continue
		}
		s.emit(t)
	}
}

func (s *session) emit(t stt.Transcript) {
	out := s.partials
	if t.IsFinal {
		out = s.finals
	}
	select {
	case out <- t:
	case <-s.done:
	}
}

// deepgramResponse is the JSON shape of a Deepgram Results event.
type deepgramResponse struct {
	Type    string  `json:"type"`
	IsFinal bool    `json:"is_final"`
	Start   float64 `json:"start"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// parseResponse parses a raw Deepgram WebSocket message into a Transcript.
// Returns (zero, false) for messages that should be ignored, including
// Results events with an empty transcript.
func parseResponse(data []byte) (stt.Transcript, bool) {
	var resp deepgramResponse
	switch {
	case json.Unmarshal(data, &resp) != nil:
		return stt.Transcript{}, false
	case resp.Type != "Results":
		return stt.Transcript{}, false
	case len(resp.Channel.Alternatives) == 0:
		return stt.Transcript{}, false
	case resp.Channel.Alternatives[0].Transcript == "":
		return stt.Transcript{}, false
	}

	alt := resp.Channel.Alternatives[0]
	return stt.Transcript{
		Text:       alt.Transcript,
		IsFinal:    resp.IsFinal,
		Confidence: alt.Confidence,
		Timestamp:  time.Duration(resp.Start * float64(time.Second)),
	}, true
}
