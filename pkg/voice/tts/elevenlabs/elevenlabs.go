// Package elevenlabs provides an ElevenLabs-backed TTS provider using the
// ElevenLabs HTTP synthesis API. It implements the tts.Provider interface.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/voice/tts"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	defaultModel   = "eleven_flash_v2_5"
	defaultTimeout = 30 * time.Second
)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL overrides the API base URL. Used in tests.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = u }
}

// WithLocaleVoice maps a BCP-47 locale tag to a voice ID. Requests carrying
// that locale use the mapped voice instead of the default.
func WithLocaleVoice(locale, voiceID string) Option {
	return func(p *Provider) { p.localeVoices[locale] = voiceID }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider implements tts.Provider backed by the ElevenLabs API.
type Provider struct {
	apiKey       string
	baseURL      string
	model        string
	defaultVoice string
	localeVoices map[string]string
	httpClient   *http.Client
}

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// New creates a new ElevenLabs Provider. apiKey and defaultVoice must be
// non-empty.
func New(apiKey, defaultVoice string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	if defaultVoice == "" {
		return nil, errors.New("elevenlabs: defaultVoice must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		model:        defaultModel,
		defaultVoice: defaultVoice,
		localeVoices: make(map[string]string),
		httpClient:   &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// synthesizeRequest is the JSON body for POST /v1/text-to-speech/{voice}.
type synthesizeRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize implements [tts.Provider]. Text longer than [tts.MaxTextLen]
// is truncated before the request.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (audio.Clip, error) {
	if req.Text == "" {
		return audio.Clip{}, errors.New("elevenlabs: text must not be empty")
	}

	body, err := json.Marshal(synthesizeRequest{
		Text:    tts.Truncate(req.Text),
		ModelID: p.model,
	})
	if err != nil {
		return audio.Clip{}, fmt.Errorf("elevenlabs: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s", p.baseURL, p.voiceFor(req.Locale))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return audio.Clip{}, fmt.Errorf("elevenlabs: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return audio.Clip{}, fmt.Errorf("elevenlabs: synthesize: %w", ctxErr)
		}
		return audio.Clip{}, fmt.Errorf("elevenlabs: synthesize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return audio.Clip{}, fmt.Errorf("elevenlabs: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("elevenlabs: read audio: %w", err)
	}
	if len(data) == 0 {
		return audio.Clip{}, errors.New("elevenlabs: empty audio response")
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "audio/mpeg"
	}
	return audio.Clip{Data: data, MIMEType: mime}, nil
}

// voiceFor resolves the voice ID for a locale, falling back to the default.
func (p *Provider) voiceFor(locale string) string {
	if v, ok := p.localeVoices[locale]; ok {
		return v
	}
	return p.defaultVoice
}
