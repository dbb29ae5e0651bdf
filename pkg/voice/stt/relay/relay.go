// Package relay provides a client for the HTTP transcription relay service
// used by the record-then-upload capture strategy. The service accepts a
// multipart WAV upload plus a language hint and returns JSON
// {"transcript": "..."}.
//
// It implements the stt.Transcriber interface.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/voxloop/voxloop/pkg/voice/stt"
)

const defaultTimeout = 20 * time.Second

// ErrServiceFailed indicates the relay answered with a server-side error
// (5xx). Callers surface this to the user rather than treating it as an
// empty turn.
var ErrServiceFailed = errors.New("relay: transcription service failed")

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. The client's timeout acts
// as a transport-level backstop; per-request deadlines still come from ctx.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// Client implements stt.Transcriber against a transcription relay endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// Compile-time interface assertion.
var _ stt.Transcriber = (*Client)(nil)

// New creates a Client posting to endpoint (e.g.,
// "https://api.example.com/transcribe"). endpoint must be non-empty.
func New(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("relay: endpoint must not be empty")
	}
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// transcribeResponse is the JSON body returned by the relay.
type transcribeResponse struct {
	Transcript string `json:"transcript"`
}

// Transcribe implements [stt.Transcriber]. It uploads wav as a multipart
// form with an optional language hint field and returns the recognised text.
//
// A 5xx response returns an error wrapping [ErrServiceFailed]. Timeouts and
// cancellations propagate ctx's error so callers can map them onto the
// no-speech-equivalent path.
func (c *Client) Transcribe(ctx context.Context, wav []byte, language string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("audio", "clip.wav")
	if err != nil {
		return "", fmt.Errorf("relay: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return "", fmt.Errorf("relay: write wav data: %w", err)
	}
	if language != "" {
		if err := mw.WriteField("language", language); err != nil {
			return "", fmt.Errorf("relay: write language field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("relay: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("relay: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Preserve ctx errors so callers can distinguish deadline from
		// transport failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("relay: upload: %w", ctxErr)
		}
		return "", fmt.Errorf("relay: upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("%w: status %d", ErrServiceFailed, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("relay: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("relay: read response: %w", err)
	}

	var tr transcribeResponse
	if err := json.Unmarshal(data, &tr); err != nil {
		return "", fmt.Errorf("relay: decode response: %w", err)
	}
	return tr.Transcript, nil
}
