// Package openai provides a responder.Provider backed by the OpenAI
// chat completions API.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/voxloop/voxloop/pkg/voice/responder"
)

const defaultSystemPrompt = "You are a friendly voice assistant. Reply in one or two short " +
	"sentences of plain conversational text, with no markup, lists, or emoji. " +
	"Answer in the language the user speaks."

// Provider implements responder.Provider using the OpenAI API.
type Provider struct {
	client       oai.Client
	model        string
	systemPrompt string
	temperature  float64
	maxTokens    int
}

// config holds optional configuration for the provider.
type config struct {
	baseURL      string
	systemPrompt string
	temperature  float64
	maxTokens    int
	timeout      time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithSystemPrompt replaces the built-in voice-assistant system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(c *config) {
		c.systemPrompt = prompt
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *config) {
		c.temperature = t
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) Option {
	return func(c *config) {
		c.maxTokens = n
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI responder Provider.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	cfg := &config{systemPrompt: defaultSystemPrompt}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{
		client:       client,
		model:        model,
		systemPrompt: cfg.systemPrompt,
		temperature:  cfg.temperature,
		maxTokens:    cfg.maxTokens,
	}, nil
}

var _ responder.Provider = (*Provider)(nil)

// Reply implements responder.Provider.
func (p *Provider) Reply(ctx context.Context, req responder.Request) (string, error) {
	if strings.TrimSpace(req.Message) == "" {
		return "", fmt.Errorf("openai: message must not be empty")
	}

	resp, err := p.client.Chat.Completions.New(ctx, p.buildParams(req))
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices in response")
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("openai: empty reply in response")
	}
	return reply, nil
}

// buildParams converts a responder.Request into chat completion params.
func (p *Provider) buildParams(req responder.Request) oai.ChatCompletionNewParams {
	var messages []oai.ChatCompletionMessageParamUnion

	prompt := p.systemPrompt
	if req.Locale != "" {
		prompt += " The user's preferred locale is " + req.Locale + "."
	}
	messages = append(messages, oai.SystemMessage(prompt))

	for _, turn := range responder.CapHistory(req.History) {
		switch turn.Role {
		case responder.RoleAssistant:
			messages = append(messages, oai.AssistantMessage(turn.Content))
		default:
			messages = append(messages, oai.UserMessage(turn.Content))
		}
	}
	messages = append(messages, oai.UserMessage(req.Message))

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
	}
	if p.temperature != 0 {
		params.Temperature = param.NewOpt(p.temperature)
	}
	if p.maxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(p.maxTokens))
	}
	return params
}
