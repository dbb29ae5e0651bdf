// Package config provides the configuration schema and loader for the
// voxloop conversation server.
package config

import "time"

// LogLevel controls log verbosity for the voxloop server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// CaptureMode selects which transcription pipeline a conversation uses.
type CaptureMode string

const (
	// CaptureAuto probes for on-device streaming support and falls back to
	// server-side transcription when the probe fails.
	CaptureAuto CaptureMode = "auto"

	// CaptureNative forces the on-device streaming pipeline.
	CaptureNative CaptureMode = "native"

	// CaptureServer forces record-then-upload server transcription.
	CaptureServer CaptureMode = "server"
)

// IsValid reports whether m is a recognised capture mode.
func (m CaptureMode) IsValid() bool {
	switch m {
	case CaptureAuto, CaptureNative, CaptureServer:
		return true
	}
	return false
}

// Config is the root configuration structure for voxloop.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Providers    ProvidersConfig    `yaml:"providers"`
	Conversation ConversationConfig `yaml:"conversation"`
	History      HistoryConfig      `yaml:"history"`
}

// ServerConfig holds network and logging settings for the voxloop server.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP surface listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig declares credentials and model choices for each external
// voice provider.
type ProvidersConfig struct {
	// Deepgram drives on-device-equivalent streaming transcription.
	Deepgram ProviderEntry `yaml:"deepgram"`

	// Relay is the server-side batch transcription endpoint used when
	// streaming transcription is unavailable.
	Relay ProviderEntry `yaml:"relay"`

	// TTS configures speech synthesis (ElevenLabs).
	TTS ProviderEntry `yaml:"tts"`

	// Responder configures reply generation (OpenAI).
	Responder ProviderEntry `yaml:"responder"`
}

// ProviderEntry is the common configuration block shared by all providers.
type ProviderEntry struct {
	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider
	// (e.g., "gpt-4o-mini", "nova-2", "eleven_flash_v2_5").
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered by the standard
	// fields above, such as per-locale voice IDs for TTS.
	Options map[string]string `yaml:"options"`
}

// ConversationConfig tunes the conversation loop itself.
type ConversationConfig struct {
	// Locale is the default BCP 47 tag for transcription and replies.
	Locale string `yaml:"locale"`

	// CaptureMode selects the transcription pipeline.
	CaptureMode CaptureMode `yaml:"capture_mode"`

	// SettleDelay is how long the loop waits after playback finishes before
	// listening again, letting room audio die down. Default: 800ms.
	SettleDelay time.Duration `yaml:"settle_delay"`

	// SpontaneousSettleDelay replaces SettleDelay for the turn after the
	// recognizer stream ended on its own, giving the audio stack extra time
	// to recover. Default: settle_delay + 400ms.
	SpontaneousSettleDelay time.Duration `yaml:"spontaneous_settle_delay"`

	// InitialSilenceTimeout ends a listening turn that produced no speech at
	// all. Default: 10s.
	InitialSilenceTimeout time.Duration `yaml:"initial_silence_timeout"`

	// PostSpeechSilenceTimeout finalises a turn once the speaker has gone
	// quiet after saying something. Default: 3s.
	PostSpeechSilenceTimeout time.Duration `yaml:"post_speech_silence_timeout"`

	// MaxClipDuration bounds a recorded clip in server capture mode.
	// Default: 8s.
	MaxClipDuration time.Duration `yaml:"max_clip_duration"`

	// CaptureInitRetries is how many times capture start-up is retried
	// before giving up on a strategy. Default: 3.
	CaptureInitRetries int `yaml:"capture_init_retries"`

	// DedupeWindow is the interval within which an identical transcript is
	// treated as an echo and dropped. Default: 2s.
	DedupeWindow time.Duration `yaml:"dedupe_window"`

	// ExtraGoodbyes extends the built-in goodbye phrase set.
	ExtraGoodbyes []string `yaml:"extra_goodbyes"`

	// Farewells maps a locale to the line spoken when a conversation ends
	// gracefully (e.g., "fr-FR": "Au revoir !"). Lookup falls back to the
	// bare language tag and then to a built-in English farewell.
	Farewells map[string]string `yaml:"farewells"`

	// Apologies maps a locale to the line spoken in place of a reply when
	// the responder fails, with the same fallback as Farewells.
	Apologies map[string]string `yaml:"apologies"`

	// Platforms overrides loop timing per runtime platform, keyed by
	// platform name (e.g., "ios", "android", "desktop").
	Platforms map[string]PlatformOverrides `yaml:"platforms"`
}

// PlatformOverrides holds per-platform adjustments to the conversation loop.
// Zero fields inherit the top-level ConversationConfig values.
type PlatformOverrides struct {
	SettleDelay            time.Duration `yaml:"settle_delay"`
	SpontaneousSettleDelay time.Duration `yaml:"spontaneous_settle_delay"`
	CaptureInitRetries     int           `yaml:"capture_init_retries"`
}

// HistoryConfig holds settings for conversation history persistence.
type HistoryConfig struct {
	// PostgresDSN is the PostgreSQL connection string for the history store.
	// When empty, history lives in process memory only.
	PostgresDSN string `yaml:"postgres_dsn"`

	// Freshness is how long a stored conversation stays resumable.
	// Default: 24h.
	Freshness time.Duration `yaml:"freshness"`

	// MaxTurns caps how many prior turns are kept per conversation.
	// Default: 12.
	MaxTurns int `yaml:"max_turns"`

	// Greetings maps a locale to the assistant line seeded into a new
	// conversation (e.g., "en-US": "Hi! How can I help?").
	Greetings map[string]string `yaml:"greetings"`
}
