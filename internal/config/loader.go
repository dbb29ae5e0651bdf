package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Loop timing defaults applied by [ApplyDefaults].
const (
	DefaultSettleDelay              = 800 * time.Millisecond
	DefaultSpontaneousSettleExtra   = 400 * time.Millisecond
	DefaultInitialSilenceTimeout    = 10 * time.Second
	DefaultPostSpeechSilenceTimeout = 3 * time.Second
	DefaultMaxClipDuration          = 8 * time.Second
	DefaultCaptureInitRetries       = 3
	DefaultDedupeWindow             = 2 * time.Second
	DefaultHistoryFreshness         = 24 * time.Hour
	DefaultHistoryMaxTurns          = 12
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields of cfg with the package defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	conv := &cfg.Conversation
	if conv.Locale == "" {
		conv.Locale = "en-US"
	}
	if conv.CaptureMode == "" {
		conv.CaptureMode = CaptureAuto
	}
	if conv.SettleDelay <= 0 {
		conv.SettleDelay = DefaultSettleDelay
	}
	if conv.InitialSilenceTimeout <= 0 {
		conv.InitialSilenceTimeout = DefaultInitialSilenceTimeout
	}
	if conv.PostSpeechSilenceTimeout <= 0 {
		conv.PostSpeechSilenceTimeout = DefaultPostSpeechSilenceTimeout
	}
	if conv.MaxClipDuration <= 0 {
		conv.MaxClipDuration = DefaultMaxClipDuration
	}
	if conv.CaptureInitRetries <= 0 {
		conv.CaptureInitRetries = DefaultCaptureInitRetries
	}
	if conv.DedupeWindow <= 0 {
		conv.DedupeWindow = DefaultDedupeWindow
	}
	if conv.SpontaneousSettleDelay <= 0 {
		conv.SpontaneousSettleDelay = conv.SettleDelay + DefaultSpontaneousSettleExtra
	}

	if cfg.History.Freshness <= 0 {
		cfg.History.Freshness = DefaultHistoryFreshness
	}
	if cfg.History.MaxTurns <= 0 {
		cfg.History.MaxTurns = DefaultHistoryMaxTurns
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	conv := cfg.Conversation
	if !conv.CaptureMode.IsValid() {
		errs = append(errs, fmt.Errorf("conversation.capture_mode %q is invalid; valid values: auto, native, server", conv.CaptureMode))
	}
	if conv.PostSpeechSilenceTimeout > conv.InitialSilenceTimeout {
		errs = append(errs, fmt.Errorf("conversation.post_speech_silence_timeout (%s) must not exceed initial_silence_timeout (%s)",
			conv.PostSpeechSilenceTimeout, conv.InitialSilenceTimeout))
	}
	for name, p := range conv.Platforms {
		if p.SettleDelay < 0 {
			errs = append(errs, fmt.Errorf("conversation.platforms.%s.settle_delay must not be negative", name))
		}
		if p.CaptureInitRetries < 0 {
			errs = append(errs, fmt.Errorf("conversation.platforms.%s.capture_init_retries must not be negative", name))
		}
	}

	// Capture mode ↔ provider cross-validation.
	switch conv.CaptureMode {
	case CaptureNative:
		if cfg.Providers.Deepgram.APIKey == "" {
			errs = append(errs, errors.New("conversation.capture_mode \"native\" requires providers.deepgram.api_key"))
		}
	case CaptureServer:
		if cfg.Providers.Relay.BaseURL == "" {
			errs = append(errs, errors.New("conversation.capture_mode \"server\" requires providers.relay.base_url"))
		}
	case CaptureAuto:
		if cfg.Providers.Deepgram.APIKey == "" && cfg.Providers.Relay.BaseURL == "" {
			errs = append(errs, errors.New("conversation.capture_mode \"auto\" requires providers.deepgram or providers.relay to be configured"))
		}
	}

	if cfg.Providers.TTS.APIKey == "" {
		errs = append(errs, errors.New("providers.tts.api_key is required"))
	}
	if cfg.Providers.Responder.APIKey == "" {
		errs = append(errs, errors.New("providers.responder.api_key is required"))
	}

	if cfg.History.PostgresDSN == "" {
		slog.Warn("history.postgres_dsn is empty; conversations will not survive a restart")
	}

	return errors.Join(errs...)
}
