package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/voxloop/voxloop/internal/config"
)

const validYAML = `
server:
  listen_addr: ":9090"
providers:
  deepgram:
    api_key: dg-key
    model: nova-2
  relay:
    base_url: https://stt.example.com
  tts:
    api_key: el-key
  responder:
    api_key: oa-key
    model: gpt-4o-mini
conversation:
  locale: fr-FR
  settle_delay: 1s
  farewells:
    fr-FR: "Au revoir !"
  apologies:
    fr: "Désolé, pouvez-vous répéter ?"
history:
  max_turns: 6
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("listen_addr = %q, want :9090", cfg.Server.ListenAddr)
	}
	if cfg.Conversation.Locale != "fr-FR" {
		t.Errorf("locale = %q, want fr-FR", cfg.Conversation.Locale)
	}
	if cfg.Conversation.SettleDelay != time.Second {
		t.Errorf("settle_delay = %s, want 1s", cfg.Conversation.SettleDelay)
	}
	if cfg.History.MaxTurns != 6 {
		t.Errorf("max_turns = %d, want 6", cfg.History.MaxTurns)
	}
	if got := cfg.Conversation.Farewells["fr-FR"]; got != "Au revoir !" {
		t.Errorf("farewells[fr-FR] = %q, want localized farewell", got)
	}
	if got := cfg.Conversation.Apologies["fr"]; got != "Désolé, pouvez-vous répéter ?" {
		t.Errorf("apologies[fr] = %q, want localized apology", got)
	}
	if want := time.Second + config.DefaultSpontaneousSettleExtra; cfg.Conversation.SpontaneousSettleDelay != want {
		t.Errorf("spontaneous_settle_delay = %s, want %s", cfg.Conversation.SpontaneousSettleDelay, want)
	}
}

func TestLoadFromReader_AppliesDefaults(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  deepgram:
    api_key: dg-key
  tts:
    api_key: el-key
  responder:
    api_key: oa-key
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Conversation.SettleDelay != config.DefaultSettleDelay {
		t.Errorf("settle_delay = %s, want %s", cfg.Conversation.SettleDelay, config.DefaultSettleDelay)
	}
	if cfg.Conversation.InitialSilenceTimeout != config.DefaultInitialSilenceTimeout {
		t.Errorf("initial_silence_timeout = %s, want %s",
			cfg.Conversation.InitialSilenceTimeout, config.DefaultInitialSilenceTimeout)
	}
	if cfg.Conversation.CaptureMode != config.CaptureAuto {
		t.Errorf("capture_mode = %q, want auto", cfg.Conversation.CaptureMode)
	}
	if cfg.History.Freshness != config.DefaultHistoryFreshness {
		t.Errorf("freshness = %s, want %s", cfg.History.Freshness, config.DefaultHistoryFreshness)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	yaml := `
serverr:
  listen_addr: ":9090"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_NativeRequiresDeepgramKey(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  tts:
    api_key: el-key
  responder:
    api_key: oa-key
conversation:
  capture_mode: native
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for native capture without deepgram key, got nil")
	}
	if !strings.Contains(err.Error(), "deepgram") {
		t.Errorf("error should mention deepgram, got: %v", err)
	}
}

func TestValidate_ServerRequiresRelayURL(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  tts:
    api_key: el-key
  responder:
    api_key: oa-key
conversation:
  capture_mode: server
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for server capture without relay URL, got nil")
	}
	if !strings.Contains(err.Error(), "relay") {
		t.Errorf("error should mention relay, got: %v", err)
	}
}

func TestValidate_SilenceTimeoutOrdering(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  deepgram:
    api_key: dg-key
  tts:
    api_key: el-key
  responder:
    api_key: oa-key
conversation:
  initial_silence_timeout: 2s
  post_speech_silence_timeout: 5s
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for inverted silence timeouts, got nil")
	}
	if !strings.Contains(err.Error(), "post_speech_silence_timeout") {
		t.Errorf("error should mention post_speech_silence_timeout, got: %v", err)
	}
}

func TestValidate_MissingProviderKeys(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  deepgram:
    api_key: dg-key
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing tts/responder keys, got nil")
	}
	if !strings.Contains(err.Error(), "providers.tts.api_key") {
		t.Errorf("error should mention tts key, got: %v", err)
	}
	if !strings.Contains(err.Error(), "providers.responder.api_key") {
		t.Errorf("error should mention responder key, got: %v", err)
	}
}
