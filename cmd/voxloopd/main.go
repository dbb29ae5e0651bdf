// Command voxloopd is the voxloop conversation server: it bridges one
// WebSocket audio client to the transcription, reply, and synthesis
// providers and runs the turn-taking loop between them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/voxloop/voxloop/internal/capture"
	"github.com/voxloop/voxloop/internal/capture/native"
	"github.com/voxloop/voxloop/internal/capture/serverstt"
	"github.com/voxloop/voxloop/internal/config"
	"github.com/voxloop/voxloop/internal/conversation"
	"github.com/voxloop/voxloop/internal/gateway"
	"github.com/voxloop/voxloop/internal/health"
	"github.com/voxloop/voxloop/internal/history"
	"github.com/voxloop/voxloop/internal/history/postgres"
	"github.com/voxloop/voxloop/internal/observe"
	"github.com/voxloop/voxloop/internal/playback"
	"github.com/voxloop/voxloop/internal/resilience"
	"github.com/voxloop/voxloop/internal/status"
	"github.com/voxloop/voxloop/pkg/voice/responder/openai"
	"github.com/voxloop/voxloop/pkg/voice/stt"
	"github.com/voxloop/voxloop/pkg/voice/stt/deepgram"
	"github.com/voxloop/voxloop/pkg/voice/stt/relay"
	"github.com/voxloop/voxloop/pkg/voice/tts/elevenlabs"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	conversationID := flag.String("conversation", "default", "conversation ID used for history resumption")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxloop: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxloop: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))
	slog.Info("voxloop starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"capture_mode", cfg.Conversation.CaptureMode,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownOtel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(shCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── History store ─────────────────────────────────────────────────────────
	var (
		store       history.Store
		readyChecks []health.Checker
	)
	if cfg.History.PostgresDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.History.PostgresDSN)
		if err != nil {
			slog.Error("failed to open history store", "err", err)
			return 1
		}
		defer pg.Close()
		store = pg
		readyChecks = append(readyChecks, health.Checker{Name: "history", Check: pg.Ping})
	} else {
		slog.Warn("no postgres_dsn configured, conversation history will not survive restarts")
		store = history.NewMemStore()
	}

	convLog, err := history.Open(ctx, store, *conversationID, history.LogConfig{
		MaxTurns:  cfg.History.MaxTurns,
		Freshness: cfg.History.Freshness,
		Greeting:  localized(cfg.History.Greetings, cfg.Conversation.Locale),
	})
	if err != nil {
		slog.Error("failed to open conversation history", "err", err)
		return 1
	}

	// ── Audio gateway and providers ───────────────────────────────────────────
	gw := gateway.New(gateway.Config{})

	listener, probe, err := buildListener(cfg, gw)
	if err != nil {
		slog.Error("failed to build capture pipeline", "err", err)
		return 1
	}

	speech, err := buildSpeech(cfg.Providers.TTS)
	if err != nil {
		slog.Error("failed to build synthesis provider", "err", err)
		return 1
	}

	respond, err := buildResponder(cfg.Providers.Responder)
	if err != nil {
		slog.Error("failed to build responder", "err", err)
		return 1
	}

	player := playback.New(gw.Sink(), speech, playback.Config{
		ObserveSynthesis: func(d time.Duration) {
			metrics.SynthesisDuration.Record(context.Background(), d.Seconds())
		},
		ObservePlayback: func(d time.Duration) {
			metrics.PlaybackDuration.Record(context.Background(), d.Seconds())
		},
	})

	// ── Conversation controller ───────────────────────────────────────────────
	policy := conversation.ResolvePolicy(cfg.Conversation, runtime.GOOS)
	ctrl := conversation.New(listener, player, respond, convLog, metrics, conversation.Config{
		Locale:                 cfg.Conversation.Locale,
		SettleDelay:            policy.SettleDelay,
		SpontaneousSettleDelay: policy.SpontaneousSettleDelay,
		DedupeWindow:           cfg.Conversation.DedupeWindow,
		Farewell:               localized(cfg.Conversation.Farewells, cfg.Conversation.Locale),
		Apology:                localized(cfg.Conversation.Apologies, cfg.Conversation.Locale),
		ExtraGoodbyes:          cfg.Conversation.ExtraGoodbyes,
	})

	// ── HTTP surface ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	health.New(readyChecks...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /statusz", status.Handler(ctrl.State))
	mux.HandleFunc("GET /audio", gw.Handler())
	mux.HandleFunc("POST /conversation/begin", func(w http.ResponseWriter, r *http.Request) {
		if probe != nil {
			probe(r.Context())
		}
		ctrl.Begin()
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("POST /conversation/end", func(w http.ResponseWriter, _ *http.Request) {
		ctrl.RequestEnd()
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("POST /conversation/stop", func(w http.ResponseWriter, _ *http.Request) {
		ctrl.Stop()
		w.WriteHeader(http.StatusAccepted)
	})

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if cfg.Server.TLS != nil {
			err = srv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping…")
		ctrl.Stop()

		shCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shCtx)
	})

	slog.Info("server ready — press Ctrl+C to shut down")
	if err := g.Wait(); err != nil {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ─── Provider wiring ──────────────────────────────────────────────────────────

// buildListener assembles the capture strategy the configuration asks for.
// The returned probe function, when non-nil, reports streaming capability at
// conversation start.
func buildListener(cfg *config.Config, gw *gateway.Gateway) (capture.Listener, func(context.Context), error) {
	conv := cfg.Conversation
	policy := conversation.ResolvePolicy(conv, runtime.GOOS)
	streamCfg := stt.StreamConfig{SampleRate: 16000, Channels: 1, Language: conv.Locale}

	var (
		nativeL capture.Listener
		serverL capture.Listener
		probe   func(context.Context)
	)

	if key := cfg.Providers.Deepgram.APIKey; key != "" {
		var opts []deepgram.Option
		if m := cfg.Providers.Deepgram.Model; m != "" {
			opts = append(opts, deepgram.WithModel(m))
		}
		if u := cfg.Providers.Deepgram.BaseURL; u != "" {
			opts = append(opts, deepgram.WithEndpoint(u))
		}
		opts = append(opts, deepgram.WithLanguage(conv.Locale))

		dg, err := deepgram.New(key, opts...)
		if err != nil {
			return nil, nil, err
		}
		nativeL = native.New(gw, dg, native.Config{
			InitialSilence:    conv.InitialSilenceTimeout,
			PostSpeechSilence: conv.PostSpeechSilenceTimeout,
			InitRetries:       policy.CaptureInitRetries,
			Stream:            streamCfg,
		})
		probe = func(ctx context.Context) {
			if err := capture.Probe(ctx, gw, dg, streamCfg); err != nil {
				slog.Warn("streaming capture probe failed", "err", err)
			}
		}
	}

	if endpoint := cfg.Providers.Relay.BaseURL; endpoint != "" {
		rc, err := relay.New(endpoint)
		if err != nil {
			return nil, nil, err
		}
		transcriber := resilience.NewFallbackTranscriber("relay", rc, resilience.BreakerConfig{Name: "relay"})
		serverL = serverstt.New(gw, transcriber, serverstt.Config{
			InitialSilence:    conv.InitialSilenceTimeout,
			PostSpeechSilence: conv.PostSpeechSilenceTimeout,
			MaxClipDuration:   conv.MaxClipDuration,
			Language:          conv.Locale,
		})
	}

	switch conv.CaptureMode {
	case config.CaptureNative:
		if nativeL == nil {
			return nil, nil, errors.New("capture_mode native requires providers.deepgram")
		}
		return nativeL, probe, nil
	case config.CaptureServer:
		if serverL == nil {
			return nil, nil, errors.New("capture_mode server requires providers.relay")
		}
		return serverL, nil, nil
	default:
		switch {
		case nativeL != nil && serverL != nil:
			return capture.NewFallbackListener(nativeL, serverL), probe, nil
		case nativeL != nil:
			return nativeL, probe, nil
		case serverL != nil:
			return serverL, nil, nil
		}
		return nil, nil, errors.New("no capture provider configured")
	}
}

// buildSpeech creates the ElevenLabs synthesis provider behind a circuit
// breaker. The default voice comes from providers.tts.options.voice;
// per-locale voices from options keyed "voice.<locale>".
func buildSpeech(entry config.ProviderEntry) (*resilience.FallbackSpeech, error) {
	voice := entry.Options["voice"]
	if voice == "" {
		return nil, errors.New("providers.tts.options.voice is required")
	}

	var opts []elevenlabs.Option
	if entry.Model != "" {
		opts = append(opts, elevenlabs.WithModel(entry.Model))
	}
	if entry.BaseURL != "" {
		opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
	}
	for k, v := range entry.Options {
		if locale, ok := strings.CutPrefix(k, "voice."); ok {
			opts = append(opts, elevenlabs.WithLocaleVoice(locale, v))
		}
	}

	el, err := elevenlabs.New(entry.APIKey, voice, opts...)
	if err != nil {
		return nil, err
	}
	return resilience.NewFallbackSpeech("elevenlabs", el, resilience.BreakerConfig{Name: "elevenlabs"}), nil
}

// buildResponder creates the OpenAI reply provider behind a circuit breaker.
func buildResponder(entry config.ProviderEntry) (*resilience.FallbackResponder, error) {
	model := entry.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	var opts []openai.Option
	if entry.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(entry.BaseURL))
	}
	if prompt := entry.Options["system_prompt"]; prompt != "" {
		opts = append(opts, openai.WithSystemPrompt(prompt))
	}

	p, err := openai.New(entry.APIKey, model, opts...)
	if err != nil {
		return nil, err
	}
	return resilience.NewFallbackResponder("openai", p, resilience.BreakerConfig{Name: "openai"}), nil
}

// localized picks the text for locale from a locale-keyed table, falling
// back to the bare language tag ("fr" for "fr-FR") and then to none. Greeting,
// farewell, and apology lines all resolve this way, so a deployment speaks
// one language end to end.
func localized(byLocale map[string]string, locale string) string {
	if s, ok := byLocale[locale]; ok {
		return s
	}
	if base, _, found := strings.Cut(locale, "-"); found {
		if s, ok := byLocale[base]; ok {
			return s
		}
	}
	return ""
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
