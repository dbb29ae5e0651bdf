package conversation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/voxloop/voxloop/internal/capture"
	"github.com/voxloop/voxloop/internal/history"
	"github.com/voxloop/voxloop/internal/observe"
	"github.com/voxloop/voxloop/internal/playback"
	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/voice/responder"
)

// Config tunes a [Controller]. Zero fields get defaults.
type Config struct {
	// Locale is the BCP 47 tag of the conversation ("en-US").
	Locale string

	// SettleDelay is how long to wait after a reply finished playing before
	// listening again. Default: 800ms.
	SettleDelay time.Duration

	// SpontaneousSettleDelay replaces SettleDelay when the recognizer
	// stream ended on its own during the turn, giving the audio stack extra
	// recovery time. Default: SettleDelay + 400ms.
	SpontaneousSettleDelay time.Duration

	// DedupeWindow is how long an admitted transcript suppresses duplicates.
	// Default: 2s.
	DedupeWindow time.Duration

	// Farewell is spoken when the conversation ends gracefully.
	Farewell string

	// Apology is spoken in place of a reply when the responder fails.
	Apology string

	// ExtraGoodbyes extends the built-in goodbye phrase set.
	ExtraGoodbyes []string
}

func (c *Config) applyDefaults() {
	if c.Locale == "" {
		c.Locale = "en-US"
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 800 * time.Millisecond
	}
	if c.DedupeWindow <= 0 {
		c.DedupeWindow = 2 * time.Second
	}
	if c.SpontaneousSettleDelay <= 0 {
		c.SpontaneousSettleDelay = c.SettleDelay + 400*time.Millisecond
	}
	if c.Farewell == "" {
		c.Farewell = "Goodbye!"
	}
	if c.Apology == "" {
		c.Apology = "Sorry, I ran into a problem. Could you say that again?"
	}
}

// Controller drives one conversation: a single loop goroutine that listens,
// generates a reply, speaks it, and listens again until somebody says
// goodbye. Listening and speaking never overlap, and at most one transcript
// is being processed at a time.
//
// Begin, RequestEnd, Stop, and State may be called from any goroutine.
type Controller struct {
	listener  capture.Listener
	player    *playback.Player
	responder responder.Provider
	log       *history.Log
	metrics   *observe.Metrics
	dedupe    *capture.Deduplicator
	goodbye   *GoodbyeDetector
	cfg       Config

	mu          sync.Mutex
	state       State
	runCancel   context.CancelFunc
	turnCancel  context.CancelFunc
	streamEnded bool
	done        chan struct{}
}

// New creates a Controller. The history log is owned by the controller from
// here on; callers must not use it concurrently.
func New(listener capture.Listener, player *playback.Player, provider responder.Provider, log *history.Log, metrics *observe.Metrics, cfg Config) *Controller {
	cfg.applyDefaults()
	return &Controller{
		listener:  listener,
		player:    player,
		responder: provider,
		log:       log,
		metrics:   metrics,
		dedupe:    capture.NewDeduplicator(cfg.DedupeWindow),
		goodbye:   NewGoodbyeDetector(cfg.ExtraGoodbyes),
		cfg:       cfg,
	}
}

// Begin starts the conversation loop. Calling Begin while a conversation is
// already running is a no-op.
func (c *Controller) Begin() {
	c.mu.Lock()
	if c.state.Active {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.runCancel = cancel
	c.done = make(chan struct{})
	c.state = State{Phase: PhaseListening, PhaseStarted: time.Now(), Active: true}
	c.mu.Unlock()

	c.metrics.ActiveConversations.Add(ctx, 1)
	go c.run(ctx)
}

// RequestEnd asks the conversation to end gracefully: the current activity
// wraps up, the farewell is spoken, and the loop returns to idle. A no-op
// when no conversation is running.
func (c *Controller) RequestEnd() {
	c.mu.Lock()
	if !c.state.Active || c.state.EndingRequested {
		c.mu.Unlock()
		return
	}
	c.state.EndingRequested = true
	turnCancel := c.turnCancel
	c.mu.Unlock()

	// A listening turn in progress is cut short so the loop can notice the
	// request. A reply already playing is left to finish.
	if turnCancel != nil {
		turnCancel()
	}
}

// Stop ends the conversation immediately: the loop is canceled, any playback
// is cut off, and no farewell is spoken. Stop blocks until the loop has
// exited. A no-op when no conversation is running.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.runCancel
	done := c.done
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	c.player.Stop()
	if done != nil {
		<-done
	}
}

// State returns a snapshot of the conversation.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done returns a channel closed when the current conversation's loop has
// exited. Returns nil when no conversation has been started.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// ─── Loop ────────────────────────────────────────────────────────────────────

func (c *Controller) run(ctx context.Context) {
	defer func() {
		c.metrics.ActiveConversations.Add(context.Background(), -1)

		c.mu.Lock()
		lastErr := c.state.LastError
		c.state = State{Phase: PhaseIdle, LastError: lastErr}
		c.runCancel = nil
		done := c.done
		c.mu.Unlock()
		close(done)
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		if c.endingRequested() {
			c.farewell(ctx, "requested")
			return
		}

		text, err := c.listenTurn(ctx)
		if err != nil {
			if terminal := c.handleListenError(ctx, err); terminal {
				return
			}
			continue
		}

		if !c.dedupe.Admit(text) {
			slog.Debug("conversation: transcript dropped as duplicate", "text", text)
			c.metrics.RecordTurn(ctx, "duplicate")
			continue
		}
		ended := c.handleTranscript(ctx, text)
		c.dedupe.Done()
		if ended || ctx.Err() != nil {
			return
		}

		c.settle(ctx)
		c.metrics.Restarts.Add(ctx, 1)
	}
}

// listenTurn runs one capture turn, maintaining the audio level in the state
// snapshot and timing the turn.
func (c *Controller) listenTurn(ctx context.Context) (string, error) {
	c.setPhase(PhaseListening)

	turnCtx, cancel := context.WithCancel(ctx)
	c.setTurnCancel(cancel)
	defer func() {
		c.setTurnCancel(nil)
		cancel()
	}()

	c.consumeStreamEnd() // clear anything stale from a turn that skipped settle

	start := time.Now()
	text, err := c.listener.Listen(turnCtx, capture.Handlers{
		OnLevel:     c.setAudioLevel,
		OnStreamEnd: c.noteStreamEnd,
	})
	c.setAudioLevel(0)
	c.metrics.CaptureDuration.Record(ctx, time.Since(start).Seconds())
	return text, err
}

// handleListenError classifies a failed listening turn and reports whether
// the conversation must end.
func (c *Controller) handleListenError(ctx context.Context, err error) (terminal bool) {
	switch {
	case ctx.Err() != nil:
		return true

	case errors.Is(err, context.Canceled):
		// The turn was cut short by RequestEnd; the loop's next pass plays
		// the farewell.
		return false

	case errors.Is(err, capture.ErrNoSpeech):
		c.metrics.RecordTurn(ctx, "no_speech")
		c.metrics.Restarts.Add(ctx, 1)
		return false

	case errors.Is(err, audio.ErrPermissionDenied):
		slog.Error("conversation: microphone permission denied", "error", err)
		c.setError(ErrorPermissionDenied)
		return true

	case errors.Is(err, audio.ErrUnsupported):
		slog.Error("conversation: capture unsupported on this platform", "error", err)
		c.setError(ErrorUnsupported)
		return true

	case errors.Is(err, capture.ErrUnavailable):
		slog.Error("conversation: no capture strategy available", "error", err)
		c.setError(ErrorDeviceUnavailable)
		return true

	default:
		slog.Warn("conversation: listening turn failed, restarting", "error", err)
		c.setError(ErrorTransient)
		c.metrics.RecordTurn(ctx, "error")
		c.metrics.Restarts.Add(ctx, 1)
		return false
	}
}

// handleTranscript runs the processing and speaking stages for one admitted
// transcript and reports whether the conversation ended.
func (c *Controller) handleTranscript(ctx context.Context, text string) (ended bool) {
	c.setPhase(PhaseProcessing)

	// History before this turn is what the responder sees as context.
	turns := responder.CapHistory(c.log.Turns())
	if err := c.log.AddUserTurn(ctx, text); err != nil {
		slog.Warn("conversation: failed to persist user turn", "error", err)
	}

	if c.goodbye.Match(text) {
		c.metrics.RecordGoodbye(ctx, "user")
		c.metrics.RecordTurn(ctx, "ok")
		c.farewell(ctx, "user")
		return true
	}

	start := time.Now()
	reply, err := c.responder.Reply(ctx, responder.Request{
		Message: text,
		History: turns,
		Locale:  c.cfg.Locale,
	})
	c.metrics.ReplyDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		slog.Error("conversation: responder failed", "error", err)
		c.metrics.RecordProviderError(ctx, "responder", "reply")
		c.setError(ErrorService)
		c.metrics.RecordTurn(ctx, "error")
		c.speak(ctx, c.cfg.Apology, PhaseSpeaking)
		return false
	}

	if err := c.log.AddAssistantTurn(ctx, reply); err != nil {
		slog.Warn("conversation: failed to persist assistant turn", "error", err)
	}

	if c.goodbye.Match(reply) {
		c.metrics.RecordGoodbye(ctx, "assistant")
		c.metrics.RecordTurn(ctx, "ok")
		c.speakEnding(ctx, reply)
		return true
	}

	c.speak(ctx, reply, PhaseSpeaking)
	c.metrics.RecordTurn(ctx, "ok")
	return false
}

// farewell speaks the configured farewell and records the termination source.
func (c *Controller) farewell(ctx context.Context, source string) {
	if err := c.log.AddAssistantTurn(ctx, c.cfg.Farewell); err != nil {
		slog.Warn("conversation: failed to persist farewell", "error", err)
	}
	c.speakEnding(ctx, c.cfg.Farewell)
	slog.Info("conversation: ended", "source", source)
}

// speakEnding plays text as the conversation's last utterance.
func (c *Controller) speakEnding(ctx context.Context, text string) {
	c.speak(ctx, text, PhaseEnding)
}

// speak plays text in the given phase. Playback failures are absorbed: a
// reply that could not be spoken still leaves the loop able to listen again.
func (c *Controller) speak(ctx context.Context, text string, phase Phase) {
	c.setPhase(phase)

	err := c.player.Speak(ctx, text, c.cfg.Locale)
	if err == nil || errors.Is(err, playback.ErrInterrupted) || ctx.Err() != nil {
		return
	}

	slog.Warn("conversation: playback failed", "error", err)
	c.metrics.RecordProviderError(ctx, "playback", "speak")
	c.setError(ErrorService)
}

// settle waits out the settle delay so room audio from the reply dies down
// before the microphone reopens. A turn whose recognizer stream ended on its
// own gets the longer spontaneous-end delay.
func (c *Controller) settle(ctx context.Context) {
	d := c.cfg.SettleDelay
	if c.consumeStreamEnd() {
		d = c.cfg.SpontaneousSettleDelay
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// ─── State bookkeeping ───────────────────────────────────────────────────────

func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	c.state.Phase = p
	c.state.PhaseStarted = time.Now()
	if p != PhaseListening {
		c.state.AudioLevel = 0
	}
	c.mu.Unlock()
}

func (c *Controller) setError(k ErrorKind) {
	c.mu.Lock()
	c.state.LastError = k
	c.mu.Unlock()
}

func (c *Controller) setAudioLevel(level float64) {
	c.mu.Lock()
	c.state.AudioLevel = level
	c.mu.Unlock()
}

func (c *Controller) setTurnCancel(cancel context.CancelFunc) {
	c.mu.Lock()
	c.turnCancel = cancel
	c.mu.Unlock()
}

func (c *Controller) noteStreamEnd() {
	c.mu.Lock()
	c.streamEnded = true
	c.mu.Unlock()
}

func (c *Controller) consumeStreamEnd() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ended := c.streamEnded
	c.streamEnded = false
	return ended
}

func (c *Controller) endingRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.EndingRequested
}
