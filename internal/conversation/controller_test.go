package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/voxloop/voxloop/internal/capture"
	"github.com/voxloop/voxloop/internal/history"
	"github.com/voxloop/voxloop/internal/observe"
	"github.com/voxloop/voxloop/internal/playback"
	"github.com/voxloop/voxloop/pkg/audio"
	audiomock "github.com/voxloop/voxloop/pkg/audio/mock"
	respmock "github.com/voxloop/voxloop/pkg/voice/responder/mock"
	ttsmock "github.com/voxloop/voxloop/pkg/voice/tts/mock"
)

// listenStep scripts one Listen call.
type listenStep struct {
	text      string
	err       error
	streamEnd bool
}

// scriptedListener returns its steps in order. Once exhausted it reports the
// configured audio level (if any) and blocks until the turn is canceled.
type scriptedListener struct {
	mu        sync.Mutex
	script    []listenStep
	idx       int
	level     float64
	callTimes []time.Time
}

func (l *scriptedListener) Listen(ctx context.Context, h capture.Handlers) (string, error) {
	l.mu.Lock()
	l.callTimes = append(l.callTimes, time.Now())
	if l.idx >= len(l.script) {
		level := l.level
		l.mu.Unlock()
		if level > 0 && h.OnLevel != nil {
			h.OnLevel(level)
		}
		<-ctx.Done()
		return "", ctx.Err()
	}
	step := l.script[l.idx]
	l.idx++
	l.mu.Unlock()
	if step.streamEnd && h.OnStreamEnd != nil {
		h.OnStreamEnd()
	}
	return step.text, step.err
}

func (l *scriptedListener) calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.idx
}

func (l *scriptedListener) times() []time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]time.Time(nil), l.callTimes...)
}

// autoSink completes every playback immediately so Speak returns as soon as
// the clip is handed to the device.
type autoSink struct {
	*audiomock.Sink
}

func (s *autoSink) Play(ctx context.Context, clip audio.Clip) (audio.Playback, error) {
	pb, err := s.Sink.Play(ctx, clip)
	if err != nil {
		return nil, err
	}
	pb.(*audiomock.Playback).Complete()
	return pb, nil
}

type fixture struct {
	listener *scriptedListener
	sink     *autoSink
	tts      *ttsmock.Provider
	resp     *respmock.Provider
	store    *history.MemStore
	ctrl     *Controller
}

func newFixture(t *testing.T, script []listenStep) *fixture {
	t.Helper()
	return newFixtureConfig(t, script, Config{
		SettleDelay:  time.Millisecond,
		DedupeWindow: time.Second,
		Farewell:     "Goodbye!",
	})
}

func newFixtureConfig(t *testing.T, script []listenStep, cfg Config) *fixture {
	t.Helper()

	f := &fixture{
		listener: &scriptedListener{script: script},
		sink:     &autoSink{Sink: &audiomock.Sink{}},
		tts:      &ttsmock.Provider{},
		resp:     &respmock.Provider{ReplyResult: "Happy to help."},
		store:    history.NewMemStore(),
	}

	log, err := history.Open(context.Background(), f.store, "test-conv", history.LogConfig{})
	if err != nil {
		t.Fatalf("open log: %v", err)
	}

	metrics, err := observe.NewMetrics(sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}

	player := playback.New(f.sink, f.tts, playback.Config{})
	f.ctrl = New(f.listener, player, f.resp, log, metrics, cfg)
	return f
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

// waitDone waits for the conversation loop to exit on its own.
func waitDone(t *testing.T, c *Controller) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("conversation did not end in time")
	}
}

func spokenTexts(p *ttsmock.Provider) []string {
	var out []string
	for _, req := range p.RecordedRequests {
		out = append(out, req.Text)
	}
	return out
}

func TestGreetingTurn(t *testing.T) {
	t.Parallel()
	f := newFixture(t, []listenStep{{text: "Hi there"}})

	f.ctrl.Begin()
	waitFor(t, func() bool { return f.listener.calls() == 1 && len(f.resp.Requests()) == 1 })
	waitFor(t, func() bool { return f.ctrl.State().Phase == PhaseListening })
	f.ctrl.Stop()

	msgs, err := f.store.Load(context.Background(), "test-conv", time.Time{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("stored messages = %d, want 2", len(msgs))
	}
	if msgs[0].Role != history.RoleUser || msgs[0].Content != "Hi there" {
		t.Errorf("first message = %s %q", msgs[0].Role, msgs[0].Content)
	}
	if msgs[1].Role != history.RoleAssistant || msgs[1].Content != "Happy to help." {
		t.Errorf("second message = %s %q", msgs[1].Role, msgs[1].Content)
	}

	if got := spokenTexts(f.tts); len(got) != 1 || got[0] != "Happy to help." {
		t.Errorf("spoken = %q, want the reply", got)
	}
	req := f.resp.Requests()[0]
	if req.Message != "Hi there" || len(req.History) != 0 {
		t.Errorf("responder request = %+v, want message with empty prior history", req)
	}
}

func TestUserGoodbyeSkipsResponder(t *testing.T) {
	t.Parallel()
	f := newFixture(t, []listenStep{{text: "okay, bye"}})

	f.ctrl.Begin()
	waitDone(t, f.ctrl)

	if f.resp.CallCountReply != 0 {
		t.Errorf("responder called %d times, want 0", f.resp.CallCountReply)
	}
	if got := spokenTexts(f.tts); len(got) != 1 || got[0] != "Goodbye!" {
		t.Errorf("spoken = %q, want just the farewell", got)
	}
	st := f.ctrl.State()
	if st.Active || st.Phase != PhaseIdle {
		t.Errorf("state after goodbye = %+v, want idle and inactive", st)
	}
}

func TestAssistantGoodbyeEndsConversation(t *testing.T) {
	t.Parallel()
	f := newFixture(t, []listenStep{{text: "thanks, that helps"}})
	f.resp.ReplyResult = "You're welcome. Goodbye!"

	f.ctrl.Begin()
	waitDone(t, f.ctrl)

	if got := spokenTexts(f.tts); len(got) != 1 || got[0] != "You're welcome. Goodbye!" {
		t.Errorf("spoken = %q, want the farewell reply", got)
	}
	msgs, _ := f.store.Load(context.Background(), "test-conv", time.Time{})
	if len(msgs) != 2 || msgs[1].Content != "You're welcome. Goodbye!" {
		t.Errorf("stored messages = %+v, want user turn plus farewell reply", msgs)
	}
	if f.ctrl.State().Active {
		t.Error("conversation still active after assistant goodbye")
	}
}

func TestNoSpeechRestartsWithoutHistory(t *testing.T) {
	t.Parallel()
	f := newFixture(t, []listenStep{
		{err: capture.ErrNoSpeech},
		{err: capture.ErrNoSpeech},
	})

	f.ctrl.Begin()
	waitFor(t, func() bool { return f.listener.calls() == 2 })
	waitFor(t, func() bool { return f.ctrl.State().Phase == PhaseListening })
	f.ctrl.Stop()

	if f.resp.CallCountReply != 0 {
		t.Errorf("responder called %d times, want 0", f.resp.CallCountReply)
	}
	msgs, _ := f.store.Load(context.Background(), "test-conv", time.Time{})
	if len(msgs) != 0 {
		t.Errorf("stored messages = %d, want none for silent turns", len(msgs))
	}
}

func TestResponderFailureSpeaksApology(t *testing.T) {
	t.Parallel()
	f := newFixture(t, []listenStep{{text: "hello"}})
	f.resp.ReplyError = errors.New("rate limited")

	f.ctrl.Begin()
	// LastError is set while processing; by the time the loop is listening
	// again the apology has been spoken.
	waitFor(t, func() bool {
		st := f.ctrl.State()
		return st.LastError == ErrorService && st.Phase == PhaseListening
	})
	f.ctrl.Stop()

	got := spokenTexts(f.tts)
	if len(got) != 1 || !strings.Contains(strings.ToLower(got[0]), "sorry") {
		t.Errorf("spoken = %q, want an apology", got)
	}
	if f.ctrl.State().LastError != ErrorService {
		t.Errorf("LastError = %v, want %v", f.ctrl.State().LastError, ErrorService)
	}
	msgs, _ := f.store.Load(context.Background(), "test-conv", time.Time{})
	if len(msgs) != 1 || msgs[0].Role != history.RoleUser {
		t.Errorf("stored messages = %+v, want only the user turn", msgs)
	}
}

func TestPermissionDeniedEndsConversation(t *testing.T) {
	t.Parallel()
	f := newFixture(t, []listenStep{
		{err: fmt.Errorf("native: open source: %w", audio.ErrPermissionDenied)},
	})

	f.ctrl.Begin()
	waitDone(t, f.ctrl)

	st := f.ctrl.State()
	if st.Active || st.Phase != PhaseIdle {
		t.Errorf("state = %+v, want idle", st)
	}
	if st.LastError != ErrorPermissionDenied {
		t.Errorf("LastError = %v, want %v", st.LastError, ErrorPermissionDenied)
	}
	if f.tts.CallCountSynthesize != 0 {
		t.Error("nothing should be spoken after a permission failure")
	}
}

func TestCaptureUnavailableEndsConversation(t *testing.T) {
	t.Parallel()
	f := newFixture(t, []listenStep{
		{err: fmt.Errorf("%w: deepgram unreachable", capture.ErrUnavailable)},
	})

	f.ctrl.Begin()
	waitDone(t, f.ctrl)

	if got := f.ctrl.State().LastError; got != ErrorDeviceUnavailable {
		t.Errorf("LastError = %v, want %v", got, ErrorDeviceUnavailable)
	}
}

func TestTransientListenErrorRestarts(t *testing.T) {
	t.Parallel()
	f := newFixture(t, []listenStep{
		{err: errors.New("stream reset")},
		{text: "still here"},
	})

	f.ctrl.Begin()
	waitFor(t, func() bool { return len(f.resp.Requests()) == 1 })
	f.ctrl.Stop()

	if got := f.resp.Requests()[0].Message; got != "still here" {
		t.Errorf("responder got %q, want the post-restart transcript", got)
	}
}

func TestPlaybackFailureStillRestarts(t *testing.T) {
	t.Parallel()
	f := newFixture(t, []listenStep{
		{text: "hello"},
		{text: "bye now"},
	})
	f.sink.PlayError = errors.New("device wedged")

	f.ctrl.Begin()
	waitDone(t, f.ctrl)

	// Two listening turns ran even though every playback failed.
	if got := f.listener.calls(); got != 2 {
		t.Errorf("listen calls = %d, want 2", got)
	}
	if f.ctrl.State().Active {
		t.Error("conversation still active")
	}
}

func TestDuplicateTranscriptDropped(t *testing.T) {
	t.Parallel()
	f := newFixture(t, []listenStep{
		{text: "what's the weather"},
		{text: "What's the weather?"},
	})

	f.ctrl.Begin()
	waitFor(t, func() bool { return f.listener.calls() == 2 && f.ctrl.State().Phase == PhaseListening })
	f.ctrl.Stop()

	if got := len(f.resp.Requests()); got != 1 {
		t.Errorf("responder called %d times, want 1 after dedupe", got)
	}
}

func TestRequestEndPlaysFarewell(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	f.ctrl.Begin()
	waitFor(t, func() bool { return f.ctrl.State().Phase == PhaseListening })
	f.ctrl.RequestEnd()
	waitDone(t, f.ctrl)

	if got := spokenTexts(f.tts); len(got) != 1 || got[0] != "Goodbye!" {
		t.Errorf("spoken = %q, want the farewell", got)
	}
	if f.ctrl.State().Active {
		t.Error("conversation still active after RequestEnd")
	}
}

func TestStopEndsWithoutFarewell(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	f.ctrl.Begin()
	waitFor(t, func() bool { return f.ctrl.State().Phase == PhaseListening })
	f.ctrl.Stop()

	if f.tts.CallCountSynthesize != 0 {
		t.Errorf("synthesize called %d times, want 0", f.tts.CallCountSynthesize)
	}
	st := f.ctrl.State()
	if st.Active || st.Phase != PhaseIdle {
		t.Errorf("state = %+v, want idle", st)
	}
}

func TestBeginWhileActiveIsNoOp(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	f.ctrl.Begin()
	first := f.ctrl.Done()
	f.ctrl.Begin()
	if f.ctrl.Done() != first {
		t.Error("second Begin started a new conversation")
	}
	f.ctrl.Stop()
}

func TestAudioLevelSurfacedWhileListening(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.listener.level = 0.4

	f.ctrl.Begin()
	waitFor(t, func() bool { return f.ctrl.State().AudioLevel == 0.4 })
	f.ctrl.Stop()

	if got := f.ctrl.State().AudioLevel; got != 0 {
		t.Errorf("AudioLevel after stop = %v, want 0", got)
	}
}

func TestLocalizedFarewellAndApology(t *testing.T) {
	t.Parallel()
	f := newFixtureConfig(t, []listenStep{
		{text: "Quelle heure est-il ?"},
		{text: "au revoir"},
	}, Config{
		Locale:       "fr-FR",
		SettleDelay:  time.Millisecond,
		DedupeWindow: time.Second,
		Farewell:     "Au revoir !",
		Apology:      "Désolé, pouvez-vous répéter ?",
	})
	f.resp.ReplyError = errors.New("responder down")

	f.ctrl.Begin()
	waitDone(t, f.ctrl)

	// The failed first turn speaks the configured apology, the goodbye turn
	// the configured farewell; nothing falls back to English.
	got := spokenTexts(f.tts)
	if len(got) != 2 || got[0] != "Désolé, pouvez-vous répéter ?" || got[1] != "Au revoir !" {
		t.Errorf("spoken = %q, want the localized apology then farewell", got)
	}
	for _, req := range f.tts.RecordedRequests {
		if req.Locale != "fr-FR" {
			t.Errorf("synthesis locale = %q, want fr-FR", req.Locale)
		}
	}
}

func TestSpontaneousStreamEndExtendsSettle(t *testing.T) {
	t.Parallel()
	f := newFixtureConfig(t, []listenStep{
		{text: "hello", streamEnd: true},
	}, Config{
		SettleDelay:            time.Millisecond,
		SpontaneousSettleDelay: 200 * time.Millisecond,
		DedupeWindow:           time.Second,
	})

	f.ctrl.Begin()
	waitFor(t, func() bool { return f.listener.calls() >= 1 && len(f.listener.times()) >= 2 })
	f.ctrl.Stop()

	// The reply turn ended with a spontaneous stream end, so the gap before
	// the next listening turn must cover the longer settle delay.
	times := f.listener.times()
	if gap := times[1].Sub(times[0]); gap < 180*time.Millisecond {
		t.Errorf("gap before relisten = %v, want at least the spontaneous settle delay", gap)
	}
}
