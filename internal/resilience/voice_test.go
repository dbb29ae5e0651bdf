package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	sttmock "github.com/voxloop/voxloop/pkg/voice/stt/mock"
	"github.com/voxloop/voxloop/pkg/voice/tts"
	ttsmock "github.com/voxloop/voxloop/pkg/voice/tts/mock"
)

func TestFallbackTranscriberFailsOver(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Transcriber{TranscribeError: errBoom}
	secondary := &sttmock.Transcriber{TranscribeResult: "hello there"}

	ft := NewFallbackTranscriber("primary", primary, BreakerConfig{Cooldown: time.Hour})
	ft.Append("secondary", secondary)

	got, err := ft.Transcribe(context.Background(), []byte("wav"), "en")
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if got != "hello there" {
		t.Errorf("transcript = %q, want %q", got, "hello there")
	}
	if primary.CallCountTranscribe != 1 || secondary.CallCountTranscribe != 1 {
		t.Errorf("call counts = %d/%d, want 1/1",
			primary.CallCountTranscribe, secondary.CallCountTranscribe)
	}
}

func TestFallbackSpeechAllFail(t *testing.T) {
	t.Parallel()

	primary := &ttsmock.Provider{SynthesizeError: errBoom}
	fs := NewFallbackSpeech("primary", primary, BreakerConfig{Cooldown: time.Hour})

	_, err := fs.Synthesize(context.Background(), tts.Request{Text: "hi"})
	if !errors.Is(err, ErrChainExhausted) {
		t.Errorf("err = %v, want ErrChainExhausted", err)
	}
}
