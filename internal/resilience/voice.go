package resilience

import (
	"context"

	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/voice/responder"
	"github.com/voxloop/voxloop/pkg/voice/stt"
	"github.com/voxloop/voxloop/pkg/voice/tts"
)

// FallbackTranscriber is an stt.Transcriber that fails over across an
// ordered chain of transcribers.
type FallbackTranscriber struct {
	chain *Chain[stt.Transcriber]
}

// NewFallbackTranscriber wraps primary in a breaker-guarded chain. Add
// fallbacks with [FallbackTranscriber.Append].
func NewFallbackTranscriber(primaryName string, primary stt.Transcriber, cfg BreakerConfig) *FallbackTranscriber {
	return &FallbackTranscriber{chain: NewChain(primaryName, primary, cfg)}
}

// Append registers an additional transcriber after the existing ones.
func (f *FallbackTranscriber) Append(name string, t stt.Transcriber) {
	f.chain.Append(name, t)
}

var _ stt.Transcriber = (*FallbackTranscriber)(nil)

// Transcribe implements stt.Transcriber.
func (f *FallbackTranscriber) Transcribe(ctx context.Context, wav []byte, language string) (string, error) {
	return First(ctx, f.chain, func(ctx context.Context, t stt.Transcriber) (string, error) {
		return t.Transcribe(ctx, wav, language)
	})
}

// FallbackSpeech is a tts.Provider that fails over across an ordered chain
// of synthesis providers.
type FallbackSpeech struct {
	chain *Chain[tts.Provider]
}

// NewFallbackSpeech wraps primary in a breaker-guarded chain.
func NewFallbackSpeech(primaryName string, primary tts.Provider, cfg BreakerConfig) *FallbackSpeech {
	return &FallbackSpeech{chain: NewChain(primaryName, primary, cfg)}
}

// Append registers an additional synthesis provider.
func (f *FallbackSpeech) Append(name string, p tts.Provider) {
	f.chain.Append(name, p)
}

var _ tts.Provider = (*FallbackSpeech)(nil)

// Synthesize implements tts.Provider.
func (f *FallbackSpeech) Synthesize(ctx context.Context, req tts.Request) (audio.Clip, error) {
	return First(ctx, f.chain, func(ctx context.Context, p tts.Provider) (audio.Clip, error) {
		return p.Synthesize(ctx, req)
	})
}

// FallbackResponder is a responder.Provider that fails over across an
// ordered chain of reply providers.
type FallbackResponder struct {
	chain *Chain[responder.Provider]
}

// NewFallbackResponder wraps primary in a breaker-guarded chain.
func NewFallbackResponder(primaryName string, primary responder.Provider, cfg BreakerConfig) *FallbackResponder {
	return &FallbackResponder{chain: NewChain(primaryName, primary, cfg)}
}

// Append registers an additional reply provider.
func (f *FallbackResponder) Append(name string, p responder.Provider) {
	f.chain.Append(name, p)
}

var _ responder.Provider = (*FallbackResponder)(nil)

// Reply implements responder.Provider.
func (f *FallbackResponder) Reply(ctx context.Context, req responder.Request) (string, error) {
	return First(ctx, f.chain, func(ctx context.Context, p responder.Provider) (string, error) {
		return p.Reply(ctx, req)
	})
}
