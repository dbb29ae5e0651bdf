// Package mock provides an in-memory mock implementation of the
// [tts.Provider] interface for use in unit tests.
package mock

import (
	"context"
	"sync"

	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/voice/tts"
)

// Provider is a mock implementation of [tts.Provider].
// Set the exported Result fields before use; inspect the recorded fields
// after. Safe for concurrent use.
type Provider struct {
	mu sync.Mutex

	// SynthesizeResult is returned by Synthesize when SynthesizeError is nil.
	// When zero, a small placeholder clip is returned instead.
	SynthesizeResult audio.Clip

	// SynthesizeError, when non-nil, is returned by Synthesize.
	SynthesizeError error

	// Block, when non-nil, makes Synthesize wait until the channel is closed
	// or ctx is cancelled. Used to test request timeouts.
	Block chan struct{}

	// RecordedRequests holds every request passed to Synthesize.
	RecordedRequests []tts.Request

	// CallCountSynthesize records how many times Synthesize was called.
	CallCountSynthesize int
}

// Synthesize implements [tts.Provider].
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (audio.Clip, error) {
	p.mu.Lock()
	p.CallCountSynthesize++
	p.RecordedRequests = append(p.RecordedRequests, req)
	block := p.Block
	clip, err := p.SynthesizeResult, p.SynthesizeError
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return audio.Clip{}, ctx.Err()
		}
	}
	if err != nil {
		return audio.Clip{}, err
	}
	if len(clip.Data) == 0 {
		clip = audio.Clip{Data: []byte("synthesized"), MIMEType: "audio/mpeg"}
	}
	return clip, nil
}
