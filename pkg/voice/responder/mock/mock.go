// Package mock provides a scriptable responder.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/voxloop/voxloop/pkg/voice/responder"
)

// Provider is a mock responder.Provider.
type Provider struct {
	mu sync.Mutex

	// ReplyResult is returned by Reply when ReplyError is nil.
	ReplyResult string

	// ReplyError, when set, is returned by every Reply call.
	ReplyError error

	// Block, when non-nil, makes Reply wait until the channel is closed
	// or the context is canceled.
	Block chan struct{}

	// RecordedRequests holds every request passed to Reply.
	RecordedRequests []responder.Request

	CallCountReply int
}

var _ responder.Provider = (*Provider)(nil)

// Reply implements responder.Provider.
func (p *Provider) Reply(ctx context.Context, req responder.Request) (string, error) {
	p.mu.Lock()
	p.CallCountReply++
	p.RecordedRequests = append(p.RecordedRequests, req)
	block := p.Block
	result, err := p.ReplyResult, p.ReplyError
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return result, nil
}

// Requests returns a copy of all recorded requests.
func (p *Provider) Requests() []responder.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]responder.Request, len(p.RecordedRequests))
	copy(out, p.RecordedRequests)
	return out
}
