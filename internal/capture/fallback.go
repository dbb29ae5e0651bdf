package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// FallbackListener tries a preferred strategy and demotes to a fallback when
// the preferred one reports [ErrUnavailable]. The demotion is sticky: once a
// strategy has proven unavailable on this deployment it is not asked again.
type FallbackListener struct {
	preferred Listener
	fallback  Listener

	mu      sync.Mutex
	demoted bool
}

var _ Listener = (*FallbackListener)(nil)

// NewFallbackListener creates a FallbackListener.
func NewFallbackListener(preferred, fallback Listener) *FallbackListener {
	return &FallbackListener{preferred: preferred, fallback: fallback}
}

// Listen implements [Listener].
func (f *FallbackListener) Listen(ctx context.Context, h Handlers) (string, error) {
	f.mu.Lock()
	demoted := f.demoted
	f.mu.Unlock()

	if !demoted {
		text, err := f.preferred.Listen(ctx, h)
		if !errors.Is(err, ErrUnavailable) {
			return text, err
		}
		f.mu.Lock()
		f.demoted = true
		f.mu.Unlock()
		slog.Warn("preferred capture strategy unavailable, switching to fallback",
			"error", err)
	}

	return f.fallback.Listen(ctx, h)
}
