package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrChainExhausted is returned when every link in a [Chain] fails or is
// rejected by its breaker.
var ErrChainExhausted = errors.New("resilience: all providers failed")

// link pairs one provider with its dedicated breaker.
type link[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Chain holds an ordered list of interchangeable providers, each guarded by
// its own [Breaker]. Calls go to the first link whose breaker admits them and
// whose provider succeeds.
type Chain[T any] struct {
	links []link[T]
	cfg   BreakerConfig
}

// NewChain creates a [Chain] whose first link is primary. cfg seeds the
// breaker of every link; the Name field is replaced per link.
func NewChain[T any](primaryName string, primary T, cfg BreakerConfig) *Chain[T] {
	c := &Chain[T]{cfg: cfg}
	c.Append(primaryName, primary)
	return c
}

// Append registers an additional provider. Links are tried in registration
// order. Not safe to call concurrently with Do.
func (c *Chain[T]) Append(name string, value T) {
	bc := c.cfg
	bc.Name = name
	c.links = append(c.links, link[T]{name: name, value: value, breaker: NewBreaker(bc)})
}

// Len returns the number of registered links.
func (c *Chain[T]) Len() int { return len(c.links) }

// Do tries fn against each link in order until one succeeds. Links with open
// breakers are skipped. If ctx is canceled between links the context error is
// returned directly.
func (c *Chain[T]) Do(ctx context.Context, fn func(context.Context, T) error) error {
	var lastErr error
	for i := range c.links {
		if err := ctx.Err(); err != nil {
			return err
		}
		l := &c.links[i]
		err := l.breaker.Do(ctx, func(ctx context.Context) error {
			return fn(ctx, l.value)
		})
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrBreakerOpen) {
			slog.Debug("skipping provider, breaker open", "provider", l.name)
		} else {
			slog.Warn("provider failed, trying next",
				"provider", l.name, "error", err)
		}
	}
	return fmt.Errorf("%w: %v", ErrChainExhausted, lastErr)
}

// First tries fn against each link of c until one returns a value. It is a
// package-level function because Go methods cannot introduce type parameters.
func First[T, R any](ctx context.Context, c *Chain[T], fn func(context.Context, T) (R, error)) (R, error) {
	var result R
	err := c.Do(ctx, func(ctx context.Context, v T) error {
		var innerErr error
		result, innerErr = fn(ctx, v)
		return innerErr
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return result, nil
}
