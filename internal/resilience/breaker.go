// Package resilience provides the failure-isolation primitives used around
// external voice providers: a three-state circuit breaker, ordered provider
// chains, and bounded retry.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBreakerOpen is returned when a breaker is open and its cooldown has not
// yet elapsed.
var ErrBreakerOpen = errors.New("resilience: breaker open")

// BreakerState is the operating mode of a [Breaker].
type BreakerState int

const (
	// BreakerClosed forwards all calls.
	BreakerClosed BreakerState = iota

	// BreakerOpen rejects calls with [ErrBreakerOpen] until the cooldown
	// elapses.
	BreakerOpen

	// BreakerProbing admits a limited number of probe calls after the
	// cooldown. Probes decide whether the breaker closes or re-opens.
	BreakerProbing
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerProbing:
		return "probing"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker]. Zero fields get defaults.
type BreakerConfig struct {
	// Name labels the breaker in log output.
	Name string

	// Threshold is the number of consecutive failures that trips the
	// breaker. Default: 5.
	Threshold int

	// Cooldown is how long the breaker stays open before probing.
	// Default: 30s.
	Cooldown time.Duration

	// ProbeBudget is how many probe calls are admitted while probing.
	// Default: 2.
	ProbeBudget int
}

// Breaker is a consecutive-failure circuit breaker. Callers either use
// [Breaker.Do], or pair [Breaker.Allow] with [Breaker.Record] when the
// protected call does not fit a closure.
type Breaker struct {
	name        string
	threshold   int
	cooldown    time.Duration
	probeBudget int

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	probes   int
	probeOKs int
}

// NewBreaker creates a [Breaker] from cfg, applying defaults to zero fields.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.ProbeBudget <= 0 {
		cfg.ProbeBudget = 2
	}
	return &Breaker{
		name:        cfg.Name,
		threshold:   cfg.Threshold,
		cooldown:    cfg.Cooldown,
		probeBudget: cfg.ProbeBudget,
	}
}

// Allow reports whether a call may proceed right now. A nil return means the
// caller must follow up with exactly one [Breaker.Record].
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if time.Since(b.openedAt) < b.cooldown {
			return ErrBreakerOpen
		}
		b.state = BreakerProbing
		b.probes = 0
		b.probeOKs = 0
		slog.Info("breaker probing after cooldown", "name", b.name)

	case BreakerProbing:
		if b.probes >= b.probeBudget {
			return ErrBreakerOpen
		}
	}

	if b.state == BreakerProbing {
		b.probes++
	}
	return nil
}

// Record reports the outcome of a call previously admitted by
// [Breaker.Allow].
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.openedAt = time.Now()
		if b.state == BreakerProbing {
			b.state = BreakerOpen
			b.failures = b.threshold
			slog.Warn("breaker re-opened by failed probe", "name", b.name)
			return
		}
		b.failures++
		if b.failures >= b.threshold {
			b.state = BreakerOpen
			slog.Warn("breaker opened",
				"name", b.name,
				"consecutive_failures", b.failures)
		}
		return
	}

	if b.state == BreakerProbing {
		b.probeOKs++
		if b.probeOKs >= b.probeBudget {
			b.state = BreakerClosed
			b.failures = 0
			slog.Info("breaker closed after successful probes", "name", b.name)
		}
		return
	}
	b.failures = 0
}

// Do runs fn through the breaker. If the breaker rejects the call, fn is not
// invoked and [ErrBreakerOpen] is returned. Context cancellation before the
// call counts as a rejection, not a provider failure.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn(ctx)
	if errors.Is(err, context.Canceled) {
		// Caller walked away; don't count it against the provider.
		b.Record(nil)
		return err
	}
	b.Record(err)
	return err
}

// State returns the breaker's current state. An open breaker whose cooldown
// has elapsed reports [BreakerProbing]; the transition itself happens on the
// next admitted call.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && time.Since(b.openedAt) >= b.cooldown {
		return BreakerProbing
	}
	return b.state
}

// Reset forces the breaker closed and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures = 0
	b.probes = 0
	b.probeOKs = 0
}
