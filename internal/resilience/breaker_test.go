package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestBreakerOpensAfterThreshold(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{Name: "test", Threshold: 3, Cooldown: time.Hour})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := b.Do(ctx, func(context.Context) error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: err = %v, want errBoom", i, err)
		}
	}
	if got := b.State(); got != BreakerOpen {
		t.Fatalf("state = %v, want open", got)
	}

	called := false
	err := b.Do(ctx, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("err = %v, want ErrBreakerOpen", err)
	}
	if called {
		t.Error("fn was called while breaker open")
	}
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{Threshold: 2, Cooldown: time.Hour})
	ctx := context.Background()

	_ = b.Do(ctx, func(context.Context) error { return errBoom })
	_ = b.Do(ctx, func(context.Context) error { return nil })
	_ = b.Do(ctx, func(context.Context) error { return errBoom })

	if got := b.State(); got != BreakerClosed {
		t.Errorf("state = %v, want closed", got)
	}
}

func TestBreakerProbesAfterCooldown(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{Threshold: 1, Cooldown: 10 * time.Millisecond, ProbeBudget: 2})
	ctx := context.Background()

	_ = b.Do(ctx, func(context.Context) error { return errBoom })
	if got := b.State(); got != BreakerOpen {
		t.Fatalf("state = %v, want open", got)
	}

	time.Sleep(20 * time.Millisecond)
	if got := b.State(); got != BreakerProbing {
		t.Fatalf("state = %v, want probing", got)
	}

	// Two successful probes close the breaker.
	for i := 0; i < 2; i++ {
		if err := b.Do(ctx, func(context.Context) error { return nil }); err != nil {
			t.Fatalf("probe %d: err = %v", i, err)
		}
	}
	if got := b.State(); got != BreakerClosed {
		t.Errorf("state = %v, want closed", got)
	}
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{Threshold: 1, Cooldown: 10 * time.Millisecond})
	ctx := context.Background()

	_ = b.Do(ctx, func(context.Context) error { return errBoom })
	time.Sleep(20 * time.Millisecond)

	if err := b.Do(ctx, func(context.Context) error { return errBoom }); !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want errBoom", err)
	}
	if got := b.State(); got != BreakerOpen {
		t.Errorf("state = %v, want open", got)
	}
}

func TestBreakerIgnoresContextCanceled(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{Threshold: 1, Cooldown: time.Hour})
	ctx := context.Background()

	_ = b.Do(ctx, func(context.Context) error { return context.Canceled })
	if got := b.State(); got != BreakerClosed {
		t.Errorf("state = %v, want closed after canceled call", got)
	}
}

func TestBreakerReset(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{Threshold: 1, Cooldown: time.Hour})
	_ = b.Do(context.Background(), func(context.Context) error { return errBoom })
	b.Reset()
	if got := b.State(); got != BreakerClosed {
		t.Errorf("state = %v, want closed after reset", got)
	}
}
