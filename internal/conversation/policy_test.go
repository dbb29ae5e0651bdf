package conversation

import (
	"testing"
	"time"

	"github.com/voxloop/voxloop/internal/config"
)

func TestResolvePolicyTopLevel(t *testing.T) {
	t.Parallel()
	cfg := config.ConversationConfig{
		SettleDelay:            800 * time.Millisecond,
		SpontaneousSettleDelay: 1200 * time.Millisecond,
		CaptureInitRetries:     3,
	}

	p := ResolvePolicy(cfg, "linux")
	if p.SettleDelay != 800*time.Millisecond || p.CaptureInitRetries != 3 {
		t.Errorf("policy = %+v, want top-level values", p)
	}
	if p.SpontaneousSettleDelay != 1200*time.Millisecond {
		t.Errorf("SpontaneousSettleDelay = %v, want 1.2s", p.SpontaneousSettleDelay)
	}
}

func TestResolvePolicyPlatformOverride(t *testing.T) {
	t.Parallel()
	cfg := config.ConversationConfig{
		SettleDelay:            800 * time.Millisecond,
		SpontaneousSettleDelay: 1200 * time.Millisecond,
		CaptureInitRetries:     3,
		Platforms: map[string]config.PlatformOverrides{
			"android": {
				SettleDelay:            1200 * time.Millisecond,
				SpontaneousSettleDelay: 2 * time.Second,
			},
		},
	}

	p := ResolvePolicy(cfg, "android")
	if p.SettleDelay != 1200*time.Millisecond {
		t.Errorf("SettleDelay = %v, want override", p.SettleDelay)
	}
	if p.SpontaneousSettleDelay != 2*time.Second {
		t.Errorf("SpontaneousSettleDelay = %v, want override", p.SpontaneousSettleDelay)
	}
	if p.CaptureInitRetries != 3 {
		t.Errorf("CaptureInitRetries = %d, want top-level fallback", p.CaptureInitRetries)
	}
}
