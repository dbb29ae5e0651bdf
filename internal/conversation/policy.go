package conversation

import (
	"time"

	"github.com/voxloop/voxloop/internal/config"
)

// Policy holds the loop-timing knobs that vary by runtime platform. Platform
// quirks (slow audio routing on some mobile stacks, echoey built-in
// speakers) are expressed as data here rather than branches in the
// controller.
type Policy struct {
	// SettleDelay is how long to wait after playback before listening
	// again, letting room audio die down.
	SettleDelay time.Duration

	// SpontaneousSettleDelay replaces SettleDelay after the recognizer
	// stream ended on its own.
	SpontaneousSettleDelay time.Duration

	// CaptureInitRetries is how many times capture start-up is retried.
	CaptureInitRetries int
}

// ResolvePolicy merges a platform's overrides from cfg over the top-level
// values. Unknown platforms get the top-level values unchanged.
func ResolvePolicy(cfg config.ConversationConfig, platform string) Policy {
	p := Policy{
		SettleDelay:            cfg.SettleDelay,
		SpontaneousSettleDelay: cfg.SpontaneousSettleDelay,
		CaptureInitRetries:     cfg.CaptureInitRetries,
	}
	if o, ok := cfg.Platforms[platform]; ok {
		if o.SettleDelay > 0 {
			p.SettleDelay = o.SettleDelay
		}
		if o.SpontaneousSettleDelay > 0 {
			p.SpontaneousSettleDelay = o.SpontaneousSettleDelay
		}
		if o.CaptureInitRetries > 0 {
			p.CaptureInitRetries = o.CaptureInitRetries
		}
	}
	return p
}
