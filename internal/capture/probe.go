package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/voice/stt"
)

// defaultProbeTimeout bounds the whole capability probe.
const defaultProbeTimeout = 3 * time.Second

// Probe checks whether the native streaming strategy can run: the microphone
// must open and the streaming transcription backend must accept a session.
// Both checks run concurrently and everything opened is closed again before
// Probe returns.
func Probe(ctx context.Context, device audio.Device, provider stt.Provider, cfg stt.StreamConfig) error {
	ctx, cancel := context.WithTimeout(ctx, defaultProbeTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		src, err := device.OpenSource(ctx)
		if err != nil {
			return fmt.Errorf("capture probe: open source: %w", err)
		}
		return src.Close()
	})

	g.Go(func() error {
		sess, err := provider.StartStream(ctx, cfg)
		if err != nil {
			return fmt.Errorf("capture probe: start stream: %w", err)
		}
		return sess.Close()
	})

	if err := g.Wait(); err != nil {
		slog.Info("native capture unavailable", "error", err)
		return err
	}
	return nil
}
