package capture

import (
	"context"
	"errors"
	"testing"

	audiomock "github.com/voxloop/voxloop/pkg/audio/mock"
	"github.com/voxloop/voxloop/pkg/voice/stt"
	sttmock "github.com/voxloop/voxloop/pkg/voice/stt/mock"
)

func TestProbeSucceeds(t *testing.T) {
	t.Parallel()

	dev := &audiomock.Device{OpenSourceResult: audiomock.NewSource(1)}
	prov := &sttmock.Provider{}

	err := Probe(context.Background(), dev, prov, stt.StreamConfig{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if dev.CallCountOpenSource != 1 {
		t.Errorf("OpenSource calls = %d, want 1", dev.CallCountOpenSource)
	}
	if prov.CallCountStartStream != 1 {
		t.Errorf("StartStream calls = %d, want 1", prov.CallCountStartStream)
	}
	if len(prov.Sessions) == 1 && prov.Sessions[0].CallCountClose == 0 {
		t.Error("probe session was not closed")
	}
}

func TestProbeFailsWhenDeviceUnavailable(t *testing.T) {
	t.Parallel()

	devErr := errors.New("no microphone")
	dev := &audiomock.Device{OpenSourceError: devErr}
	prov := &sttmock.Provider{}

	err := Probe(context.Background(), dev, prov, stt.StreamConfig{})
	if !errors.Is(err, devErr) {
		t.Errorf("err = %v, want wrapped device error", err)
	}
}

func TestProbeFailsWhenStreamRejected(t *testing.T) {
	t.Parallel()

	streamErr := errors.New("auth failed")
	dev := &audiomock.Device{OpenSourceResult: audiomock.NewSource(1)}
	prov := &sttmock.Provider{StartStreamError: streamErr}

	err := Probe(context.Background(), dev, prov, stt.StreamConfig{})
	if !errors.Is(err, streamErr) {
		t.Errorf("err = %v, want wrapped stream error", err)
	}
}
