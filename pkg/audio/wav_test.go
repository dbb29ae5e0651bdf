package audio

import (
	"encoding/binary"
	"testing"
	"time"
)

func TestEncodeWAV(t *testing.T) {
	t.Parallel()

	pcm := make([]byte, 320) // 10 ms at 16 kHz mono
	wav := EncodeWAV(pcm, 16000, 1)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("wav length = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatalf("bad RIFF header: %q %q", wav[0:4], wav[8:12])
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 16000 {
		t.Fatalf("sample rate = %d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != 1 {
		t.Fatalf("channels = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Fatalf("data size = %d, want %d", got, len(pcm))
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 32000 {
		t.Fatalf("byte rate = %d, want 32000", got)
	}
}

func TestFrameDuration(t *testing.T) {
	t.Parallel()

	f := Frame{Data: make([]byte, 640), SampleRate: 16000, Channels: 1}
	if got := f.Duration(); got != 20*time.Millisecond {
		t.Fatalf("duration = %v, want 20ms", got)
	}

	var zero Frame
	if got := zero.Duration(); got != 0 {
		t.Fatalf("zero frame duration = %v, want 0", got)
	}
}
