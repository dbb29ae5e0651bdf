package audio

import (
	"encoding/binary"
	"math"
)

const (
	// silenceRMSThreshold is the root-mean-square energy level (in 16-bit PCM
	// units) below which a frame is considered silent. The maximum possible
	// value for 16-bit audio is 32 767; 300 corresponds to near-silence.
	silenceRMSThreshold = 300.0

	// maxPCM16 is the largest magnitude a 16-bit signed sample can hold.
	maxPCM16 = 32768.0
)

// RMS computes the root-mean-square energy of 16-bit signed little-endian
// PCM data. A trailing odd byte is ignored. Returns 0 for empty input.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n*2; i += 2 {
		s := int16(binary.LittleEndian.Uint16(pcm[i : i+2]))
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(n))
}

// Level maps the RMS energy of pcm onto the normalized [0, 1] range used for
// UI level meters. The mapping is linear in RMS; values saturate at 1.
func Level(pcm []byte) float64 {
	l := RMS(pcm) / maxPCM16
	if l > 1 {
		return 1
	}
	return l
}

// IsSilence reports whether pcm falls below the near-silence energy
// threshold. Used by the record-and-upload capture strategy to gate clip
// boundaries and by silence timeouts.
func IsSilence(pcm []byte) bool {
	return RMS(pcm) < silenceRMSThreshold
}
