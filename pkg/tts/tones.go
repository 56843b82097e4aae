package tts

import (
	"math"

	"github.com/memoradio/memo-agent/pkg/audio"
)

// generateTone produces a sine burst at freqHz of the given duration and
// peak amplitude (0..1), per spec §4.7: "Pre-roll is a sine burst at 440 Hz
// of configured duration and amplitude; end tone is a configurable sine
// burst."
func generateTone(sampleRate int, freqHz float64, durationMS int, amplitude float64) *audio.Buffer {
	buf := audio.NewBuffer(sampleRate)
	if sampleRate <= 0 || durationMS <= 0 {
		return buf
	}
	n := sampleRate * durationMS / 1000
	samples := make([]int16, n)
	peak := amplitude * 32767
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sampleRate)
		samples[i] = int16(peak * math.Sin(2*math.Pi*freqHz*t))
	}
	buf.Append(samples)
	return buf
}
