// Package tts implements the synthesis engine of spec §4.7: a persistent
// synthesizer worker with per-call subprocess fallback, an LRU phrase
// cache, and VOX pre-roll/end tones.
package tts

import (
	"errors"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/memoradio/memo-agent/pkg/audio"
)

// ErrTTSFailed is returned when both the primary synthesizer and the
// one-shot fallback fail, matching spec §7's TTSFailure taxonomy entry.
var ErrTTSFailed = errors.New("tts: synthesis failed")

// cacheKeyMaxChars is the longest phrase text the LRU cache holds; longer
// phrases are synthesized on every call.
const cacheKeyMaxChars = 50

// Options configures the engine per the `tts` section of spec §6.
type Options struct {
	SampleRate          int
	VoxPrerollMS        int
	VoxPrerollAmplitude float64
	VoxEndToneMS        int
	VoxEndToneAmplitude float64
	VoxEndToneFreqHz    float64
	OutputGain          float64
	CacheSize           int
}

// DefaultOptions mirrors the teacher's generally-conservative defaults,
// adapted to the VOX contract.
func DefaultOptions() Options {
	return Options{
		SampleRate:          16000,
		VoxPrerollMS:        150,
		VoxPrerollAmplitude: 0.3,
		VoxEndToneMS:        0,
		VoxEndToneAmplitude: 0.2,
		VoxEndToneFreqHz:    880,
		OutputGain:          1.0,
		CacheSize:           64,
	}
}

// Engine is the TTS engine of spec §4.7.
type Engine struct {
	opts     Options
	primary  Synthesizer
	fallback Synthesizer

	mu    sync.Mutex
	cache *lru.Cache[string, *audio.Buffer]

	preroll *audio.Buffer
	endTone *audio.Buffer
}

// NewEngine builds an engine. primary is the persistent worker; fallback
// (may be nil) is consulted when primary fails or is nil, per spec §4.7's
// "if the worker is unavailable, a per-call subprocess fallback is used."
func NewEngine(opts Options, primary, fallback Synthesizer) *Engine {
	size := opts.CacheSize
	if size <= 0 {
		size = 64
	}
	cache, _ := lru.New[string, *audio.Buffer](size)

	return &Engine{
		opts:     opts,
		primary:  primary,
		fallback: fallback,
		cache:    cache,
		preroll:  generateTone(opts.SampleRate, 440, opts.VoxPrerollMS, opts.VoxPrerollAmplitude),
		endTone:  generateTone(opts.SampleRate, opts.VoxEndToneFreqHz, opts.VoxEndToneMS, opts.VoxEndToneAmplitude),
	}
}

func cacheKey(text, voice string) string {
	if len(text) > cacheKeyMaxChars {
		text = text[:cacheKeyMaxChars]
	}
	return voice + "\x00" + text
}

// Synth implements the synth(text) operation of spec §4.7: resample to the
// system rate, gain-adjust and clamp, and cache by phrase text.
func (e *Engine) Synth(text, voice string) (*audio.Buffer, error) {
	key := cacheKey(text, voice)
	cacheable := len(text) <= cacheKeyMaxChars

	e.mu.Lock()
	if cached, ok := e.cache.Get(key); ok && cacheable {
		e.mu.Unlock()
		return cached.Clone(), nil
	}
	e.mu.Unlock()

	buf, err := e.synthesizeRaw(text, voice)
	if err != nil {
		return nil, err
	}

	resampled := audio.NewBuffer(e.opts.SampleRate)
	resampled.Append(audio.Resample(buf.Samples, buf.SampleRate, e.opts.SampleRate))
	applyGain(resampled.Samples, e.opts.OutputGain)

	if cacheable {
		e.mu.Lock()
		e.cache.Add(key, resampled)
		e.mu.Unlock()
	}

	return resampled.Clone(), nil
}

func (e *Engine) synthesizeRaw(text, voice string) (*audio.Buffer, error) {
	if e.primary != nil {
		if buf, err := e.primary.Synthesize(text, voice); err == nil {
			return buf, nil
		}
	}
	if e.fallback != nil {
		return e.fallback.Synthesize(text, voice)
	}
	return nil, ErrTTSFailed
}

// SynthVox implements synth_vox(text): pre-roll tone concatenated with
// synthesis and, optionally, an end tone appended after it, so receiving
// radios open squelch before the first word and (per `tx.enable_end_chirp`)
// hear a clear sign-off tone after the last one. startChirp/endChirp gate
// `tx.enable_start_chirp`/`tx.enable_end_chirp` (spec §6).
func (e *Engine) SynthVox(text, voice string, startChirp, endChirp bool) (*audio.Buffer, error) {
	speech, err := e.Synth(text, voice)
	if err != nil {
		return nil, err
	}
	out := speech
	if startChirp {
		out = audio.Concat(e.preroll, out)
	}
	if endChirp {
		out = audio.Concat(out, e.endTone)
	}
	return out, nil
}

// GetPrerollBuffer returns the configured VOX pre-roll tone.
func (e *Engine) GetPrerollBuffer() *audio.Buffer {
	return e.preroll.Clone()
}

// GetEndToneBuffer returns the configured end tone.
func (e *Engine) GetEndToneBuffer() *audio.Buffer {
	return e.endTone.Clone()
}

// Preload warms the cache for a set of known phrases (e.g. standard radio
// acknowledgements), so the first live use of each is a cache hit.
func (e *Engine) Preload(phrases []string, voice string) error {
	for _, p := range phrases {
		if _, err := e.Synth(p, voice); err != nil {
			return err
		}
	}
	return nil
}

// applyGain scales samples in place by gain, clamping to the int16 range.
func applyGain(samples []int16, gain float64) {
	if gain == 1.0 {
		return
	}
	for i, s := range samples {
		v := float64(s) * gain
		switch {
		case v > 32767:
			v = 32767
		case v < -32768:
			v = -32768
		}
		samples[i] = int16(v)
	}
}
