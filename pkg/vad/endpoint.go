// Package vad implements the frame-level voice-activity endpointer: a
// hysteresis state machine over per-frame RMS energy that turns a
// continuous frame stream into utterance boundaries.
package vad

import (
	"time"

	"github.com/memoradio/memo-agent/pkg/audio"
)

// State is the endpointer's internal hysteresis state, distinct from the
// pipeline's turn state.
type State int

const (
	Silence State = iota
	Speech
	Hangover
)

func (s State) String() string {
	switch s {
	case Silence:
		return "silence"
	case Speech:
		return "speech"
	case Hangover:
		return "hangover"
	default:
		return "unknown"
	}
}

// EventType is what process() reports back to the orchestrator.
type EventType int

const (
	None EventType = iota
	SpeechStart
	SpeechEnd
)

// Event carries an endpointer transition plus its timestamp.
type Event struct {
	Type      EventType
	Timestamp time.Time
}

// Options configures the endpointer per spec §4.1 and the `vad` section of
// the external configuration contract (§6).
type Options struct {
	SampleRate int

	// StartThreshold is the RMS level (normalized [0,1]) above which frames
	// count toward confirming speech. EndThreshold defaults to half of it
	// when left zero.
	StartThreshold float64
	EndThreshold   float64

	// StartFramesRequired is the debounce: consecutive above-threshold
	// frames needed before SpeechStart fires.
	StartFramesRequired int

	PauseToleranceMS       int
	EndOfUtteranceSilenceMS int
	HangoverMS              int
	MinSpeechMS             int

	// PreRollMS is how much audio precedes SpeechStart in the emitted
	// segment, pulled from the ring buffer.
	PreRollMS int

	// AdaptiveFloor enables the exponential-moving-average noise floor
	// described in §4.1. The zero value leaves it disabled; DefaultOptions
	// enables it.
	AdaptiveFloor     bool
	MinFloor          float64
	MaxFloor          float64
	FloorMultiplier   float64
}

// DefaultOptions returns the spec's suggested defaults.
func DefaultOptions() Options {
	return Options{
		SampleRate:              16000,
		StartThreshold:          0.02,
		StartFramesRequired:     2,
		PauseToleranceMS:        300,
		EndOfUtteranceSilenceMS: 700,
		HangoverMS:              300,
		MinSpeechMS:             300,
		PreRollMS:               200,
		AdaptiveFloor:           true,
		MinFloor:                0.002,
		MaxFloor:                0.05,
		FloorMultiplier:         2.0,
	}
}

// Endpointer is the frame-to-utterance state machine of §4.1. It is never
// expected to fail: malformed frames simply carry RMS 0 and are treated as
// silence.
type Endpointer struct {
	opts Options

	state State

	consecutiveAbove int
	silenceMS        int64
	hangoverStart    time.Time

	segment *audio.Buffer
	preroll *audio.Ring

	floor float64
}

// New creates an endpointer at the given options. The pre-roll ring is
// sized from opts.PreRollMS.
func New(opts Options) *Endpointer {
	if opts.EndThreshold == 0 {
		opts.EndThreshold = opts.StartThreshold * 0.5
	}
	if opts.StartFramesRequired <= 0 {
		opts.StartFramesRequired = 2
	}
	preRollSamples := opts.SampleRate * opts.PreRollMS / 1000
	return &Endpointer{
		opts:    opts,
		state:   Silence,
		segment: audio.NewBuffer(opts.SampleRate),
		preroll: audio.NewRing(preRollSamples),
		floor:   opts.StartThreshold,
	}
}

// effectiveStartThreshold folds the adaptive noise floor into the
// configured threshold per §4.1: "effective start threshold = max(configured
// threshold, floor × multiplier)".
func (e *Endpointer) effectiveStartThreshold() float64 {
	if !e.opts.AdaptiveFloor {
		return e.opts.StartThreshold
	}
	adaptive := e.floor * e.opts.FloorMultiplier
	if adaptive > e.opts.StartThreshold {
		return adaptive
	}
	return e.opts.StartThreshold
}

func (e *Endpointer) updateFloor(rms float64) {
	if !e.opts.AdaptiveFloor {
		return
	}
	if rms >= e.floor*2 {
		return
	}
	const alpha = 0.01
	e.floor = e.floor*(1-alpha) + rms*alpha
	if e.floor < e.opts.MinFloor {
		e.floor = e.opts.MinFloor
	}
	if e.floor > e.opts.MaxFloor {
		e.floor = e.opts.MaxFloor
	}
}

// Process runs one frame through the hysteresis table of §4.1 and returns
// the resulting event, if any. Frames are written to the pre-roll ring only
// while in Silence; they are added to the segment only while
// Speech/Hangover-confirmed. Silence in Speech is measured by summing frame
// durations, not by wall-clock time.
func (e *Endpointer) Process(f audio.Frame) Event {
	now := time.Now()
	rms := f.RMS()

	switch e.state {
	case Silence:
		e.preroll.Write(f.Samples)
		if rms > e.effectiveStartThreshold() {
			e.consecutiveAbove++
			if e.consecutiveAbove >= e.opts.StartFramesRequired {
				e.state = Speech
				e.consecutiveAbove = 0
				e.silenceMS = 0
				e.segment.Reset()
				e.segment.Append(e.preroll.Snapshot())
				e.segment.AppendFrame(f)
				return Event{Type: SpeechStart, Timestamp: now}
			}
			return Event{Type: None, Timestamp: now}
		}
		e.consecutiveAbove = 0
		e.updateFloor(rms)
		return Event{Type: None, Timestamp: now}

	case Speech:
		if rms > e.opts.EndThreshold {
			e.segment.AppendFrame(f)
			e.silenceMS = 0
			return Event{Type: None, Timestamp: now}
		}

		e.silenceMS += f.Duration().Milliseconds()
		cumulativeSilenceMS := e.silenceMS

		if cumulativeSilenceMS >= int64(e.opts.EndOfUtteranceSilenceMS) {
			if e.segment.DurationMS() < e.opts.MinSpeechMS {
				e.reset()
				return Event{Type: None, Timestamp: now}
			}
			e.state = Hangover
			e.hangoverStart = now
			return Event{Type: SpeechEnd, Timestamp: now}
		}

		if cumulativeSilenceMS < int64(e.opts.PauseToleranceMS) {
			e.segment.AppendFrame(f)
		}
		return Event{Type: None, Timestamp: now}

	case Hangover:
		if rms > e.opts.EndThreshold {
			e.state = Speech
			e.silenceMS = 0
			e.segment.AppendFrame(f)
			return Event{Type: None, Timestamp: now}
		}
		if now.Sub(e.hangoverStart).Milliseconds() >= int64(e.opts.HangoverMS) {
			e.reset()
		}
		return Event{Type: None, Timestamp: now}
	}

	return Event{Type: None, Timestamp: now}
}

// CurrentSegment returns a read-only view of the accumulated audio.
func (e *Endpointer) CurrentSegment() *audio.Buffer {
	return e.segment
}

// FinalizeSegment atomically takes ownership of the accumulated buffer and
// resets it, per §4.1.
func (e *Endpointer) FinalizeSegment() *audio.Buffer {
	taken := e.segment.Take()
	e.state = Silence
	e.consecutiveAbove = 0
	e.silenceMS = 0
	return taken
}

// Reset drops the segment and returns to Silence.
func (e *Endpointer) Reset() {
	e.reset()
}

func (e *Endpointer) reset() {
	e.state = Silence
	e.consecutiveAbove = 0
	e.silenceMS = 0
	e.segment.Reset()
}

// StateNow reports the endpointer's current hysteresis state, mainly for
// logging and tests.
func (e *Endpointer) StateNow() State {
	return e.state
}
