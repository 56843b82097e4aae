// Package stt hides the concrete speech-to-text vendor behind one
// operation, mirroring the shape of pkg/llm.Client: a single Transcribe
// call whose wire format is vendor-specific but whose result is always a
// text/confidence pair the router's transcript gate can act on (spec
// §4.1/§4.5).
package stt

import (
	"context"
	"errors"
)

// Result is the output of Transcribe. Confidence is in [0,1]; vendors that
// don't report one (plain Whisper-style transcription endpoints) return
// 1.0, matching the teacher's original behavior of trusting whatever text
// came back.
type Result struct {
	Text       string
	Confidence float64
}

// Client hides the concrete STT wire format behind one operation.
type Client interface {
	Transcribe(ctx context.Context, pcm []byte, sampleRate int, language string) (Result, error)
	Name() string
}

// ErrTransport covers connection/DNS/timeout failures (spec §7
// AudioUnavailable/STTFailure transport causes).
var ErrTransport = errors.New("stt: transport error")
