package tts

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/memoradio/memo-agent/pkg/audio"
)

// Synthesizer turns text into audio at a caller-chosen sample rate. Worker,
// the one-shot subprocess fallback, and the remote websocket backend
// (remote.go) implement it; Engine consumes it as primary and fallback.
type Synthesizer interface {
	Synthesize(text, voice string) (*audio.Buffer, error)
}

type synthRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// Worker is the persistent synthesizer subprocess of spec §4.7: launched
// once at startup, communicating over a request stream (one JSON line per
// phrase) and a raw-PCM response stream. Access is serialized by a mutex
// (spec §5: "the persistent TTS worker runs as an external process with a
// pair of pipes; access from the orchestrator is serialized by a mutex").
// Grounded on the teacher's persistent-connection pattern in
// pkg/providers/tts/lokutor.go (getConn/mutex), adapted from a websocket
// connection to an os/exec subprocess pipe pair per the spec's contract.
type Worker struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader

	sampleRate int
}

// NewWorker launches path with args as a persistent subprocess.
func NewWorker(path string, args []string, sampleRate int) (*Worker, error) {
	cmd := exec.Command(path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("tts worker: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("tts worker: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("tts worker: start: %w", err)
	}
	return &Worker{
		cmd:        cmd,
		stdin:      stdin,
		stdout:     bufio.NewReader(stdout),
		sampleRate: sampleRate,
	}, nil
}

// Synthesize sends one request line and reads back a length-prefixed raw
// PCM response: a 4-byte little-endian sample count followed by that many
// int16 samples.
func (w *Worker) Synthesize(text, voice string) (*audio.Buffer, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	line, err := json.Marshal(synthRequest{Text: text, Voice: voice})
	if err != nil {
		return nil, fmt.Errorf("tts worker: marshal request: %w", err)
	}
	if _, err := w.stdin.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("tts worker: write request: %w", err)
	}

	var sampleCount uint32
	if err := binary.Read(w.stdout, binary.LittleEndian, &sampleCount); err != nil {
		return nil, fmt.Errorf("tts worker: read length header: %w", err)
	}
	pcm := make([]byte, int(sampleCount)*2)
	if _, err := io.ReadFull(w.stdout, pcm); err != nil {
		return nil, fmt.Errorf("tts worker: read pcm: %w", err)
	}

	frame := audio.FrameFromPCM(pcm, w.sampleRate)
	buf := audio.NewBuffer(w.sampleRate)
	buf.AppendFrame(frame)
	return buf, nil
}

// Close terminates the subprocess, closing stdin first so well-behaved
// workers exit on EOF.
func (w *Worker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stdin.Close()
	return w.cmd.Wait()
}

// oneShotSynthesizer is the per-call subprocess fallback of spec §4.7,
// used when the persistent worker is unavailable: one request in, the
// entire stdout consumed as raw PCM, process exits.
type oneShotSynthesizer struct {
	path       string
	args       []string
	sampleRate int
}

// NewOneShotSynthesizer builds the per-call subprocess fallback.
func NewOneShotSynthesizer(path string, args []string, sampleRate int) Synthesizer {
	return &oneShotSynthesizer{path: path, args: args, sampleRate: sampleRate}
}

func (s *oneShotSynthesizer) Synthesize(text, voice string) (*audio.Buffer, error) {
	cmd := exec.Command(s.path, s.args...)
	line, err := json.Marshal(synthRequest{Text: text, Voice: voice})
	if err != nil {
		return nil, fmt.Errorf("tts one-shot: marshal request: %w", err)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("tts one-shot: stdin pipe: %w", err)
	}
	var stdout bufio.Reader
	outPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("tts one-shot: stdout pipe: %w", err)
	}
	stdout.Reset(outPipe)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("tts one-shot: start: %w", err)
	}
	if _, err := stdin.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("tts one-shot: write request: %w", err)
	}
	stdin.Close()

	pcm, err := io.ReadAll(&stdout)
	if err != nil {
		return nil, fmt.Errorf("tts one-shot: read pcm: %w", err)
	}
	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("tts one-shot: process exit: %w", err)
	}

	frame := audio.FrameFromPCM(pcm, s.sampleRate)
	buf := audio.NewBuffer(s.sampleRate)
	buf.AppendFrame(frame)
	return buf, nil
}
