// Package session implements the write-only session recorder of spec §6
// "Session recording": a per-session directory holding the continuous
// input stream, per-utterance and per-synthesis WAV captures, and a
// structured event log.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/memoradio/memo-agent/pkg/audio"
)

// Event is one entry of session_log.json's events[] array.
type Event struct {
	TimestampMS int64                  `json:"timestamp_ms"`
	EventType   string                 `json:"event_type"`
	Data        map[string]interface{} `json:"data,omitempty"`
	AudioPath   string                 `json:"audio_path,omitempty"`
}

// Recorder writes raw_input.wav, utterance_<id>.wav, tts_<id>.wav, and
// session_log.json under <baseDir>/<YYYYmmdd_HHMMSS>/. All writes are
// ordered by wall-clock timestamp relative to session start (spec §5).
type Recorder struct {
	dir   string
	id    string
	start time.Time

	mu           sync.Mutex
	rawWriter    *audio.Writer
	events       []Event
	utteranceSeq int
	ttsSeq       int
}

// New creates a new session directory under baseDir, timestamped at the
// moment of creation, and opens raw_input.wav for incremental writes. Each
// session is also assigned a random ID, recorded in session_log.json,
// distinguishing recordings that land in the same directory across
// machines or clock adjustments from the timestamp alone.
func New(baseDir string, sampleRate int) (*Recorder, error) {
	start := time.Now()
	dir := filepath.Join(baseDir, start.Format("20060102_150405"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("session recorder: create dir: %w", err)
	}

	rawWriter, err := audio.CreateWriter(filepath.Join(dir, "raw_input.wav"), sampleRate)
	if err != nil {
		return nil, fmt.Errorf("session recorder: create raw_input.wav: %w", err)
	}

	return &Recorder{dir: dir, id: uuid.NewString(), start: start, rawWriter: rawWriter}, nil
}

// Dir returns the session directory path.
func (r *Recorder) Dir() string {
	return r.dir
}

// ID returns this session's random identifier.
func (r *Recorder) ID() string {
	return r.id
}

// AppendRawInput appends one frame of microphone/receiver audio to
// raw_input.wav.
func (r *Recorder) AppendRawInput(f audio.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rawWriter.Write(f.PCM())
}

// RecordUtterance writes a finalized utterance buffer to
// utterance_<id>.wav and returns the file's path.
func (r *Recorder) RecordUtterance(buf *audio.Buffer) (string, error) {
	r.mu.Lock()
	r.utteranceSeq++
	id := r.utteranceSeq
	r.mu.Unlock()

	path := filepath.Join(r.dir, fmt.Sprintf("utterance_%d.wav", id))
	if err := audio.WriteFile(path, buf); err != nil {
		return "", fmt.Errorf("session recorder: write utterance: %w", err)
	}
	return path, nil
}

// RecordTTS writes a synthesized response buffer to tts_<id>.wav and
// returns the file's path.
func (r *Recorder) RecordTTS(buf *audio.Buffer) (string, error) {
	r.mu.Lock()
	r.ttsSeq++
	id := r.ttsSeq
	r.mu.Unlock()

	path := filepath.Join(r.dir, fmt.Sprintf("tts_%d.wav", id))
	if err := audio.WriteFile(path, buf); err != nil {
		return "", fmt.Errorf("session recorder: write tts: %w", err)
	}
	return path, nil
}

// LogEvent appends an event to the session log and flushes
// session_log.json, keyed to wall-clock milliseconds since session start.
func (r *Recorder) LogEvent(eventType string, data map[string]interface{}, audioPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, Event{
		TimestampMS: time.Since(r.start).Milliseconds(),
		EventType:   eventType,
		Data:        data,
		AudioPath:   audioPath,
	})
	return r.flushLocked()
}

func (r *Recorder) flushLocked() error {
	f, err := os.Create(filepath.Join(r.dir, "session_log.json"))
	if err != nil {
		return fmt.Errorf("session recorder: create session_log.json: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		SessionID string  `json:"session_id"`
		Events    []Event `json:"events"`
	}{SessionID: r.id, Events: r.events})
}

// Close finalizes raw_input.wav's header.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rawWriter.Close()
}
