package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/memoradio/memo-agent/pkg/audio"
)

func TestNewCreatesSessionDirectory(t *testing.T) {
	tmp := t.TempDir()
	r, err := New(tmp, 16000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer r.Close()

	if _, err := os.Stat(r.Dir()); err != nil {
		t.Fatalf("expected session directory to exist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(r.Dir(), "raw_input.wav")); err != nil {
		t.Fatalf("expected raw_input.wav to exist: %v", err)
	}
}

func TestRecordUtteranceAndTTSWriteSequencedFiles(t *testing.T) {
	tmp := t.TempDir()
	r, err := New(tmp, 16000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer r.Close()

	buf := audio.NewBuffer(16000)
	buf.Append([]int16{1, 2, 3})

	path1, err := r.RecordUtterance(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path2, err := r.RecordUtterance(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path1 == path2 {
		t.Errorf("expected distinct utterance paths, got %q twice", path1)
	}

	ttsPath, err := r.RecordTTS(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(ttsPath); err != nil {
		t.Fatalf("expected tts file to exist: %v", err)
	}
}

func TestLogEventFlushesOrderedEvents(t *testing.T) {
	tmp := t.TempDir()
	r, err := New(tmp, 16000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer r.Close()

	if err := r.LogEvent("speech_start", nil, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.LogEvent("speech_end", map[string]interface{}{"duration_ms": 500}, "utterance_1.wav"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(r.Dir(), "session_log.json"))
	if err != nil {
		t.Fatalf("unexpected error reading log: %v", err)
	}
	var parsed struct {
		Events []Event `json:"events"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unexpected error unmarshaling log: %v", err)
	}
	if len(parsed.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(parsed.Events))
	}
	if parsed.Events[0].EventType != "speech_start" || parsed.Events[1].EventType != "speech_end" {
		t.Errorf("unexpected event ordering: %+v", parsed.Events)
	}
	if parsed.Events[1].TimestampMS < parsed.Events[0].TimestampMS {
		t.Errorf("expected non-decreasing timestamps")
	}
}
