package stt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAISTTTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		resp := struct {
			Text string `json:"text"`
		}{
			Text: "transcribed text",
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	s := &OpenAISTT{
		apiKey:     "test-key",
		url:        server.URL,
		model:      "whisper-1",
		sampleRate: 16000,
	}

	result, err := s.Transcribe(context.Background(), []byte{0, 0, 0, 0}, 16000, "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "transcribed text" {
		t.Errorf("expected 'transcribed text', got %q", result.Text)
	}
	if result.Confidence != 1.0 {
		t.Errorf("expected confidence 1.0, got %v", result.Confidence)
	}
	if s.Name() != "openai-stt:whisper-1" {
		t.Errorf("unexpected name %q", s.Name())
	}
}
