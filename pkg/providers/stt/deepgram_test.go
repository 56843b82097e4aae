package stt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDeepgramSTTTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		resp := map[string]interface{}{
			"results": map[string]interface{}{
				"channels": []map[string]interface{}{
					{
						"alternatives": []map[string]interface{}{
							{"transcript": "deepgram text", "confidence": 0.87},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	s := &DeepgramSTT{apiKey: "test-key", url: server.URL, sampleRate: 16000}
	result, err := s.Transcribe(context.Background(), []byte{0, 0}, 16000, "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "deepgram text" {
		t.Errorf("expected 'deepgram text', got %q", result.Text)
	}
	if result.Confidence != 0.87 {
		t.Errorf("expected confidence 0.87, got %v", result.Confidence)
	}
}

func TestDeepgramSTTNoAlternatives(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"results": map[string]interface{}{"channels": []interface{}{}}})
	}))
	defer server.Close()

	s := &DeepgramSTT{apiKey: "test-key", url: server.URL, sampleRate: 16000}
	result, err := s.Transcribe(context.Background(), []byte{0, 0}, 16000, "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "" {
		t.Errorf("expected empty transcript, got %q", result.Text)
	}
}
