package tts

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

func TestRemoteSynthesizerStreamsBinaryChunks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "closing")

		var req map[string]interface{}
		if err := wsjson.Read(r.Context(), conn, &req); err != nil {
			return
		}

		conn.Write(r.Context(), websocket.MessageBinary, []byte{1, 0, 2, 0})
		conn.Write(r.Context(), websocket.MessageBinary, []byte{3, 0})
		conn.Write(r.Context(), websocket.MessageText, []byte("EOS"))
	}))
	defer server.Close()

	r := NewRemoteSynthesizer("test-key", strings.TrimPrefix(server.URL, "http://"), 16000)
	buf, err := r.Synthesize("hello", "v1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() != 3 {
		t.Fatalf("expected 3 samples from 6 bytes, got %d", buf.Len())
	}
	r.Close()
}

func TestRemoteSynthesizerPropagatesError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "closing")

		var req map[string]interface{}
		if err := wsjson.Read(r.Context(), conn, &req); err != nil {
			return
		}
		conn.Write(r.Context(), websocket.MessageText, []byte("ERR:voice not found"))
	}))
	defer server.Close()

	r := NewRemoteSynthesizer("test-key", strings.TrimPrefix(server.URL, "http://"), 16000)
	_, err := r.Synthesize("hello", "missing-voice")
	if err == nil {
		t.Fatalf("expected error from remote synthesizer")
	}
}
