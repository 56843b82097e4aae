package tts

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/memoradio/memo-agent/pkg/audio"
)

// RemoteSynthesizer is an alternate Synthesizer backend talking to a
// hosted synthesis service over a persistent websocket connection,
// adapted from the teacher's pkg/providers/tts/lokutor.go. Selectable via
// config instead of the subprocess worker when a local voice model isn't
// available.
type RemoteSynthesizer struct {
	apiKey     string
	host       string
	sampleRate int

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewRemoteSynthesizer builds a remote backend against host (e.g.
// "api.example.com") authenticating with apiKey.
func NewRemoteSynthesizer(apiKey, host string, sampleRate int) *RemoteSynthesizer {
	return &RemoteSynthesizer{apiKey: apiKey, host: host, sampleRate: sampleRate}
}

func (r *RemoteSynthesizer) getConn(ctx context.Context) (*websocket.Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil {
		return r.conn, nil
	}

	u := url.URL{Scheme: "wss", Host: r.host, Path: "/ws", RawQuery: "api_key=" + r.apiKey}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("tts remote: dial: %w", err)
	}
	r.conn = conn
	return conn, nil
}

// Synthesize implements Synthesizer.
func (r *RemoteSynthesizer) Synthesize(text, voice string) (*audio.Buffer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var pcm []byte
	err := r.streamSynthesize(ctx, text, voice, func(chunk []byte) error {
		pcm = append(pcm, chunk...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	frame := audio.FrameFromPCM(pcm, r.sampleRate)
	buf := audio.NewBuffer(r.sampleRate)
	buf.AppendFrame(frame)
	return buf, nil
}

func (r *RemoteSynthesizer) streamSynthesize(ctx context.Context, text, voice string, onChunk func([]byte) error) error {
	conn, err := r.getConn(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	req := map[string]interface{}{
		"text":  text,
		"voice": voice,
	}
	if err := wsjson.Write(ctx, conn, req); err != nil {
		r.conn = nil
		conn.Close(websocket.StatusAbnormalClosure, "failed to write json")
		return fmt.Errorf("tts remote: send request: %w", err)
	}

	for {
		messageType, payload, err := conn.Read(ctx)
		if err != nil {
			r.conn = nil
			conn.Close(websocket.StatusAbnormalClosure, "failed to read")
			return fmt.Errorf("tts remote: read: %w", err)
		}

		switch messageType {
		case websocket.MessageBinary:
			if err := onChunk(payload); err != nil {
				return err
			}
		case websocket.MessageText:
			msg := string(payload)
			if msg == "EOS" {
				return nil
			}
			if len(msg) >= 4 && msg[:4] == "ERR:" {
				return fmt.Errorf("tts remote: %s", msg)
			}
		}
	}
}

// Close releases the underlying connection.
func (r *RemoteSynthesizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil {
		err := r.conn.Close(websocket.StatusNormalClosure, "")
		r.conn = nil
		return err
	}
	return nil
}
