package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/memoradio/memo-agent/pkg/stt"
)

// DeepgramSTT streams raw PCM to Deepgram's prerecorded /v1/listen
// endpoint. Unlike the Whisper-style vendors, Deepgram reports a
// per-alternative confidence score, which is threaded through to the
// router's transcript gate.
type DeepgramSTT struct {
	apiKey     string
	url        string
	sampleRate int
}

func NewDeepgramSTT(apiKey string) *DeepgramSTT {
	return &DeepgramSTT{
		apiKey:     apiKey,
		url:        "https://api.deepgram.com/v1/listen",
		sampleRate: 16000,
	}
}

func (s *DeepgramSTT) Name() string {
	return "deepgram-stt"
}

func (s *DeepgramSTT) Transcribe(ctx context.Context, pcm []byte, sampleRate int, language string) (stt.Result, error) {
	if sampleRate <= 0 {
		sampleRate = s.sampleRate
	}

	u, err := url.Parse(s.url)
	if err != nil {
		return stt.Result{}, err
	}

	params := u.Query()
	params.Set("model", "nova-2")
	params.Set("smart_format", "true")
	if language != "" {
		params.Set("language", language)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(pcm))
	if err != nil {
		return stt.Result{}, fmt.Errorf("%w: %v", stt.ErrTransport, err)
	}
	req.Header.Set("Authorization", "Token "+s.apiKey)
	req.Header.Set("Content-Type", fmt.Sprintf("audio/l16; rate=%d; channels=1", sampleRate))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return stt.Result{}, fmt.Errorf("%w: %v", stt.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return stt.Result{}, fmt.Errorf("deepgram error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string  `json:"transcript"`
					Confidence float64 `json:"confidence"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return stt.Result{}, err
	}

	if len(result.Results.Channels) == 0 || len(result.Results.Channels[0].Alternatives) == 0 {
		return stt.Result{}, nil
	}

	alt := result.Results.Channels[0].Alternatives[0]
	return stt.Result{Text: alt.Transcript, Confidence: alt.Confidence}, nil
}
