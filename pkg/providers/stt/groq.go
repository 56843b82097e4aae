package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/memoradio/memo-agent/pkg/audio"
	"github.com/memoradio/memo-agent/pkg/stt"
)

// GroqSTT speaks the same OpenAI-compatible transcriptions wire format as
// OpenAISTT, against Groq's hosted Whisper endpoint.
type GroqSTT struct {
	apiKey     string
	url        string
	model      string
	sampleRate int
}

func NewGroqSTT(apiKey string, model string) *GroqSTT {
	if model == "" {
		model = "whisper-large-v3-turbo"
	}
	return &GroqSTT{
		apiKey:     apiKey,
		url:        "https://api.groq.com/openai/v1/audio/transcriptions",
		model:      model,
		sampleRate: 16000,
	}
}

func (s *GroqSTT) Name() string {
	return "groq-stt:" + s.model
}

func (s *GroqSTT) Transcribe(ctx context.Context, pcm []byte, sampleRate int, language string) (stt.Result, error) {
	if sampleRate <= 0 {
		sampleRate = s.sampleRate
	}
	wavData := audio.NewWavBuffer(pcm, sampleRate)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("model", s.model); err != nil {
		return stt.Result{}, err
	}
	if language != "" {
		if err := writer.WriteField("language", language); err != nil {
			return stt.Result{}, err
		}
	}

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return stt.Result{}, err
	}
	if _, err := io.Copy(part, bytes.NewReader(wavData)); err != nil {
		return stt.Result{}, err
	}
	if err := writer.Close(); err != nil {
		return stt.Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, body)
	if err != nil {
		return stt.Result{}, fmt.Errorf("%w: %v", stt.ErrTransport, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return stt.Result{}, fmt.Errorf("%w: %v", stt.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return stt.Result{}, fmt.Errorf("groq stt error (status %d): %v", resp.StatusCode, errResp)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return stt.Result{}, err
	}

	return stt.Result{Text: result.Text, Confidence: 1.0}, nil
}
