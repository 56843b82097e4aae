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

// OpenAISTT talks to OpenAI's /v1/audio/transcriptions endpoint. Whisper
// transcription does not report a confidence score, so Confidence is
// always 1.0, matching the teacher's original behavior of trusting
// whatever text came back.
type OpenAISTT struct {
	apiKey     string
	url        string
	model      string
	sampleRate int
}

func NewOpenAISTT(apiKey string, model string) *OpenAISTT {
	if model == "" {
		model = "whisper-1"
	}
	return &OpenAISTT{
		apiKey:     apiKey,
		url:        "https://api.openai.com/v1/audio/transcriptions",
		model:      model,
		sampleRate: 16000,
	}
}

func (s *OpenAISTT) Name() string {
	return "openai-stt:" + s.model
}

func (s *OpenAISTT) Transcribe(ctx context.Context, pcm []byte, sampleRate int, language string) (stt.Result, error) {
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
	if _, err := part.Write(wavData); err != nil {
		return stt.Result{}, err
	}
	writer.Close()

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
		respBody, _ := io.ReadAll(resp.Body)
		return stt.Result{}, fmt.Errorf("openai stt error: %s (status %d)", string(respBody), resp.StatusCode)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return stt.Result{}, err
	}

	return stt.Result{Text: result.Text, Confidence: 1.0}, nil
}
