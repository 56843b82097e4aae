package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/memoradio/memo-agent/pkg/stt"
)

// AssemblyAISTT implements the three-step upload/submit/poll flow
// AssemblyAI requires: upload the raw PCM, submit a transcription job
// against the resulting URL, then poll until it completes or errors.
type AssemblyAISTT struct {
	apiKey string
}

func NewAssemblyAISTT(apiKey string) *AssemblyAISTT {
	return &AssemblyAISTT{apiKey: apiKey}
}

func (s *AssemblyAISTT) Name() string {
	return "assemblyai-stt"
}

func (s *AssemblyAISTT) Transcribe(ctx context.Context, pcm []byte, sampleRate int, language string) (stt.Result, error) {
	uploadURL, err := s.upload(ctx, pcm)
	if err != nil {
		return stt.Result{}, err
	}

	transcriptID, err := s.submit(ctx, uploadURL, language)
	if err != nil {
		return stt.Result{}, err
	}

	for {
		select {
		case <-ctx.Done():
			return stt.Result{}, ctx.Err()
		case <-time.After(500 * time.Millisecond):
			text, confidence, status, err := s.getTranscript(ctx, transcriptID)
			if err != nil {
				return stt.Result{}, err
			}
			if status == "completed" {
				return stt.Result{Text: text, Confidence: confidence}, nil
			}
			if status == "error" {
				return stt.Result{}, fmt.Errorf("assemblyai transcription failed")
			}
		}
	}
}

func (s *AssemblyAISTT) upload(ctx context.Context, pcm []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.assemblyai.com/v2/upload", bytes.NewReader(pcm))
	if err != nil {
		return "", fmt.Errorf("%w: %v", stt.ErrTransport, err)
	}
	req.Header.Set("Authorization", s.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", stt.ErrTransport, err)
	}
	defer resp.Body.Close()

	var result struct {
		UploadURL string `json:"upload_url"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	return result.UploadURL, nil
}

func (s *AssemblyAISTT) submit(ctx context.Context, uploadURL, language string) (string, error) {
	payload := map[string]interface{}{
		"audio_url": uploadURL,
	}
	if language != "" {
		payload["language_code"] = language
	}

	body, _ := json.Marshal(payload)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.assemblyai.com/v2/transcript", bytes.NewReader(body))
	req.Header.Set("Authorization", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", stt.ErrTransport, err)
	}
	defer resp.Body.Close()

	var result struct {
		ID string `json:"id"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	return result.ID, nil
}

func (s *AssemblyAISTT) getTranscript(ctx context.Context, id string) (text string, confidence float64, status string, err error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.assemblyai.com/v2/transcript/"+id, nil)
	req.Header.Set("Authorization", s.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", 0, "", fmt.Errorf("%w: %v", stt.ErrTransport, err)
	}
	defer resp.Body.Close()

	var result struct {
		Status     string  `json:"status"`
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	return result.Text, result.Confidence, result.Status, nil
}
