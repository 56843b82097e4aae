package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/memoradio/memo-agent/pkg/llm"
)

// GoogleLLM talks to the Gemini generateContent API directly: its
// contents/parts shape and role vocabulary (system folded into "user",
// assistant renamed to "model") do not fit pkg/llm.HTTPClient's
// OpenAI-compatible contract. Like AnthropicLLM, it does not support
// native tool calls.
type GoogleLLM struct {
	apiKey     string
	url        string
	model      string
	httpClient *http.Client
}

// NewGoogleLLM builds a Client against the Gemini generateContent API.
func NewGoogleLLM(apiKey, model string) *GoogleLLM {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GoogleLLM{
		apiKey:     apiKey,
		url:        "https://generativelanguage.googleapis.com/v1beta/models/" + model + ":generateContent",
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type googlePart struct {
	Text string `json:"text"`
}

type googleMessage struct {
	Role  string       `json:"role"`
	Parts []googlePart `json:"parts"`
}

type googleResponse struct {
	Candidates []struct {
		Content struct {
			Parts []googlePart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// GenerateWithTools implements llm.Client.
func (l *GoogleLLM) GenerateWithTools(ctx context.Context, req llm.Request) (llm.Response, error) {
	if len(req.Tools) > 0 {
		return llm.Response{}, fmt.Errorf("%w: google adapter does not support tool calls", llm.ErrProtocol)
	}

	var messages []googleMessage
	if req.SystemPromptOverride != "" {
		messages = append(messages, googleMessage{Role: "user", Parts: []googlePart{{Text: req.SystemPromptOverride}}})
	}
	for _, m := range req.History {
		messages = append(messages, googleMessage{Role: googleRole(m.Role), Parts: []googlePart{{Text: m.Content}}})
	}
	if req.UserPrompt != "" {
		last := len(messages) - 1
		if last < 0 || messages[last].Role != "user" || messages[last].Parts[0].Text != req.UserPrompt {
			messages = append(messages, googleMessage{Role: "user", Parts: []googlePart{{Text: req.UserPrompt}}})
		}
	}

	body, err := json.Marshal(map[string]interface{}{"contents": messages})
	if err != nil {
		return llm.Response{}, fmt.Errorf("%w: marshal request: %v", llm.ErrProtocol, err)
	}

	timeout := time.Duration(req.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = l.httpClient.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := l.url
	if req.ModelOverride != "" {
		url = "https://generativelanguage.googleapis.com/v1beta/models/" + req.ModelOverride + ":generateContent"
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"?key="+l.apiKey, bytes.NewReader(body))
	if err != nil {
		return llm.Response{}, fmt.Errorf("%w: build request: %v", llm.ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(httpReq)
	if err != nil {
		return llm.Response{}, fmt.Errorf("%w: %v", llm.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return llm.Response{}, fmt.Errorf("%w: status %d: %s", llm.ErrProtocol, resp.StatusCode, string(data))
	}

	var result googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return llm.Response{}, fmt.Errorf("%w: decode response: %v", llm.ErrProtocol, err)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return llm.Response{}, fmt.Errorf("%w: no response from google llm", llm.ErrProtocol)
	}

	return llm.Response{
		Content:    result.Candidates[0].Content.Parts[0].Text,
		StopReason: googleStopReason(result.Candidates[0].FinishReason),
	}, nil
}

func googleRole(role string) string {
	switch role {
	case "system":
		return "user"
	case "assistant":
		return "model"
	default:
		return role
	}
}

func googleStopReason(raw string) llm.StopReason {
	if raw == "MAX_TOKENS" {
		return llm.StopLength
	}
	return llm.StopNormal
}

// Name implements llm.Client.
func (l *GoogleLLM) Name() string {
	return "google-llm:" + l.model
}
