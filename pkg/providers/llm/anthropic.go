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

// AnthropicLLM talks to the Anthropic Messages API directly, since its
// wire shape (separate "system" field, Content blocks, distinct
// stop_reason vocabulary) does not fit pkg/llm.HTTPClient's
// OpenAI-compatible contract. It implements llm.Client but does not
// support native tool calls: a request with Tools set fails with
// llm.ErrProtocol rather than silently ignoring them.
type AnthropicLLM struct {
	apiKey     string
	url        string
	model      string
	httpClient *http.Client
}

// NewAnthropicLLM builds a Client against the Anthropic Messages API.
func NewAnthropicLLM(apiKey, model string) *AnthropicLLM {
	if model == "" {
		model = "claude-3-5-sonnet-20240620"
	}
	return &AnthropicLLM{
		apiKey:     apiKey,
		url:        "https://api.anthropic.com/v1/messages",
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// GenerateWithTools implements llm.Client.
func (l *AnthropicLLM) GenerateWithTools(ctx context.Context, req llm.Request) (llm.Response, error) {
	if len(req.Tools) > 0 {
		return llm.Response{}, fmt.Errorf("%w: anthropic adapter does not support tool calls", llm.ErrProtocol)
	}

	var system string
	if req.SystemPromptOverride != "" {
		system = req.SystemPromptOverride
	}

	var messages []anthropicMessage
	for _, m := range req.History {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		messages = append(messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	if req.UserPrompt != "" {
		last := len(messages) - 1
		if last < 0 || messages[last].Role != "user" || messages[last].Content != req.UserPrompt {
			messages = append(messages, anthropicMessage{Role: "user", Content: req.UserPrompt})
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	payload := map[string]interface{}{
		"model":      modelOrOverride(l.model, req.ModelOverride),
		"messages":   messages,
		"max_tokens": maxTokens,
	}
	if system != "" {
		payload["system"] = system
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return llm.Response{}, fmt.Errorf("%w: marshal request: %v", llm.ErrProtocol, err)
	}

	timeout := time.Duration(req.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = l.httpClient.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, bytes.NewReader(body))
	if err != nil {
		return llm.Response{}, fmt.Errorf("%w: build request: %v", llm.ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", l.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := l.httpClient.Do(httpReq)
	if err != nil {
		return llm.Response{}, fmt.Errorf("%w: %v", llm.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return llm.Response{}, fmt.Errorf("%w: status %d: %s", llm.ErrProtocol, resp.StatusCode, string(data))
	}

	var result anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return llm.Response{}, fmt.Errorf("%w: decode response: %v", llm.ErrProtocol, err)
	}
	if len(result.Content) == 0 {
		return llm.Response{}, fmt.Errorf("%w: no content returned from anthropic", llm.ErrProtocol)
	}

	return llm.Response{
		Content:    result.Content[0].Text,
		StopReason: anthropicStopReason(result.StopReason),
	}, nil
}

func anthropicStopReason(raw string) llm.StopReason {
	if raw == "max_tokens" {
		return llm.StopLength
	}
	return llm.StopNormal
}

func modelOrOverride(model, override string) string {
	if override != "" {
		return override
	}
	return model
}

// Name implements llm.Client.
func (l *AnthropicLLM) Name() string {
	return "anthropic-llm:" + l.model
}
