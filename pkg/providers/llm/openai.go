// Package llm supplies vendor-specific constructors for the
// pkg/llm.Client interface, adapted from the teacher's per-vendor
// NewOpenAILLM/NewAnthropicLLM/NewGoogleLLM constructors.
package llm

import "github.com/memoradio/memo-agent/pkg/llm"

// NewOpenAILLM builds a Client against the OpenAI chat-completions
// endpoint. OpenAI's wire format is exactly the shape pkg/llm.HTTPClient
// already speaks, so the vendor adapter is just a constructor with
// OpenAI's URL and default model baked in, plus tool-calling support the
// teacher's string-only Complete never had.
func NewOpenAILLM(apiKey, model string) llm.Client {
	if model == "" {
		model = "gpt-4o"
	}
	return llm.NewHTTPClient(apiKey, "https://api.openai.com/v1/chat/completions", model)
}
