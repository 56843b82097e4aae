package llm

import "github.com/memoradio/memo-agent/pkg/llm"

// NewGroqLLM builds a Client against Groq's OpenAI-compatible
// chat-completions endpoint. The teacher's cmd/agent/main.go referenced
// NewGroqLLM without shipping the file; supplied here in the same style
// as NewOpenAILLM since Groq speaks the identical wire format.
func NewGroqLLM(apiKey, model string) llm.Client {
	if model == "" {
		model = "llama3-70b-8192"
	}
	return llm.NewHTTPClient(apiKey, "https://api.groq.com/openai/v1/chat/completions", model)
}
