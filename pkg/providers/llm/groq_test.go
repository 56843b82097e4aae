package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/memoradio/memo-agent/pkg/llm"
)

func TestGroqLLMGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{
					"message":       map[string]interface{}{"content": "hello from groq"},
					"finish_reason": "stop",
				},
			},
		})
	}))
	defer server.Close()

	client := llm.NewHTTPClient("test-key", server.URL, "llama3-70b")
	resp, err := client.GenerateWithTools(context.Background(), llm.Request{UserPrompt: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello from groq" {
		t.Errorf("expected 'hello from groq', got %q", resp.Content)
	}
}

func TestNewGroqLLMDefaultsModel(t *testing.T) {
	c := NewGroqLLM("key", "")
	if got, want := c.Name(), "http-chat:llama3-70b-8192"; got != want {
		t.Errorf("expected default model in client name %q, got %q", want, got)
	}
}
