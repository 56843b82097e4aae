package llm

import (
	"context"
	"strings"

	"github.com/memoradio/memo-agent/pkg/router"
)

// ClarifierOptions mirrors the `clarifier` section of spec §6.
type ClarifierOptions struct {
	MinChars        int
	MinConfidence   float64
	UnknownSentinel string
}

const clarifierSystemPrompt = "Rewrite the user's most recent message resolving references and likely " +
	"misrecognitions using the conversation history. Reply with only the rewritten message, or the " +
	"exact sentinel if you cannot determine intent."

// Clarifier implements the pre-pass of spec §4.6: a cheap resolution call
// that may rewrite ambiguous references ("that fan" -> "that frequency")
// before the main LLM call.
type Clarifier struct {
	client Client
	opts   ClarifierOptions
}

// NewClarifier creates a clarifier calling client.
func NewClarifier(client Client, opts ClarifierOptions) *Clarifier {
	return &Clarifier{client: client, opts: opts}
}

// Resolve runs the clarifier pre-pass. skip is true when the gate
// conditions of spec §4.6 are not met and the clarifier should not be
// consulted (memory too short, transcript too weak, or blank); in that
// case rewritten equals the original transcript text. unknown is true when
// the clarifier returned the configured unknown sentinel, signalling the
// caller to skip the main LLM call and speak a fallback instead.
func (c *Clarifier) Resolve(ctx context.Context, transcript router.Transcript, historyLen int, history []ChatMessage) (rewritten string, skip bool, unknown bool, err error) {
	trimmed := strings.TrimSpace(transcript.Text)

	if historyLen < 2 || len(trimmed) < c.opts.MinChars || transcript.Confidence < c.opts.MinConfidence || trimmed == "" {
		return transcript.Text, true, false, nil
	}

	resp, err := c.client.GenerateWithTools(ctx, Request{
		SystemPromptOverride: clarifierSystemPrompt + " Sentinel: " + c.opts.UnknownSentinel,
		History:              history,
		UserPrompt:            transcript.Text,
		Temperature:           0,
		MaxTokens:             64,
	})
	if err != nil {
		return transcript.Text, false, false, err
	}

	out := strings.TrimSpace(resp.Content)
	if out == c.opts.UnknownSentinel {
		return transcript.Text, false, true, nil
	}
	if out == "" {
		return transcript.Text, false, false, nil
	}
	return out, false, false, nil
}
