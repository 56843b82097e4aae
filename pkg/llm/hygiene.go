package llm

import (
	"regexp"
	"strings"
)

// stockPatterns are stripped from LLM output per spec §4.6 "response
// hygiene": a small fixed set of stock phrases models tend to append.
var stockPatterns = []string{
	"[end conversation]",
	"Remember,",
	"As an AI language model,",
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// maxResponseWords caps the spoken response length per spec §4.6 ("cap at
// ~100 words").
const maxResponseWords = 100

// Sanitize strips whitespace, removes stock patterns, collapses internal
// whitespace, and caps the result at maxResponseWords, per spec §4.6.
func Sanitize(text string) string {
	for _, pattern := range stockPatterns {
		text = strings.ReplaceAll(text, pattern, "")
	}
	text = strings.TrimSpace(text)
	text = whitespaceRun.ReplaceAllString(text, " ")

	words := strings.Split(text, " ")
	if len(words) > maxResponseWords {
		words = words[:maxResponseWords]
	}
	return strings.Join(words, " ")
}

// EnsureEndsWithOver appends the radio-convention closing word "over" with
// exactly one trailing period when the text does not already end with it
// (case-insensitive), satisfying the property in spec §8: "the resulting
// spoken text ends with the literal word 'over' ... with exactly one
// trailing period."
func EnsureEndsWithOver(text string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(text), ".")
	lower := strings.ToLower(trimmed)
	if strings.HasSuffix(lower, "over") {
		return trimmed + "."
	}
	return trimmed + ", over."
}

// ApplyTruncationFallback implements spec §4.6's truncation handling: if
// the stop reason indicates length overflow, substitute a
// language-appropriate fallback phrase instead of the (possibly
// mid-sentence) content.
func ApplyTruncationFallback(resp Response, fallbackPhrase string) string {
	if resp.StopReason == StopLength {
		return fallbackPhrase
	}
	return resp.Content
}

// FailureReply maps the failure semantics of spec §4.6 to a radio-friendly
// phrase: connection errors -> "Server offline. Stand by."; timeouts and
// other errors fall back to "Stand by." / "Error. Stand by.". The call
// site never raises past this point.
func FailureReply(err error) string {
	switch {
	case err == nil:
		return ""
	case strings.Contains(err.Error(), "deadline exceeded"):
		return "Stand by."
	case isTransportError(err):
		return "Server offline. Stand by."
	default:
		return "Error. Stand by."
	}
}

func isTransportError(err error) bool {
	return strings.Contains(err.Error(), ErrTransport.Error())
}
