package pipeline

import (
	"strings"

	"github.com/memoradio/memo-agent/internal/config"
	"github.com/memoradio/memo-agent/pkg/router"
)

// wakeWordPhrase is the fixed wake phrase of spec §8 scenario 5.
const wakeWordPhrase = "hey memo"

// lowSignal implements the transcript gate of spec §4.4 step 3: a
// transcript is low-signal iff its trimmed length is under min_chars, its
// token count is under min_tokens, its confidence is under min_confidence,
// or it equals the configured blank sentinel.
func lowSignal(t router.Transcript, gate config.TranscriptGate, blankSentinel string) bool {
	trimmed := strings.TrimSpace(t.Text)
	if trimmed == "" {
		return true
	}
	if blankSentinel != "" && trimmed == blankSentinel {
		return true
	}
	if len(trimmed) < gate.MinChars {
		return true
	}
	if t.TokenCount < gate.MinTokens {
		return true
	}
	if t.Confidence < gate.MinConfidence {
		return true
	}
	return false
}

// approxTokenCount estimates a transcript's token count for STT vendors
// that don't report one themselves, using whitespace-separated word count.
func approxTokenCount(text string) int {
	return len(strings.Fields(text))
}

// stripWakeWord reports whether text contains the wake phrase
// (case-insensitive) and, if so, returns the remainder with the phrase and
// anything preceding it removed (spec §4.4 step 4, §8 scenario 5: "hey memo
// what time is it" -> "what time is it").
func stripWakeWord(text string) (string, bool) {
	lower := strings.ToLower(text)
	idx := strings.Index(lower, wakeWordPhrase)
	if idx < 0 {
		return text, false
	}
	rest := text[idx+len(wakeWordPhrase):]
	return strings.TrimSpace(rest), true
}
