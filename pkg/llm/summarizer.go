package llm

import (
	"context"
	"strings"
	"sync"
)

const summarizerSystemPrompt = "Summarize the following dialogue into a concise recap for future context. " +
	"Reply with only the summary text."

// snapshot is one push to the summarizer's bounded queue.
type snapshot struct {
	history     []ChatMessage
	lastUserLow bool
}

// Summarizer is the background worker of spec §4.6.1: it waits on a
// bounded queue, skips low-signal snapshots, and publishes a concise
// summary under a mutex for future prompt assembly. Grounded on the
// teacher's goroutine-with-mutex style (pkg/orchestrator/managed_stream.go);
// the spec's condition-variable wakeup is expressed here as a buffered Go
// channel, the idiomatic equivalent.
type Summarizer struct {
	client Client
	queue  chan snapshot

	mu      sync.RWMutex
	summary string

	done chan struct{}
	wg   sync.WaitGroup
}

// NewSummarizer creates a summarizer with a bounded queue of depth
// queueSize.
func NewSummarizer(client Client, queueSize int) *Summarizer {
	if queueSize <= 0 {
		queueSize = 4
	}
	return &Summarizer{
		client: client,
		queue:  make(chan snapshot, queueSize),
		done:   make(chan struct{}),
	}
}

// Start launches the single background worker. Must be called once.
func (s *Summarizer) Start() {
	s.wg.Add(1)
	go s.run()
}

func (s *Summarizer) run() {
	defer s.wg.Done()
	for snap := range s.queue {
		if snap.lastUserLow {
			continue
		}
		summary, err := s.summarize(snap.history)
		if err != nil {
			continue
		}
		s.mu.Lock()
		s.summary = summary
		s.mu.Unlock()
	}
}

func (s *Summarizer) summarize(history []ChatMessage) (string, error) {
	var dialogue strings.Builder
	for _, m := range history {
		if m.Role == "system" {
			continue
		}
		dialogue.WriteString(m.Role)
		dialogue.WriteString(": ")
		dialogue.WriteString(m.Content)
		dialogue.WriteString("\n")
	}

	resp, err := s.client.GenerateWithTools(context.Background(), Request{
		SystemPromptOverride: summarizerSystemPrompt,
		UserPrompt:           dialogue.String(),
		Temperature:          0,
		MaxTokens:            128,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// Snapshot pushes history onto the bounded queue for summarization;
// lastUserLowSignal marks whether the gate considered the triggering
// transcript low-signal, which the worker uses to skip the snapshot. A
// full queue drops the snapshot, matching the bounded-queue-with-overflow-
// drop policy used elsewhere in the pipeline (spec §5).
func (s *Summarizer) Snapshot(history []ChatMessage, lastUserLowSignal bool) {
	snap := snapshot{history: append([]ChatMessage(nil), history...), lastUserLow: lastUserLowSignal}
	select {
	case s.queue <- snap:
	default:
	}
}

// Summary returns the most recently published summary, or "" if none yet.
func (s *Summarizer) Summary() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary
}

// SummaryMessage builds the "Conversation summary: ..." user message
// prepended at history index 1, per spec §4.6. Returns false if no
// summary has been published yet.
func (s *Summarizer) SummaryMessage() (ChatMessage, bool) {
	summary := s.Summary()
	if summary == "" {
		return ChatMessage{}, false
	}
	return ChatMessage{Role: "user", Content: "Conversation summary: " + summary}, true
}

// Shutdown unblocks the worker and waits for it to exit, per spec §5's
// "shutdown signal unblocks the queue; worker joins before destruction."
func (s *Summarizer) Shutdown() {
	close(s.queue)
	s.wg.Wait()
}
