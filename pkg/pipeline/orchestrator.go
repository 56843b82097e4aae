// Package pipeline implements the pipeline orchestrator of spec §4.4: the
// single-threaded main loop that owns the turn lifecycle, sequencing VAD,
// the turn state machine, the half-duplex TX controller, the router, the
// language-model tool loop, and the TTS engine. Grounded on the teacher's
// pkg/orchestrator/orchestrator.go and managed_stream.go — the
// per-stage instrumentation, mutex-protected shared state, and interrupt
// handling carry forward, but the goroutine-per-connection ManagedStream
// design is replaced by the single-threaded-loop-plus-named-background-
// workers model the spec's Design Notes call canonical.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/memoradio/memo-agent/internal/config"
	"github.com/memoradio/memo-agent/pkg/audio"
	"github.com/memoradio/memo-agent/pkg/llm"
	"github.com/memoradio/memo-agent/pkg/logging"
	"github.com/memoradio/memo-agent/pkg/memory"
	"github.com/memoradio/memo-agent/pkg/phrases"
	"github.com/memoradio/memo-agent/pkg/router"
	"github.com/memoradio/memo-agent/pkg/session"
	"github.com/memoradio/memo-agent/pkg/stt"
	"github.com/memoradio/memo-agent/pkg/tts"
	"github.com/memoradio/memo-agent/pkg/turn"
	"github.com/memoradio/memo-agent/pkg/tx"
	"github.com/memoradio/memo-agent/pkg/vad"
)

// Deps bundles the components the orchestrator sequences. Every field
// except Config is an interface or a concrete component type that has its
// own package; Deps only wires them together, per spec §3's "all shared
// mutable state is owned by the orchestrator."
type Deps struct {
	Config *config.Config
	Logger logging.Logger

	VAD    *vad.Endpointer
	Turn   *turn.Machine
	TX     *tx.Controller
	Router *router.Router
	STT    stt.Client

	ToolLoop   *llm.ToolLoop
	Clarifier  *llm.Clarifier
	Summarizer *llm.Summarizer // nil disables the background summarizer
	Memory     *memory.Memory

	// LLMClient is the raw client, used for the translator persona's
	// stateless calls (spec §4.6), which must bypass the tool loop
	// entirely since the translator persona carries no tool definitions
	// and clears history.
	LLMClient llm.Client

	TTS      *tts.Engine
	Recorder *session.Recorder // nil disables session recording
	Phrases  *phrases.Table

	Frames *FrameQueue
}

// Orchestrator is the pipeline orchestrator of spec §4.4.
type Orchestrator struct {
	cfg    *config.Config
	logger logging.Logger

	vad    *vad.Endpointer
	turn   *turn.Machine
	tx     *tx.Controller
	router *router.Router
	stt    stt.Client

	toolLoop   *llm.ToolLoop
	clarifier  *llm.Clarifier
	summarizer *llm.Summarizer
	memory     *memory.Memory
	llmClient  llm.Client

	tts      *tts.Engine
	recorder *session.Recorder
	phrases  *phrases.Table

	frames *FrameQueue

	guardUntil          time.Time
	channelSilenceSince time.Time
	lastProgressLog     time.Time
}

// New builds an Orchestrator from its dependencies.
func New(d Deps) *Orchestrator {
	logger := d.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Orchestrator{
		cfg:        d.Config,
		logger:     logger,
		vad:        d.VAD,
		turn:       d.Turn,
		tx:         d.TX,
		router:     d.Router,
		stt:        d.STT,
		toolLoop:   d.ToolLoop,
		clarifier:  d.Clarifier,
		summarizer: d.Summarizer,
		memory:     d.Memory,
		llmClient:  d.LLMClient,
		tts:        d.TTS,
		recorder:   d.Recorder,
		phrases:    d.Phrases,
		frames:     d.Frames,
	}
}

// PushCapturedAudio feeds one block of little-endian 16-bit PCM captured
// from the microphone/receiver into the bounded frame queue. Safe to call
// from the audio device's own capture callback.
func (o *Orchestrator) PushCapturedAudio(pcm []byte) {
	o.frames.Push(audio.FrameFromPCM(pcm, o.cfg.Audio.SampleRate))
}

// Run drives the main loop at the audio frame cadence until ctx is
// cancelled, per spec §4.4.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		f, ok := o.frames.Pop(time.Millisecond)
		if !ok {
			continue
		}
		o.processFrame(ctx, f)
	}
}

// Shutdown releases background workers owned by the orchestrator. The
// audio device and session recorder are owned by the caller (cmd/agent)
// and closed there.
func (o *Orchestrator) Shutdown() {
	if o.summarizer != nil {
		o.summarizer.Shutdown()
	}
}

// processFrame implements one iteration of the per-frame loop of §4.4.
func (o *Orchestrator) processFrame(ctx context.Context, f audio.Frame) {
	if o.recorder != nil {
		if err := o.recorder.AppendRawInput(f); err != nil {
			o.logger.Warn("session recorder raw input write failed", "err", err)
		}
	}

	switch o.turn.Current() {
	case turn.Transmitting:
		if !o.tx.IsTransmitting() {
			o.onPlaybackComplete()
		}

	case turn.WaitingForChannelClear:
		o.processWaitingForChannelClear(f)

	case turn.IdleListening:
		if o.withinGuardWindow() {
			return
		}
		o.dispatchVADEvent(ctx, o.vad.Process(f))

	case turn.ReceivingSpeech:
		o.dispatchVADEvent(ctx, o.vad.Process(f))

	case turn.Thinking:
		// Thinking is only ever observed mid-call within runTurn's own
		// call stack in this single-threaded design; no other frame is
		// processed while a turn computes its response.
	}
}

func (o *Orchestrator) processWaitingForChannelClear(f audio.Frame) {
	ev := o.vad.Process(f)
	if ev.Type == vad.SpeechStart {
		o.logger.Info("channel reclaimed by another speaker while waiting for clear")
		if _, err := o.turn.Apply(turn.EventSpeechStart); err != nil {
			o.logger.Warn("invalid transition on channel reclaim", "err", err)
		}
		return
	}

	silenceMS := o.channelSilenceMS()
	if o.tx.TryRelease(silenceMS) {
		if _, err := o.turn.Apply(turn.EventChannelClear); err != nil {
			o.logger.Warn("invalid transition on channel clear", "err", err)
		}
	}
}

// channelSilenceMS tracks how long the endpointer has continuously
// reported Silence, used for the channel-clear rule of spec §4.3.
func (o *Orchestrator) channelSilenceMS() int {
	if o.vad.StateNow() != vad.Silence {
		o.channelSilenceSince = time.Time{}
		return 0
	}
	if o.channelSilenceSince.IsZero() {
		o.channelSilenceSince = time.Now()
		return 0
	}
	return int(time.Since(o.channelSilenceSince).Milliseconds())
}

func (o *Orchestrator) withinGuardWindow() bool {
	return !o.guardUntil.IsZero() && time.Now().Before(o.guardUntil)
}

// onPlaybackComplete implements the guard-period arming of spec §4.3/§4.4
// step 3: wait POST_PLAYBACK_DELAY_MS, transition to IdleListening, flush
// capture, reset VAD, and stamp the guard timer. The spec provides only
// tx.standby_delay_ms as a config knob at this point in the lifecycle, so
// the same duration is reused both as POST_PLAYBACK_DELAY_MS and as the
// subsequent VAD_GUARD_PERIOD_MS window (documented in DESIGN.md).
func (o *Orchestrator) onPlaybackComplete() {
	delay := time.Duration(o.cfg.TX.StandbyDelayMS) * time.Millisecond
	if delay > 0 {
		time.Sleep(delay)
	}

	if _, err := o.turn.Apply(turn.EventPlaybackComplete); err != nil {
		o.logger.Warn("invalid transition on playback complete", "err", err)
		return
	}

	o.frames.Flush()
	o.vad.Reset()
	o.guardUntil = time.Now().Add(delay)
	o.logEvent("guard_armed", nil)
}

func (o *Orchestrator) dispatchVADEvent(ctx context.Context, ev vad.Event) {
	switch ev.Type {
	case vad.SpeechStart:
		if _, err := o.turn.Apply(turn.EventSpeechStart); err != nil {
			o.logger.Warn("invalid transition on speech start", "err", err)
			return
		}
		o.logEvent("speech_start", nil)

	case vad.SpeechEnd:
		o.logEvent("speech_end", nil)
		o.runTurn(ctx)

	case vad.None:
		if o.turn.Current() == turn.ReceivingSpeech {
			o.maybeLogProgress()
		}
	}
}

func (o *Orchestrator) maybeLogProgress() {
	if time.Since(o.lastProgressLog) < 500*time.Millisecond {
		return
	}
	o.lastProgressLog = time.Now()
	o.logger.Debug("receiving speech", "segment_ms", o.vad.CurrentSegment().DurationMS())
}

// runTurn executes the turn on SpeechEnd, per spec §4.4's "Turn execution
// on SpeechEnd" contract.
func (o *Orchestrator) runTurn(ctx context.Context) {
	segment := o.vad.FinalizeSegment()
	if segment.DurationMS() < o.cfg.VAD.MinSpeechMS {
		o.logger.Debug("discarding short segment", "duration_ms", segment.DurationMS())
		o.returnToIdle()
		return
	}

	var utterancePath string
	if o.recorder != nil {
		if path, err := o.recorder.RecordUtterance(segment); err == nil {
			utterancePath = path
		} else {
			o.logger.Warn("session recorder utterance write failed", "err", err)
		}
	}
	o.logEventWithAudio("utterance", map[string]interface{}{"duration_ms": segment.DurationMS()}, utterancePath)

	sttStart := time.Now()
	sttTimeout := time.Duration(o.cfg.LLM.TimeoutMS) * time.Millisecond
	if sttTimeout <= 0 {
		sttTimeout = 10 * time.Second
	}
	sttCtx, cancel := context.WithTimeout(ctx, sttTimeout)
	result, err := o.stt.Transcribe(sttCtx, segment.PCM(), segment.SampleRate, o.cfg.STT.Language)
	cancel()
	o.logger.Debug("stt latency", "ms", time.Since(sttStart).Milliseconds())

	if err != nil {
		o.logger.Error("stt failure", "err", err)
		o.finishFastPath(o.phrases.Get(o.sttFailureKind(err), o.language()))
		return
	}

	transcript := router.Transcript{
		Text:       result.Text,
		TokenCount: approxTokenCount(result.Text),
		Confidence: result.Confidence,
	}

	if lowSignal(transcript, o.cfg.TranscriptGate, o.cfg.STT.BlankSentinel) {
		o.handleBlankBehavior()
		return
	}

	if o.cfg.WakeWord.Enabled {
		stripped, ok := stripWakeWord(transcript.Text)
		if !ok {
			o.logger.Info("dropping turn: wake word absent")
			o.returnToIdle()
			return
		}
		transcript.Text = stripped
	}

	plan := o.router.Decide(transcript, nil)
	switch plan.Kind {
	case router.Speak:
		o.finishFastPath(llm.EnsureEndsWithOver(llm.Sanitize(plan.AnswerText)))
	case router.Fallback:
		o.finishFastPath(llm.EnsureEndsWithOver(llm.Sanitize(plan.FallbackText)))
	case router.SpeakAckThenAnswer:
		o.runLLMTurn(ctx, plan, transcript)
	default:
		o.returnToIdle()
	}
}

func (o *Orchestrator) sttFailureKind(err error) phrases.Kind {
	if errors.Is(err, stt.ErrTransport) {
		return phrases.ServerOffline
	}
	return phrases.GenericError
}

func (o *Orchestrator) handleBlankBehavior() {
	switch o.cfg.TranscriptBlankBehavior.Behavior {
	case "say_again":
		phrase := o.phrases.Get(phrases.SayAgain, o.language())
		o.finishFastPath(llm.EnsureEndsWithOver(phrase))
	case "beep":
		o.finishFastPathBuffer(o.tts.GetPrerollBuffer())
	default: // "none": re-listen silently.
		o.returnToIdle()
	}
}

// returnToIdle quietly ends a turn with no response, reusing the
// wake-word-absent edge as the table's only "nothing to do" transition out
// of ReceivingSpeech (spec §4.2's table has no separate edge for a
// silently discarded turn; see DESIGN.md).
func (o *Orchestrator) returnToIdle() {
	if _, err := o.turn.Apply(turn.EventSpeechEndWakeWordCommandAbsent); err != nil {
		o.logger.Warn("invalid transition back to idle", "err", err)
	}
}

// finishFastPath synthesizes spokenText and queues it for channel-clear
// release, for responses available immediately after routing (Speak,
// Fallback, and blank-behavior phrases) — the "response pre-prepared" edge
// of spec §4.2.
func (o *Orchestrator) finishFastPath(spokenText string) {
	buf, err := o.tts.SynthVox(spokenText, o.cfg.TTS.VoicePath, o.cfg.TX.EnableStartChirp, o.cfg.TX.EnableEndChirp)
	if err != nil || buf == nil {
		o.logger.Error("tts failure on fast path", "err", err)
		o.returnToIdle()
		return
	}
	o.finishFastPathBuffer(buf)
}

func (o *Orchestrator) finishFastPathBuffer(buf *audio.Buffer) {
	if buf == nil {
		o.returnToIdle()
		return
	}
	if o.recorder != nil {
		if path, err := o.recorder.RecordTTS(buf); err == nil {
			o.logEventWithAudio("tts", nil, path)
		}
	}
	if _, err := o.turn.Apply(turn.EventSpeechEndResponsePrepared); err != nil {
		o.logger.Warn("invalid transition to waiting_for_channel_clear", "err", err)
		return
	}
	o.tx.QueueForChannelClear(buf)
}

// runLLMTurn executes the SpeakAckThenAnswer plan: optionally transmit an
// acknowledgement and wait for it to drain, run the clarifier pre-pass,
// call the tool loop, and transmit the result — all synchronously within
// the Thinking state (spec §4.2, §4.6).
func (o *Orchestrator) runLLMTurn(ctx context.Context, plan router.Plan, transcript router.Transcript) {
	if _, err := o.turn.Apply(turn.EventSpeechEndNoPendingTX); err != nil {
		o.logger.Warn("invalid transition to thinking", "err", err)
		return
	}

	if plan.AckText != "" {
		// The acknowledgement is not the turn's completion — more speech
		// follows once it drains — so it gets the start chirp (still the
		// first audio on the channel) but never the end chirp.
		if ackBuf, err := o.tts.SynthVox(llm.EnsureEndsWithOver(plan.AckText), o.cfg.TTS.VoicePath, o.cfg.TX.EnableStartChirp, false); err == nil && ackBuf != nil {
			o.tx.Transmit(ackBuf)
			o.waitForPlaybackDrain()
		}
	}

	llmTimeout := time.Duration(o.cfg.LLM.TimeoutMS) * time.Millisecond
	if llmTimeout <= 0 {
		llmTimeout = 20 * time.Second
	}
	llmCtx, cancel := context.WithTimeout(ctx, llmTimeout)
	defer cancel()

	history := toWireMessages(o.memory.LastTurns(o.cfg.LLM.ContextMaxTurnsToSend))
	if o.summarizer != nil {
		if msg, ok := o.summarizer.SummaryMessage(); ok {
			history = append([]llm.ChatMessage{msg}, history...)
		}
	}

	userPrompt := plan.Prompt
	rewritten, skip, unknown, err := o.clarifier.Resolve(llmCtx, transcript, o.memory.Len(), history)
	if err != nil {
		o.logger.Warn("clarifier failure", "err", err)
	} else if !skip {
		if unknown {
			o.finishThinking(llm.EnsureEndsWithOver(o.phrases.Get(phrases.UnknownIntent, o.language())))
			return
		}
		userPrompt = rewritten
	}

	req := llm.Request{
		UserPrompt:           userPrompt,
		History:              history,
		TimeoutMS:            o.cfg.LLM.TimeoutMS,
		MaxTokens:            o.cfg.LLM.MaxTokens,
		SystemPromptOverride: o.systemPrompt(),
		Temperature:          o.cfg.LLM.Temperature,
	}

	resp, err := o.toolLoop.RunDetailed(llmCtx, req)
	var spoken string
	if err != nil {
		o.logger.Error("llm failure", "err", err)
		spoken = llm.EnsureEndsWithOver(o.phrases.Get(o.llmFailureKind(err), o.language()))
	} else {
		content := llm.ApplyTruncationFallback(resp, o.phrases.Get(phrases.Truncated, o.language()))
		spoken = llm.EnsureEndsWithOver(llm.Sanitize(o.translate(llmCtx, content)))
	}

	o.appendMemory(userPrompt, spoken, transcript)
	o.finishThinking(spoken)
}

func (o *Orchestrator) appendMemory(userPrompt, spoken string, transcript router.Transcript) {
	if !o.memory.LastUserEquals(userPrompt) {
		o.memory.Append(memory.Message{Role: memory.RoleUser, Content: userPrompt})
	}
	o.memory.Append(memory.Message{Role: memory.RoleAssistant, Content: spoken})

	if o.summarizer != nil && o.memory.Len() >= 4 {
		lowSignalTrigger := lowSignal(transcript, o.cfg.TranscriptGate, o.cfg.STT.BlankSentinel)
		o.summarizer.Snapshot(toWireMessages(o.memory.Messages()), lowSignalTrigger)
	}
}

func (o *Orchestrator) llmFailureKind(err error) phrases.Kind {
	switch {
	case errors.Is(err, llm.ErrTransport):
		return phrases.ServerOffline
	case errors.Is(err, llm.ErrProtocol):
		return phrases.GenericError
	default:
		return phrases.StandBy
	}
}

// finishThinking synthesizes spokenText and transmits it directly,
// advancing Thinking -> Transmitting, the table's only edge out of
// Thinking (spec §4.2).
func (o *Orchestrator) finishThinking(spokenText string) {
	buf, err := o.tts.SynthVox(spokenText, o.cfg.TTS.VoicePath, o.cfg.TX.EnableStartChirp, o.cfg.TX.EnableEndChirp)
	if err != nil || buf == nil {
		o.logger.Error("tts failure", "err", err)
		o.returnToIdle()
		return
	}
	if o.recorder != nil {
		if path, err := o.recorder.RecordTTS(buf); err == nil {
			o.logEventWithAudio("tts", nil, path)
		}
	}
	if _, err := o.turn.Apply(turn.EventResponseReady); err != nil {
		o.logger.Warn("invalid transition to transmitting", "err", err)
		return
	}
	o.tx.Transmit(buf)
}

// waitForPlaybackDrain blocks until the TX controller reports the queue has
// drained, the suspension point spec §5 explicitly allows ("waiting for
// playback to drain after an acknowledgement").
func (o *Orchestrator) waitForPlaybackDrain() {
	for o.tx.IsTransmitting() {
		time.Sleep(2 * time.Millisecond)
	}
}

func (o *Orchestrator) language() string {
	if o.cfg.LLM.ResponseLanguage == "" {
		return "en"
	}
	return o.cfg.LLM.ResponseLanguage
}

func (o *Orchestrator) systemPrompt() string {
	if o.cfg.LLM.AgentPersona == "" {
		return o.cfg.LLM.SystemPrompt
	}
	if o.cfg.LLM.SystemPrompt == "" {
		return o.cfg.LLM.AgentPersona
	}
	return o.cfg.LLM.SystemPrompt + "\n" + o.cfg.LLM.AgentPersona
}

func (o *Orchestrator) translatorOptions() llm.TranslatorOptions {
	lang := o.cfg.LLM.ResponseLanguage
	return llm.TranslatorOptions{
		Enabled:  o.cfg.LLM.TranslationModel != "" && lang != "" && lang != "en",
		Model:    o.cfg.LLM.TranslationModel,
		Language: lang,
	}
}

// translate runs the translator persona's stateless call of spec §4.6
// against content when a translation model is configured, returning
// content unchanged otherwise or on failure (translation is best-effort;
// it never blocks the turn on its own error).
func (o *Orchestrator) translate(ctx context.Context, content string) string {
	opts := o.translatorOptions()
	if !opts.Enabled || o.llmClient == nil {
		return content
	}
	req := llm.ApplyTranslatorPersona(llm.Request{UserPrompt: content, Temperature: 0}, opts)
	resp, err := o.llmClient.GenerateWithTools(ctx, req)
	if err != nil {
		o.logger.Warn("translation failed, speaking untranslated response", "err", err)
		return content
	}
	return resp.Content
}

func (o *Orchestrator) logEvent(eventType string, data map[string]interface{}) {
	o.logEventWithAudio(eventType, data, "")
}

func (o *Orchestrator) logEventWithAudio(eventType string, data map[string]interface{}, audioPath string) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.LogEvent(eventType, data, audioPath); err != nil {
		o.logger.Warn("session log event failed", "err", err)
	}
}

func toWireMessages(msgs []memory.Message) []llm.ChatMessage {
	out := make([]llm.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		wm := llm.ChatMessage{Role: string(m.Role), Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			wm.ToolCalls = append(wm.ToolCalls, llm.ToolCall{ID: tc.ID, Name: tc.Name, ArgumentsJSON: tc.Arguments})
		}
		out = append(out, wm)
	}
	return out
}
