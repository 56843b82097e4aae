package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/memoradio/memo-agent/internal/config"
	"github.com/memoradio/memo-agent/pkg/audio"
	"github.com/memoradio/memo-agent/pkg/llm"
	"github.com/memoradio/memo-agent/pkg/memory"
	"github.com/memoradio/memo-agent/pkg/phrases"
	"github.com/memoradio/memo-agent/pkg/router"
	"github.com/memoradio/memo-agent/pkg/stt"
	"github.com/memoradio/memo-agent/pkg/tools"
	"github.com/memoradio/memo-agent/pkg/tts"
	"github.com/memoradio/memo-agent/pkg/turn"
	"github.com/memoradio/memo-agent/pkg/tx"
	"github.com/memoradio/memo-agent/pkg/vad"
)

// --- fakes ---

type fakeSTT struct {
	text       string
	confidence float64
	err        error
}

func (f *fakeSTT) Transcribe(ctx context.Context, pcm []byte, sampleRate int, language string) (stt.Result, error) {
	if f.err != nil {
		return stt.Result{}, f.err
	}
	return stt.Result{Text: f.text, Confidence: f.confidence}, nil
}

func (f *fakeSTT) Name() string { return "fake" }

type fakeLLM struct {
	content string
	err     error
}

func (f *fakeLLM) GenerateWithTools(ctx context.Context, req llm.Request) (llm.Response, error) {
	if f.err != nil {
		return llm.Response{}, f.err
	}
	return llm.Response{Content: f.content, StopReason: llm.StopNormal}, nil
}

func (f *fakeLLM) Name() string { return "fake" }

type fakeSynth struct{}

func (fakeSynth) Synthesize(text, voice string) (*audio.Buffer, error) {
	b := audio.NewBuffer(16000)
	b.Append(make([]int16, 160))
	return b, nil
}

// fakeSink stands in for the audio device: Enqueue reports the bytes as
// pending, then "plays them back" a few milliseconds later, same as a real
// output device's callback would drain its ring buffer over time. This
// lets IsTransmitting()-polling code (waitForPlaybackDrain,
// onPlaybackComplete) observe a transmission that genuinely starts busy
// and later clears, without an external driver thread.
type fakeSink struct {
	mu      sync.Mutex
	pending int
}

func (f *fakeSink) Enqueue(pcm []byte) {
	f.mu.Lock()
	f.pending += len(pcm)
	f.mu.Unlock()

	time.AfterFunc(5*time.Millisecond, func() {
		f.mu.Lock()
		f.pending = 0
		f.mu.Unlock()
	})
}

func (f *fakeSink) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = 0
}

func (f *fakeSink) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

func testConfig() *config.Config {
	return &config.Config{
		Audio: config.Audio{SampleRate: 16000},
		VAD:   config.VAD{MinSpeechMS: 10},
		STT:   config.STT{Language: "en"},
		TranscriptGate: config.TranscriptGate{
			MinChars: 1, MinTokens: 1, MinConfidence: 0,
		},
		TranscriptBlankBehavior: config.TranscriptBlankBehavior{Behavior: "none"},
		Router: config.Router{
			RepairConfidenceThreshold: 0,
			RepairPhrase:              "say again",
		},
		LLM: config.LLM{
			TimeoutMS:             1000,
			ContextMaxTurnsToSend: 10,
			ResponseLanguage:      "en",
		},
		TX: config.TX{
			StandbyDelayMS:        1,
			ChannelClearSilenceMS: 5,
		},
	}
}

func buildOrchestrator(t *testing.T, cfg *config.Config, dispatcher router.Dispatcher, sttClient stt.Client, llmClient llm.Client) (*Orchestrator, *fakeSink) {
	t.Helper()

	vadOpts := vad.DefaultOptions()
	vadOpts.AdaptiveFloor = false
	vadOpts.StartFramesRequired = 1
	vadOpts.MinSpeechMS = cfg.VAD.MinSpeechMS
	vadOpts.EndOfUtteranceSilenceMS = 20
	vadOpts.PreRollMS = 0
	endpointer := vad.New(vadOpts)

	sink := &fakeSink{}
	txCtrl := tx.New(tx.Options{SampleRate: 16000, ChannelClearSilenceMS: cfg.TX.ChannelClearSilenceMS}, sink)

	rtr := router.New(router.Options{
		RepairConfidenceThreshold: cfg.Router.RepairConfidenceThreshold,
		RepairPhrase:              cfg.Router.RepairPhrase,
		DefaultAckText:            "Stand by.",
	}, dispatcher)

	registry := tools.NewRegistry()
	executor := tools.NewExecutor(registry, 1, time.Second)
	toolLoop := llm.NewToolLoop(llmClient, registry, executor, "Unable to complete request, over.")
	clarifier := llm.NewClarifier(llmClient, llm.ClarifierOptions{MinChars: 1000}) // gated off by default

	o := New(Deps{
		Config:    cfg,
		VAD:       endpointer,
		Turn:      turn.New(),
		TX:        txCtrl,
		Router:    rtr,
		STT:       sttClient,
		ToolLoop:  toolLoop,
		Clarifier: clarifier,
		Memory:    memory.New(50, 4000),
		LLMClient: llmClient,
		TTS:       tts.NewEngine(tts.DefaultOptions(), fakeSynth{}, nil),
		Phrases:   phrases.New(),
		Frames:    NewFrameQueue(100),
	})
	return o, sink
}

func loudFrame() audio.Frame {
	samples := make([]int16, 320) // 20ms @ 16kHz
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 20000
		} else {
			samples[i] = -20000
		}
	}
	return audio.NewFrame(samples, 16000)
}

func silentFrame() audio.Frame {
	return audio.NewFrame(make([]int16, 320), 16000)
}

func runUtterance(o *Orchestrator, frames int) {
	ctx := context.Background()
	o.processFrame(ctx, loudFrame())
	for i := 0; i < frames; i++ {
		o.processFrame(ctx, loudFrame())
	}
	deadline := time.Now().Add(200 * time.Millisecond)
	for o.turn.Current() == turn.ReceivingSpeech && time.Now().Before(deadline) {
		o.processFrame(ctx, silentFrame())
	}
}

func TestFastPathSpeaksAndQueuesForChannelClear(t *testing.T) {
	cfg := testConfig()
	o, sink := buildOrchestrator(t, cfg, fixedDispatcher{text: "Frequency is 146.520, over.", ok: true},
		&fakeSTT{text: "what is the frequency", confidence: 1}, &fakeLLM{})

	runUtterance(o, 3)

	if o.turn.Current() != turn.WaitingForChannelClear {
		t.Fatalf("expected WaitingForChannelClear, got %v", o.turn.Current())
	}
	if sink.Pending() != 0 {
		t.Fatalf("expected the response to be queued, not yet transmitted, while waiting for channel clear")
	}
}

func TestFastPathReleasesAfterChannelClearSilence(t *testing.T) {
	cfg := testConfig()
	o, sink := buildOrchestrator(t, cfg, fixedDispatcher{text: "Channel clear, over.", ok: true},
		&fakeSTT{text: "status", confidence: 1}, &fakeLLM{})

	runUtterance(o, 3)
	if o.turn.Current() != turn.WaitingForChannelClear {
		t.Fatalf("expected WaitingForChannelClear, got %v", o.turn.Current())
	}

	ctx := context.Background()
	deadline := time.Now().Add(200 * time.Millisecond)
	for o.turn.Current() != turn.Transmitting && time.Now().Before(deadline) {
		o.processFrame(ctx, silentFrame())
		time.Sleep(time.Millisecond)
	}

	if o.turn.Current() != turn.Transmitting {
		t.Fatalf("expected Transmitting after channel-clear silence, got %v", o.turn.Current())
	}
	if sink.Pending() == 0 {
		t.Fatalf("expected the queued response to have been sent to the sink")
	}
}

func TestLLMPathAcksThenAnswers(t *testing.T) {
	cfg := testConfig()
	o, sink := buildOrchestrator(t, cfg, noDispatcher{},
		&fakeSTT{text: "what's the weather", confidence: 1}, &fakeLLM{content: "Clear skies, over."})

	runUtterance(o, 3)

	if o.turn.Current() != turn.Transmitting {
		t.Fatalf("expected Transmitting after LLM turn, got %v", o.turn.Current())
	}
	if sink.Pending() == 0 {
		t.Fatalf("expected ack + answer audio enqueued")
	}
	if got := o.memory.Len(); got < 2 {
		t.Fatalf("expected memory to record the user/assistant turn, got %d messages", got)
	}
}

func TestLowConfidenceTriggersRepairFallback(t *testing.T) {
	cfg := testConfig()
	cfg.Router.RepairConfidenceThreshold = 0.8
	o, _ := buildOrchestrator(t, cfg, noDispatcher{}, &fakeSTT{text: "mumble mumble", confidence: 0.1}, &fakeLLM{})

	runUtterance(o, 3)

	if o.turn.Current() != turn.WaitingForChannelClear {
		t.Fatalf("expected repair fallback to take the fast path into WaitingForChannelClear, got %v", o.turn.Current())
	}
}

func TestWakeWordAbsentDropsTurnSilently(t *testing.T) {
	cfg := testConfig()
	cfg.WakeWord.Enabled = true
	o, sink := buildOrchestrator(t, cfg, noDispatcher{}, &fakeSTT{text: "what time is it", confidence: 1}, &fakeLLM{})

	runUtterance(o, 3)

	if o.turn.Current() != turn.IdleListening {
		t.Fatalf("expected IdleListening after a wake-word-absent turn, got %v", o.turn.Current())
	}
	if sink.Pending() != 0 {
		t.Fatalf("expected no audio to be queued when the wake word is absent")
	}
}

func TestWakeWordPresentStripsPrefixAndProceeds(t *testing.T) {
	cfg := testConfig()
	cfg.WakeWord.Enabled = true
	o, _ := buildOrchestrator(t, cfg, noDispatcher{}, &fakeSTT{text: "hey memo what time is it", confidence: 1}, &fakeLLM{content: "It is noon, over."})

	runUtterance(o, 3)

	if o.turn.Current() != turn.Transmitting {
		t.Fatalf("expected the stripped utterance to reach the LLM path, got %v", o.turn.Current())
	}
}

func TestTruncatedLLMResponseSubstitutesFallbackPhrase(t *testing.T) {
	cfg := testConfig()
	o, _ := buildOrchestrator(t, cfg, noDispatcher{}, &fakeSTT{text: "tell me a long story", confidence: 1}, &truncatingLLM{})

	runUtterance(o, 3)

	if o.turn.Current() != turn.Transmitting {
		t.Fatalf("expected turn to reach Transmitting even on truncation, got %v", o.turn.Current())
	}
}

func TestSTTFailureSpeaksServerOfflinePhrase(t *testing.T) {
	cfg := testConfig()
	o, sink := buildOrchestrator(t, cfg, noDispatcher{}, &fakeSTT{err: stt.ErrTransport}, &fakeLLM{})

	runUtterance(o, 3)

	if o.turn.Current() != turn.WaitingForChannelClear {
		t.Fatalf("expected stt failure to still produce a spoken fallback, got %v", o.turn.Current())
	}
	if sink.Pending() != 0 {
		t.Fatalf("fast path buffers queue, not enqueue immediately, so sink should still be empty")
	}
}

// --- test helpers: router dispatcher / LLM variants ---

type fixedDispatcher struct {
	text string
	ok   bool
}

func (f fixedDispatcher) Dispatch(text string) (string, bool) { return f.text, f.ok }

type noDispatcher struct{}

func (noDispatcher) Dispatch(text string) (string, bool) { return "", false }

type truncatingLLM struct{}

func (truncatingLLM) GenerateWithTools(ctx context.Context, req llm.Request) (llm.Response, error) {
	return llm.Response{Content: "this got cut off mid-sent", StopReason: llm.StopLength}, nil
}

func (truncatingLLM) Name() string { return "truncating" }
