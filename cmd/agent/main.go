package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/memoradio/memo-agent/internal/config"
	"github.com/memoradio/memo-agent/pkg/audioio"
	"github.com/memoradio/memo-agent/pkg/llm"
	"github.com/memoradio/memo-agent/pkg/logging"
	"github.com/memoradio/memo-agent/pkg/memory"
	"github.com/memoradio/memo-agent/pkg/pipeline"
	llmProvider "github.com/memoradio/memo-agent/pkg/providers/llm"
	sttProvider "github.com/memoradio/memo-agent/pkg/providers/stt"
	"github.com/memoradio/memo-agent/pkg/router"
	"github.com/memoradio/memo-agent/pkg/session"
	"github.com/memoradio/memo-agent/pkg/stt"
	"github.com/memoradio/memo-agent/pkg/tools"
	"github.com/memoradio/memo-agent/pkg/tts"
	"github.com/memoradio/memo-agent/pkg/turn"
	"github.com/memoradio/memo-agent/pkg/tx"
	"github.com/memoradio/memo-agent/pkg/vad"
)

func main() {
	configDir := flag.String("config", "config", "configuration directory (spec §6 directory convention)")
	listDevices := flag.Bool("list-devices", false, "list capture/playback audio devices and exit")
	recordDir := flag.String("record-dir", "", "if set, write a session_log.json + WAV captures under this directory")
	flag.Parse()

	if *listDevices {
		names, err := audioio.ListDevices()
		if err != nil {
			log.Fatalf("list devices: %v", err)
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return
	}

	if err := godotenv.Load(); err != nil {
		log.Println("Note: no .env file found, using system environment variables")
	}

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.NewStdLogger("agent")

	sttClient, err := buildSTTClient(cfg)
	if err != nil {
		log.Fatalf("build stt client: %v", err)
	}

	llmClient, err := buildLLMClient(cfg)
	if err != nil {
		log.Fatalf("build llm client: %v", err)
	}

	synth, fallback := buildSynthesizers(cfg)
	ttsEngine := tts.NewEngine(tts.Options{
		SampleRate:          cfg.Audio.SampleRate,
		VoxPrerollMS:        cfg.TTS.VoxPrerollMS,
		VoxPrerollAmplitude: cfg.TTS.VoxPrerollAmplitude,
		VoxEndToneMS:        cfg.TTS.VoxEndToneMS,
		VoxEndToneAmplitude: cfg.TTS.VoxEndToneAmplitude,
		VoxEndToneFreqHz:    cfg.TTS.VoxEndToneFreqHz,
		OutputGain:          cfg.TTS.OutputGain,
	}, synth, fallback)

	vadOpts := vad.DefaultOptions()
	vadOpts.SampleRate = cfg.Audio.SampleRate
	if cfg.VAD.Threshold > 0 {
		vadOpts.StartThreshold = cfg.VAD.Threshold
	}
	if cfg.VAD.StartFramesRequired > 0 {
		vadOpts.StartFramesRequired = cfg.VAD.StartFramesRequired
	}
	if cfg.VAD.EndOfUtteranceSilenceMS > 0 {
		vadOpts.EndOfUtteranceSilenceMS = cfg.VAD.EndOfUtteranceSilenceMS
	}
	if cfg.VAD.MinSpeechMS > 0 {
		vadOpts.MinSpeechMS = cfg.VAD.MinSpeechMS
	}
	if cfg.VAD.HangoverMS > 0 {
		vadOpts.HangoverMS = cfg.VAD.HangoverMS
	}
	if cfg.VAD.PauseToleranceMS > 0 {
		vadOpts.PauseToleranceMS = cfg.VAD.PauseToleranceMS
	}
	endpointer := vad.New(vadOpts)

	registry := tools.NewRegistry()
	registerBuiltinTools(registry)
	toolTimeout := time.Duration(cfg.Tools.TimeoutMS) * time.Millisecond
	if toolTimeout <= 0 {
		toolTimeout = 5 * time.Second
	}
	maxConcurrent := cfg.Tools.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	executor := tools.NewExecutor(registry, maxConcurrent, toolTimeout)
	fallbackPhrase := cfg.LLM.Truncation.FallbackPhrase
	if fallbackPhrase == "" {
		fallbackPhrase = "Unable to complete request, over."
	}
	toolLoop := llm.NewToolLoop(llmClient, registry, executor, fallbackPhrase)

	clarifier := llm.NewClarifier(llmClient, llm.ClarifierOptions{
		MinChars:        cfg.Clarifier.MinChars,
		MinConfidence:   cfg.Clarifier.MinConfidence,
		UnknownSentinel: cfg.Clarifier.UnknownSentinel,
	})

	var summarizer *llm.Summarizer
	if cfg.Memory.Enabled {
		summarizer = llm.NewSummarizer(llmClient, 4)
		summarizer.Start()
	}

	mem := memory.New(cfg.Memory.MaxMessages, cfg.Memory.MaxTokens)
	if cfg.LLM.SystemPrompt != "" || cfg.LLM.AgentPersona != "" {
		mem.SetSystem(cfg.LLM.SystemPrompt)
	}

	var dispatcher router.Dispatcher // nil: no operator-command pre-pass configured in this deployment
	rtr := router.New(router.Options{
		RepairConfidenceThreshold: cfg.Router.RepairConfidenceThreshold,
		RepairPhrase:              cfg.Router.RepairPhrase,
		DefaultAckText:            "Stand by.",
	}, dispatcher)

	var recorder *session.Recorder
	if *recordDir != "" {
		recorder, err = session.New(*recordDir, cfg.Audio.SampleRate)
		if err != nil {
			log.Fatalf("open session recorder: %v", err)
		}
		defer recorder.Close()
	}

	phraseTable := cfg.PhraseTable()
	frames := pipeline.NewFrameQueue(100)

	// The device and the tx sink it backs must exist before the
	// orchestrator (tx.New needs a Sink), but the device's capture callback
	// must forward into the orchestrator (audioio.Open needs a
	// FrameHandler). handlerSlot breaks the cycle: the device is opened
	// against an indirect forwarder, then retargeted once the orchestrator
	// exists.
	var handlerSlot audioio.FrameHandler
	device, err := audioio.Open(audioio.Config{SampleRate: cfg.Audio.SampleRate, Channels: 1}, func(pcm []byte) {
		if handlerSlot != nil {
			handlerSlot(pcm)
		}
	})
	if err != nil {
		log.Fatalf("open audio device: %v", err)
	}
	defer device.Close()

	txCtrl := tx.New(tx.Options{
		SampleRate:            cfg.Audio.SampleRate,
		MaxTransmitMS:         cfg.TX.MaxTransmitMS,
		ChannelClearSilenceMS: cfg.TX.ChannelClearSilenceMS,
	}, device)

	orch := pipeline.New(pipeline.Deps{
		Config:     cfg,
		Logger:     logger,
		VAD:        endpointer,
		Turn:       turn.New(),
		TX:         txCtrl,
		Router:     rtr,
		STT:        sttClient,
		ToolLoop:   toolLoop,
		Clarifier:  clarifier,
		Summarizer: summarizer,
		Memory:     mem,
		LLMClient:  llmClient,
		TTS:        ttsEngine,
		Recorder:   recorder,
		Phrases:    phraseTable,
		Frames:     frames,
	})
	handlerSlot = orch.PushCapturedAudio

	fmt.Printf("memo-agent: identity=%s persona=%s sample_rate=%dHz\n", cfg.Identity, cfg.Persona, cfg.Audio.SampleRate)
	fmt.Println("Listening. Press Ctrl+C to exit.")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- orch.Run(ctx)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sig:
		fmt.Println("\nShutting down...")
		cancel()
		<-runErr
	case err := <-runErr:
		if err != nil && err != context.Canceled {
			log.Printf("orchestrator stopped: %v", err)
			orch.Shutdown()
			os.Exit(1)
		}
	}

	orch.Shutdown()
}

func buildSTTClient(cfg *config.Config) (stt.Client, error) {
	provider := os.Getenv("STT_PROVIDER")
	if provider == "" {
		provider = "groq"
	}

	switch provider {
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY must be set for openai STT")
		}
		return sttProvider.NewOpenAISTT(key, "whisper-1"), nil
	case "deepgram":
		key := os.Getenv("DEEPGRAM_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("DEEPGRAM_API_KEY must be set for deepgram STT")
		}
		return sttProvider.NewDeepgramSTT(key), nil
	case "assemblyai":
		key := os.Getenv("ASSEMBLYAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("ASSEMBLYAI_API_KEY must be set for assemblyai STT")
		}
		return sttProvider.NewAssemblyAISTT(key), nil
	case "groq":
		fallthrough
	default:
		key := os.Getenv("GROQ_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("GROQ_API_KEY must be set for groq STT")
		}
		model := os.Getenv("GROQ_STT_MODEL")
		if model == "" {
			model = "whisper-large-v3-turbo"
		}
		return sttProvider.NewGroqSTT(key, model), nil
	}
}

func buildLLMClient(cfg *config.Config) (llm.Client, error) {
	provider := os.Getenv("LLM_PROVIDER")
	if provider == "" {
		provider = "groq"
	}
	model := cfg.LLM.ModelName

	switch provider {
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY must be set for openai LLM")
		}
		return llmProvider.NewOpenAILLM(key, model), nil
	case "anthropic":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY must be set for anthropic LLM")
		}
		return llmProvider.NewAnthropicLLM(key, model), nil
	case "google":
		key := os.Getenv("GOOGLE_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY must be set for google LLM")
		}
		return llmProvider.NewGoogleLLM(key, model), nil
	case "groq":
		fallthrough
	default:
		key := os.Getenv("GROQ_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("GROQ_API_KEY must be set for groq LLM")
		}
		return llmProvider.NewGroqLLM(key, model), nil
	}
}

// buildSynthesizers wires the persistent worker configured via
// tts.piper_path as the primary synthesizer (spec §4.7), with the
// websocket-based remote backend as a fallback when LOKUTOR_API_KEY is
// present, matching the teacher's original remote TTS deployment.
func buildSynthesizers(cfg *config.Config) (tts.Synthesizer, tts.Synthesizer) {
	var primary tts.Synthesizer
	if cfg.TTS.PiperPath != "" {
		args := []string{}
		if cfg.TTS.VoiceModelsDir != "" {
			args = append(args, "--data-dir", cfg.TTS.VoiceModelsDir)
		}
		if cfg.TTS.EspeakDataPath != "" {
			args = append(args, "--espeak-data", cfg.TTS.EspeakDataPath)
		}
		if worker, err := tts.NewWorker(cfg.TTS.PiperPath, args, cfg.Audio.SampleRate); err == nil {
			primary = worker
		} else {
			log.Printf("tts: persistent worker unavailable (%v), falling back to remote/one-shot synthesis", err)
		}
	}

	var fallback tts.Synthesizer
	if key := os.Getenv("LOKUTOR_API_KEY"); key != "" {
		fallback = tts.NewRemoteSynthesizer(key, "wss://api.lokutor.ai/v1/tts", cfg.Audio.SampleRate)
	} else if cfg.TTS.PiperPath != "" {
		fallback = tts.NewOneShotSynthesizer(cfg.TTS.PiperPath, nil, cfg.Audio.SampleRate)
	}

	if primary == nil {
		primary = fallback
		fallback = nil
	}
	return primary, fallback
}

func registerBuiltinTools(registry *tools.Registry) {
	if err := registry.Register(&clockTool{}); err != nil {
		log.Fatalf("register built-in tools: %v", err)
	}
}

// clockTool answers "what time is it" style requests when the model calls it
// through the tool loop, the one built-in tool every deployment gets for free.
type clockTool struct{}

func (clockTool) Definition() tools.Definition {
	return tools.Definition{
		Name:            "get_current_time",
		Description:     "Returns the current UTC time as HH:MM followed by the zone name, e.g. 14:05 UTC.",
		ParameterSchema: []byte(`{"type":"object","properties":{}}`),
	}
}

func (clockTool) Execute(argsJSON string) tools.Result {
	return tools.Result{Success: true, Content: time.Now().UTC().Format("15:04 MST")}
}
