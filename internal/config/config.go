// Package config loads the directory-convention configuration of spec §6:
// active.json selects one of a set of identity files, layered over
// defaults.json and an optional machine-specific overlay, with
// personas.json and language_voices.json supplying persona text and
// per-language voice paths. Stdlib encoding/json only — the teacher's own
// configuration style is plain env vars via godotenv (kept for API-key
// secrets in cmd/agent), so a stdlib JSON directory loader is the house
// style extended to the spec's richer configuration surface, not a
// framework substitution.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/memoradio/memo-agent/pkg/phrases"
)

// Audio mirrors the `audio` section of spec §6.
type Audio struct {
	InputDevice     string `json:"input_device"`
	OutputDevice    string `json:"output_device"`
	SampleRate      int    `json:"sample_rate"`
	InputSampleRate int    `json:"input_sample_rate"`
}

// VAD mirrors the `vad` section of spec §6.
type VAD struct {
	Threshold               float64 `json:"threshold"`
	StartFramesRequired     int     `json:"start_frames_required"`
	EndOfUtteranceSilenceMS int     `json:"end_of_utterance_silence_ms"`
	MinSpeechMS             int     `json:"min_speech_ms"`
	HangoverMS              int     `json:"hangover_ms"`
	PauseToleranceMS        int     `json:"pause_tolerance_ms"`
}

// STT mirrors the `stt` section of spec §6.
type STT struct {
	ModelPath     string `json:"model_path"`
	Language      string `json:"language"`
	BlankSentinel string `json:"blank_sentinel"`
	UseGPU        bool   `json:"use_gpu"`
}

// TranscriptGate mirrors the `transcript_gate` section of spec §6.
type TranscriptGate struct {
	MinChars      int     `json:"min_chars"`
	MinTokens     int     `json:"min_tokens"`
	MinConfidence float64 `json:"min_confidence"`
}

// TranscriptBlankBehavior mirrors the `transcript_blank_behavior` section
// of spec §6.
type TranscriptBlankBehavior struct {
	Behavior       string `json:"behavior"`
	SayAgainPhrase string `json:"say_again_phrase"`
}

// Clarifier mirrors the `clarifier` section of spec §6.
type Clarifier struct {
	MinChars        int     `json:"min_chars"`
	MinConfidence   float64 `json:"min_confidence"`
	UnknownSentinel string  `json:"unknown_sentinel"`
}

// Router mirrors the `router` section of spec §6.
type Router struct {
	RepairConfidenceThreshold float64 `json:"repair_confidence_threshold"`
	RepairPhrase              string  `json:"repair_phrase"`
}

// Truncation mirrors the `llm.truncation` subsection of spec §6.
type Truncation struct {
	FallbackPhrase string `json:"fallback_phrase"`
}

// LLM mirrors the `llm` section of spec §6.
type LLM struct {
	Endpoint               string     `json:"endpoint"`
	TimeoutMS              int        `json:"timeout_ms"`
	MaxTokens              int        `json:"max_tokens"`
	ContextMaxTurnsToSend  int        `json:"context_max_turns_to_send"`
	ModelName              string     `json:"model_name"`
	TranslationModel       string     `json:"translation_model"`
	WarmupTranslationModel bool       `json:"warmup_translation_model"`
	Temperature            float64    `json:"temperature"`
	SystemPrompt           string     `json:"system_prompt"`
	AgentPersona           string     `json:"agent_persona"`
	ResponseLanguage       string     `json:"response_language"`
	StopSequences          []string   `json:"stop_sequences"`
	Truncation             Truncation `json:"truncation"`
}

// TTS mirrors the `tts` section of spec §6.
type TTS struct {
	VoicePath           string  `json:"voice_path"`
	VoiceModelsDir      string  `json:"voice_models_dir"`
	PiperPath           string  `json:"piper_path"`
	EspeakDataPath      string  `json:"espeak_data_path"`
	VoxPrerollMS        int     `json:"vox_preroll_ms"`
	VoxPrerollAmplitude float64 `json:"vox_preroll_amplitude"`
	VoxEndToneMS        int     `json:"vox_end_tone_ms"`
	VoxEndToneAmplitude float64 `json:"vox_end_tone_amplitude"`
	VoxEndToneFreqHz    float64 `json:"vox_end_tone_freq_hz"`
	OutputGain          float64 `json:"output_gain"`
}

// TX mirrors the `tx` section of spec §6.
type TX struct {
	MaxTransmitMS         int  `json:"max_transmit_ms"`
	StandbyDelayMS        int  `json:"standby_delay_ms"`
	ChannelClearSilenceMS int  `json:"channel_clear_silence_ms"`
	EnableStartChirp      bool `json:"enable_start_chirp"`
	EnableEndChirp        bool `json:"enable_end_chirp"`
}

// WakeWord mirrors the `wake_word` section of spec §6.
type WakeWord struct {
	Enabled bool `json:"enabled"`
}

// Memory mirrors the `memory` section of spec §6.
type Memory struct {
	Enabled     bool `json:"enabled"`
	MaxMessages int  `json:"max_messages"`
	MaxTokens   int  `json:"max_tokens"`
}

// Tools mirrors the `tools` section of spec §6.
type Tools struct {
	Enabled       []string `json:"enabled"`
	TimeoutMS     int      `json:"timeout_ms"`
	MaxConcurrent int      `json:"max_concurrent"`
}

// Config is the fully merged configuration document.
type Config struct {
	Identity                string                  `json:"identity"`
	Persona                 string                  `json:"persona"`
	Audio                   Audio                   `json:"audio"`
	VAD                     VAD                     `json:"vad"`
	STT                     STT                     `json:"stt"`
	TranscriptGate          TranscriptGate          `json:"transcript_gate"`
	TranscriptBlankBehavior TranscriptBlankBehavior `json:"transcript_blank_behavior"`
	Clarifier               Clarifier               `json:"clarifier"`
	Router                  Router                  `json:"router"`
	LLM                     LLM                     `json:"llm"`
	TTS                     TTS                     `json:"tts"`
	TX                      TX                      `json:"tx"`
	WakeWord                WakeWord                `json:"wake_word"`
	Memory                  Memory                  `json:"memory"`
	Tools                   Tools                   `json:"tools"`
}

// Persona is one entry of personas.json.
type Persona struct {
	SystemPrompt string `json:"system_prompt"`
	AgentPersona string `json:"agent_persona"`
}

// Load reads the directory convention rooted at dir: defaults.json, then
// the identity file selected by active.json, then an optional
// overlay.json, each layered on top of the last; then applies the
// selected persona from personas.json and the response-language voice
// path from language_voices.json.
func Load(dir string) (*Config, error) {
	merged := map[string]interface{}{}

	if err := mergeFile(merged, filepath.Join(dir, "defaults.json"), true); err != nil {
		return nil, err
	}

	var active struct {
		Identity string `json:"identity"`
	}
	if err := readJSONIfExists(filepath.Join(dir, "active.json"), &active); err != nil {
		return nil, err
	}
	if active.Identity != "" {
		identityPath := filepath.Join(dir, "identities", active.Identity+".json")
		if err := mergeFile(merged, identityPath, false); err != nil {
			return nil, err
		}
	}

	if err := mergeFile(merged, filepath.Join(dir, "overlay.json"), false); err != nil {
		return nil, err
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("config: remarshal merged document: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal merged document: %w", err)
	}
	if cfg.Identity == "" {
		cfg.Identity = active.Identity
	}

	if err := applyPersona(dir, &cfg); err != nil {
		return nil, err
	}
	if err := applyLanguageVoice(dir, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// PhraseTable builds the recovery-phrase lookup for this configuration,
// layering the say-again/repair/truncation-fallback phrases onto the
// built-in table for the configured response language.
func (c *Config) PhraseTable() *phrases.Table {
	t := phrases.New()
	lang := c.LLM.ResponseLanguage
	if lang == "" {
		lang = "en"
	}
	t.Set(lang, phrases.SayAgain, c.TranscriptBlankBehavior.SayAgainPhrase)
	t.Set(lang, phrases.Repair, c.Router.RepairPhrase)
	t.Set(lang, phrases.Truncated, c.LLM.Truncation.FallbackPhrase)
	return t
}

func applyPersona(dir string, cfg *Config) error {
	if cfg.Persona == "" {
		return nil
	}
	var personas map[string]Persona
	if err := readJSONIfExists(filepath.Join(dir, "personas.json"), &personas); err != nil {
		return err
	}
	p, ok := personas[cfg.Persona]
	if !ok {
		return nil
	}
	if cfg.LLM.SystemPrompt == "" {
		cfg.LLM.SystemPrompt = p.SystemPrompt
	}
	if cfg.LLM.AgentPersona == "" {
		cfg.LLM.AgentPersona = p.AgentPersona
	}
	return nil
}

func applyLanguageVoice(dir string, cfg *Config) error {
	if cfg.LLM.ResponseLanguage == "" || cfg.TTS.VoicePath != "" {
		return nil
	}
	var voices map[string]string
	if err := readJSONIfExists(filepath.Join(dir, "language_voices.json"), &voices); err != nil {
		return err
	}
	if v, ok := voices[cfg.LLM.ResponseLanguage]; ok {
		cfg.TTS.VoicePath = v
	}
	return nil
}

// mergeFile reads path as a JSON object and merges it into dst. A missing
// file is an error only when required is true (defaults.json must exist;
// identity/overlay files are optional).
func mergeFile(dst map[string]interface{}, path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	mergeInto(dst, doc)
	return nil
}

func mergeInto(dst, src map[string]interface{}) {
	for k, v := range src {
		if srcMap, ok := v.(map[string]interface{}); ok {
			if dstMap, ok := dst[k].(map[string]interface{}); ok {
				mergeInto(dstMap, srcMap)
				continue
			}
		}
		dst[k] = v
	}
}

func readJSONIfExists(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}
