package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("unexpected error creating dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("unexpected error writing %s: %v", path, err)
	}
}

func TestLoadRequiresDefaults(t *testing.T) {
	tmp := t.TempDir()
	if _, err := Load(tmp); err == nil {
		t.Fatalf("expected error when defaults.json is missing")
	}
}

func TestLoadAppliesDefaultsOnly(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "defaults.json"), `{
		"audio": {"sample_rate": 16000},
		"vad": {"threshold": 0.5}
	}`)

	cfg, err := Load(tmp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("expected sample rate 16000, got %d", cfg.Audio.SampleRate)
	}
	if cfg.VAD.Threshold != 0.5 {
		t.Errorf("expected vad threshold 0.5, got %v", cfg.VAD.Threshold)
	}
}

func TestLoadLayersIdentityOverDefaults(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "defaults.json"), `{
		"audio": {"sample_rate": 16000, "input_device": "default"},
		"llm": {"model_name": "base-model"}
	}`)
	writeFile(t, filepath.Join(tmp, "active.json"), `{"identity": "dispatcher"}`)
	writeFile(t, filepath.Join(tmp, "identities", "dispatcher.json"), `{
		"llm": {"model_name": "dispatcher-model"}
	}`)

	cfg, err := Load(tmp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.ModelName != "dispatcher-model" {
		t.Errorf("expected identity override to win, got %q", cfg.LLM.ModelName)
	}
	if cfg.Audio.InputDevice != "default" {
		t.Errorf("expected untouched default to survive merge, got %q", cfg.Audio.InputDevice)
	}
	if cfg.Identity != "dispatcher" {
		t.Errorf("expected identity field set from active.json, got %q", cfg.Identity)
	}
}

func TestLoadLayersOverlayLast(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "defaults.json"), `{"audio": {"sample_rate": 16000}}`)
	writeFile(t, filepath.Join(tmp, "overlay.json"), `{"audio": {"sample_rate": 48000}}`)

	cfg, err := Load(tmp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Audio.SampleRate != 48000 {
		t.Errorf("expected overlay to win, got %d", cfg.Audio.SampleRate)
	}
}

func TestLoadAppliesPersonaWhenFieldsBlank(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "defaults.json"), `{"persona": "friendly"}`)
	writeFile(t, filepath.Join(tmp, "personas.json"), `{
		"friendly": {"system_prompt": "Be kind.", "agent_persona": "Memo"}
	}`)

	cfg, err := Load(tmp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.SystemPrompt != "Be kind." {
		t.Errorf("expected persona system prompt applied, got %q", cfg.LLM.SystemPrompt)
	}
	if cfg.LLM.AgentPersona != "Memo" {
		t.Errorf("expected persona agent_persona applied, got %q", cfg.LLM.AgentPersona)
	}
}

func TestLoadPersonaDoesNotOverrideExplicitPrompt(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "defaults.json"), `{
		"persona": "friendly",
		"llm": {"system_prompt": "Explicit prompt."}
	}`)
	writeFile(t, filepath.Join(tmp, "personas.json"), `{
		"friendly": {"system_prompt": "Be kind."}
	}`)

	cfg, err := Load(tmp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.SystemPrompt != "Explicit prompt." {
		t.Errorf("expected explicit prompt to win, got %q", cfg.LLM.SystemPrompt)
	}
}

func TestLoadAppliesLanguageVoice(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "defaults.json"), `{"llm": {"response_language": "es"}}`)
	writeFile(t, filepath.Join(tmp, "language_voices.json"), `{"es": "/voices/es-1.onnx"}`)

	cfg, err := Load(tmp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TTS.VoicePath != "/voices/es-1.onnx" {
		t.Errorf("expected language voice path applied, got %q", cfg.TTS.VoicePath)
	}
}

func TestLoadUnknownIdentityIsNotFatal(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "defaults.json"), `{"audio": {"sample_rate": 16000}}`)
	writeFile(t, filepath.Join(tmp, "active.json"), `{"identity": "missing"}`)

	if _, err := Load(tmp); err != nil {
		t.Fatalf("unexpected error for missing (optional) identity file: %v", err)
	}
}
