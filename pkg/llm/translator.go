package llm

import "fmt"

// TranslatorOptions configures the translator persona override of spec
// §4.6, part of the `llm` section of spec §6 (translation_model,
// response_language).
type TranslatorOptions struct {
	Enabled  bool
	Model    string
	Language string
}

// ApplyTranslatorPersona overrides req's model and system prompt with the
// fixed translator persona and clears history, making the call stateless
// per spec §4.6: "the history is cleared (stateless translation)." A
// disabled translator leaves req untouched.
func ApplyTranslatorPersona(req Request, opts TranslatorOptions) Request {
	if !opts.Enabled {
		return req
	}
	req.ModelOverride = opts.Model
	req.SystemPromptOverride = fmt.Sprintf(
		"You are a professional English to %s translator. Output only the %s translation, no explanations. End transmissions with \"over\".",
		opts.Language, opts.Language,
	)
	req.History = nil
	return req
}
