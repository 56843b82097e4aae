// Package phrases centralizes the short radio phrases spoken on recovery
// paths ("Stand by.", "Server offline. Stand by.", ...) into one table
// keyed by error kind and response language, per the spec's redesign flag
// that these strings were otherwise repeated across every recovery path.
// Built-in text covers English plus the three configured voice languages
// (es/fr/de); config-supplied overrides (say_again_phrase, repair_phrase,
// truncation.fallback_phrase) are layered on top at startup via Set.
package phrases

import "sync"

// Kind identifies which recovery phrase is wanted.
type Kind string

const (
	StandBy       Kind = "stand_by"
	ServerOffline Kind = "server_offline"
	GenericError  Kind = "error"
	Truncated     Kind = "truncated"
	SayAgain      Kind = "say_again"
	Repair        Kind = "repair"
	ChannelClear  Kind = "channel_clear"
	ToolFailure   Kind = "tool_failure"
	UnknownIntent Kind = "unknown_intent"

	fallbackPhrase = "Stand by."
)

var defaults = map[string]map[Kind]string{
	"en": {
		StandBy:       "Stand by.",
		ServerOffline: "Server offline. Stand by.",
		GenericError:  "Error. Stand by.",
		Truncated:     "Stand by, message too long.",
		SayAgain:      "Say again.",
		Repair:        "Say again, unclear.",
		ChannelClear:  "Channel clear.",
		ToolFailure:   "Unable to complete that. Stand by.",
		UnknownIntent: "Unable to help with that.",
	},
	"es": {
		StandBy:       "Espere.",
		ServerOffline: "Servidor fuera de linea. Espere.",
		GenericError:  "Error. Espere.",
		Truncated:     "Espere, mensaje demasiado largo.",
		SayAgain:      "Repita, por favor.",
		Repair:        "Repita, no se entendio.",
		ChannelClear:  "Canal despejado.",
		ToolFailure:   "No se pudo completar. Espere.",
		UnknownIntent: "No puedo ayudar con eso.",
	},
	"fr": {
		StandBy:       "Attendez.",
		ServerOffline: "Serveur hors ligne. Attendez.",
		GenericError:  "Erreur. Attendez.",
		Truncated:     "Attendez, message trop long.",
		SayAgain:      "Repetez, s'il vous plait.",
		Repair:        "Repetez, incompris.",
		ChannelClear:  "Voie degagee.",
		ToolFailure:   "Impossible de terminer. Attendez.",
		UnknownIntent: "Je ne peux pas aider avec ca.",
	},
	"de": {
		StandBy:       "Bitte warten.",
		ServerOffline: "Server offline. Bitte warten.",
		GenericError:  "Fehler. Bitte warten.",
		Truncated:     "Bitte warten, Nachricht zu lang.",
		SayAgain:      "Bitte wiederholen.",
		Repair:        "Bitte wiederholen, unklar.",
		ChannelClear:  "Kanal frei.",
		ToolFailure:   "Konnte nicht abgeschlossen werden. Bitte warten.",
		UnknownIntent: "Dabei kann ich nicht helfen.",
	},
}

// Table holds the active phrase set, mutable at startup to layer
// config-supplied overrides on top of the built-in defaults.
type Table struct {
	mu     sync.RWMutex
	byLang map[string]map[Kind]string
}

// New returns a Table seeded with the built-in defaults.
func New() *Table {
	t := &Table{byLang: make(map[string]map[Kind]string, len(defaults))}
	for lang, kinds := range defaults {
		cp := make(map[Kind]string, len(kinds))
		for k, v := range kinds {
			cp[k] = v
		}
		t.byLang[lang] = cp
	}
	return t
}

// Set overrides (or adds) the phrase for kind in language. Used to plug
// config values like transcript_blank_behavior.say_again_phrase,
// router.repair_phrase, and llm.truncation.fallback_phrase into the
// table for the configured response_language.
func (t *Table) Set(language string, kind Kind, phrase string) {
	if phrase == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	kinds, ok := t.byLang[language]
	if !ok {
		kinds = make(map[Kind]string)
		t.byLang[language] = kinds
	}
	kinds[kind] = phrase
}

// Get returns the phrase for kind in language, falling back to English
// and then to a built-in generic standby phrase if neither has an entry.
func (t *Table) Get(kind Kind, language string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if kinds, ok := t.byLang[language]; ok {
		if phrase, ok := kinds[kind]; ok {
			return phrase
		}
	}
	if kinds, ok := t.byLang["en"]; ok {
		if phrase, ok := kinds[kind]; ok {
			return phrase
		}
	}
	return fallbackPhrase
}
