package phrases

import "testing"

func TestGetReturnsLanguageSpecificPhrase(t *testing.T) {
	tbl := New()
	if got := tbl.Get(StandBy, "es"); got != "Espere." {
		t.Errorf("expected Spanish stand-by phrase, got %q", got)
	}
}

func TestGetFallsBackToEnglish(t *testing.T) {
	tbl := New()
	if got := tbl.Get(StandBy, "xx"); got != "Stand by." {
		t.Errorf("expected English fallback, got %q", got)
	}
}

func TestGetFallsBackToGenericWhenKindUnknown(t *testing.T) {
	tbl := New()
	delete(tbl.byLang["en"], GenericError)
	if got := tbl.Get(GenericError, "en"); got != fallbackPhrase {
		t.Errorf("expected generic fallback, got %q", got)
	}
}

func TestSetOverridesConfiguredPhrase(t *testing.T) {
	tbl := New()
	tbl.Set("en", SayAgain, "Come again.")
	if got := tbl.Get(SayAgain, "en"); got != "Come again." {
		t.Errorf("expected overridden phrase, got %q", got)
	}
}

func TestSetIgnoresEmptyPhrase(t *testing.T) {
	tbl := New()
	before := tbl.Get(SayAgain, "en")
	tbl.Set("en", SayAgain, "")
	if got := tbl.Get(SayAgain, "en"); got != before {
		t.Errorf("expected empty override to be ignored, got %q", got)
	}
}

func TestSetAddsNewLanguage(t *testing.T) {
	tbl := New()
	tbl.Set("it", StandBy, "Attendere.")
	if got := tbl.Get(StandBy, "it"); got != "Attendere." {
		t.Errorf("expected new-language phrase, got %q", got)
	}
}
