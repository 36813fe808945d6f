package speech

import "testing"

var voices = []Voice{
	{Name: "Daniel", Language: "en-GB"},
	{Name: "Samantha", Language: "en-US"},
	{Name: "Amelie", Language: "fr-CA"},
	{Name: "Google US English Female", Language: "en-US"},
}

func TestSelectVoice_NamedPreferenceWinsInOrder(t *testing.T) {
	got, ok := SelectVoice(voices, []string{"female", "samantha"}, "en")
	if !ok {
		t.Fatalf("expected a voice")
	}
	if got.Name != "Google US English Female" {
		t.Fatalf("voice=%q, want the first ranked preference match", got.Name)
	}
}

func TestSelectVoice_LanguagePrefixFallback(t *testing.T) {
	got, ok := SelectVoice(voices, []string{"zira"}, "fr")
	if !ok {
		t.Fatalf("expected a voice")
	}
	if got.Name != "Amelie" {
		t.Fatalf("voice=%q, want Amelie", got.Name)
	}
}

func TestSelectVoice_FirstAvailableLastResort(t *testing.T) {
	got, ok := SelectVoice(voices, []string{"zira"}, "de")
	if !ok {
		t.Fatalf("expected a voice")
	}
	if got.Name != "Daniel" {
		t.Fatalf("voice=%q, want first available", got.Name)
	}
}

func TestSelectVoice_NoVoices(t *testing.T) {
	if _, ok := SelectVoice(nil, DefaultVoicePreferences, "en"); ok {
		t.Fatalf("expected no voice")
	}
}

func TestSelectVoice_CaseInsensitive(t *testing.T) {
	got, _ := SelectVoice(voices, []string{"SAMANTHA"}, "en")
	if got.Name != "Samantha" {
		t.Fatalf("voice=%q, want Samantha", got.Name)
	}
}
