package speakers

import (
	"os"
	"path/filepath"
	"testing"
)

const validYAML = `speakers:
  osim:
    text_prompt: "טקסט דוגמה לקול"
    audio_prompt: speakers/osim.wav
  shira:
    text_prompt: "עוד טקסט דוגמה"
    audio_prompt: speakers/shira.wav
`

func TestLoadValidCatalog(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "speakers.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sp, ok := c.Get("osim")
	if !ok {
		t.Fatal("expected speaker osim")
	}
	if sp.AudioPrompt != "speakers/osim.wav" {
		t.Fatalf("unexpected audio prompt %q", sp.AudioPrompt)
	}
	names := c.Names()
	if len(names) != 2 || names[0] != "osim" || names[1] != "shira" {
		t.Fatalf("expected sorted names, got %v", names)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing catalog")
	}
}

func TestValidateRejectsIncompleteSpeaker(t *testing.T) {
	c := Catalog{Speakers: map[string]Speaker{
		"broken": {TextPrompt: "יש טקסט"},
	}}
	if err := Validate(c); err == nil {
		t.Fatal("expected validation error for missing audio_prompt")
	}
}

func TestValidateRejectsEmptyCatalog(t *testing.T) {
	if err := Validate(Catalog{}); err == nil {
		t.Fatal("expected validation error for empty catalog")
	}
}

func TestGetUnknownSpeaker(t *testing.T) {
	c := Catalog{Speakers: map[string]Speaker{}}
	if _, ok := c.Get("ghost"); ok {
		t.Fatal("unknown speaker must not resolve")
	}
}
