package synthesis

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoadReferenceVoice_ByName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "narrator.wav"), "RIFF")
	writeFile(t, filepath.Join(dir, "narrator.txt"), "  Hello from the narrator.\n")

	v, err := LoadReferenceVoice(VoiceSource{Dir: dir, Name: "narrator"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Name() != "narrator" {
		t.Errorf("expected name narrator, got %s", v.Name())
	}
	if string(v.Audio()) != "RIFF" {
		t.Errorf("unexpected audio %q", v.Audio())
	}
	if v.Text() != "Hello from the narrator." {
		t.Errorf("expected trimmed text, got %q", v.Text())
	}
}

func TestLoadReferenceVoice_ExplicitPathsWin(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "sample.wav")
	text := filepath.Join(dir, "sample-transcript.txt")
	writeFile(t, audio, "RIFF")
	writeFile(t, text, "words")

	v, err := LoadReferenceVoice(VoiceSource{Dir: "/nowhere", Name: "ignored", AudioPath: audio, TextPath: text})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Text() != "words" {
		t.Errorf("unexpected text %q", v.Text())
	}
}

func TestLoadReferenceVoice_Errors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "empty.wav"), "")
	writeFile(t, filepath.Join(dir, "empty.txt"), "text")
	writeFile(t, filepath.Join(dir, "blank.wav"), "RIFF")
	writeFile(t, filepath.Join(dir, "blank.txt"), "  \n\t")
	writeFile(t, filepath.Join(dir, "notext.wav"), "RIFF")

	tests := []struct {
		name string
		src  VoiceSource
	}{
		{"nothing configured", VoiceSource{Dir: dir}},
		{"missing audio", VoiceSource{Dir: dir, Name: "ghost"}},
		{"missing text", VoiceSource{Dir: dir, Name: "notext"}},
		{"empty audio", VoiceSource{Dir: dir, Name: "empty"}},
		{"blank text", VoiceSource{Dir: dir, Name: "blank"}},
		{"path traversal", VoiceSource{Dir: dir, Name: "../etc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadReferenceVoice(tt.src)
			if !errors.Is(err, ErrInvalidReferenceVoice) {
				t.Errorf("expected ErrInvalidReferenceVoice, got %v", err)
			}
		})
	}
}

func TestReferenceVoice_AudioIsCopied(t *testing.T) {
	v := testVoice()
	a := v.Audio()
	a[0] = 'X'
	if string(v.Audio()) != "RIFFvoice" {
		t.Error("mutating returned audio must not change the voice")
	}
}
