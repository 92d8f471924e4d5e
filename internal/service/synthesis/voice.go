package synthesis

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidReferenceVoice is returned when the reference files cannot be used.
var ErrInvalidReferenceVoice = errors.New("invalid reference voice")

// ReferenceVoice is the sample recording and its transcript used to clone a
// voice. It is immutable once loaded and safe to share between turns.
type ReferenceVoice struct {
	name  string
	audio []byte
	text  string
}

// VoiceSource locates the reference files. Explicit paths take precedence over
// Dir/Name, which resolve to <Dir>/<Name>.wav and <Dir>/<Name>.txt.
type VoiceSource struct {
	Dir       string
	Name      string
	AudioPath string
	TextPath  string
}

// Paths returns the audio and transcript paths for the source.
func (s VoiceSource) Paths() (string, string, error) {
	audioPath, textPath := s.AudioPath, s.TextPath
	if audioPath == "" || textPath == "" {
		if s.Name == "" {
			return "", "", fmt.Errorf("%w: no voice name or file paths configured", ErrInvalidReferenceVoice)
		}
		if strings.ContainsAny(s.Name, `/\`) || s.Name == ".." {
			return "", "", fmt.Errorf("%w: voice name %q", ErrInvalidReferenceVoice, s.Name)
		}
		if audioPath == "" {
			audioPath = filepath.Join(s.Dir, s.Name+".wav")
		}
		if textPath == "" {
			textPath = filepath.Join(s.Dir, s.Name+".txt")
		}
	}
	return audioPath, textPath, nil
}

// LoadReferenceVoice reads both files. Either file missing or empty is an
// error; the transcript is trimmed before the emptiness check.
func LoadReferenceVoice(src VoiceSource) (*ReferenceVoice, error) {
	audioPath, textPath, err := src.Paths()
	if err != nil {
		return nil, err
	}

	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read audio: %w", ErrInvalidReferenceVoice, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: audio file %s is empty", ErrInvalidReferenceVoice, audioPath)
	}

	raw, err := os.ReadFile(textPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read transcript: %w", ErrInvalidReferenceVoice, err)
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, fmt.Errorf("%w: transcript file %s is empty", ErrInvalidReferenceVoice, textPath)
	}

	name := src.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	}
	return &ReferenceVoice{name: name, audio: audio, text: text}, nil
}

// Name returns the voice name.
func (v *ReferenceVoice) Name() string { return v.name }

// Audio returns a copy of the reference recording.
func (v *ReferenceVoice) Audio() []byte {
	out := make([]byte, len(v.audio))
	copy(out, v.audio)
	return out
}

// Text returns the transcript of the reference recording.
func (v *ReferenceVoice) Text() string { return v.text }
