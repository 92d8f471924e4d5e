package chat

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Prompts are the fixed instructions wrapped around every conversation.
type Prompts struct {
	System string `yaml:"system"`
	Pre    string `yaml:"pre"`
	Post   string `yaml:"post"`
}

// DefaultPrompts keeps replies short enough to be spoken.
func DefaultPrompts() Prompts {
	return Prompts{
		System: "You are a friendly voice assistant. Your replies are converted to speech.",
		Pre:    "Answer in one to three short sentences of plain text, without markdown, lists or emoji.",
	}
}

// LoadPrompts reads a YAML prompt profile. Keys missing from the file keep the
// values of base.
func LoadPrompts(path string, base Prompts) (Prompts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read prompts file: %w", err)
	}

	var file struct {
		System *string `yaml:"system"`
		Pre    *string `yaml:"pre"`
		Post   *string `yaml:"post"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return base, fmt.Errorf("parse prompts file %s: %w", path, err)
	}

	p := base
	if file.System != nil {
		p.System = strings.TrimSpace(*file.System)
	}
	if file.Pre != nil {
		p.Pre = strings.TrimSpace(*file.Pre)
	}
	if file.Post != nil {
		p.Post = strings.TrimSpace(*file.Post)
	}
	return p, nil
}
