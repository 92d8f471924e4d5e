// Package transcription defines the interface for speech-to-text providers
// used by the turn pipeline.
package transcription

import (
	"context"
	"fmt"
	"strings"
)

// Request is one recorded utterance to transcribe.
type Request struct {
	Audio     []byte
	Filename  string
	MimeType  string
	Translate bool
}

// Transcriber converts a complete utterance into text.
type Transcriber interface {
	// Transcribe returns the trimmed transcript. A blank transcript is not an
	// error at this level.
	Transcribe(ctx context.Context, req Request) (string, error)

	// Name identifies the provider in logs and metrics.
	Name() string
}

// ServiceError is returned when the transcription service answers with a
// non-2xx status.
type ServiceError struct {
	Status int
	Body   string
}

func (e *ServiceError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	if body == "" {
		return fmt.Sprintf("transcription service returned status %d", e.Status)
	}
	return fmt.Sprintf("transcription service returned status %d: %s", e.Status, body)
}

// SingleLine collapses a multi-line transcript into one line.
func SingleLine(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
