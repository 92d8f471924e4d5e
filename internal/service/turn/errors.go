package turn

import (
	"context"
	"errors"
	"fmt"

	"voice-turn-service/internal/service/chat"
	"voice-turn-service/internal/service/synthesis"
	"voice-turn-service/internal/service/transcription"
)

// Stage names one step of the pipeline.
type Stage string

const (
	StageTranscription Stage = "transcription"
	StageChat          Stage = "chat"
	StageSynthesis     Stage = "synthesis"
)

// Progress returns the user-facing label shown while the stage runs.
func (s Stage) Progress() string {
	switch s {
	case StageTranscription:
		return "transcribing"
	case StageChat:
		return "thinking"
	case StageSynthesis:
		return "speaking"
	default:
		return string(s)
	}
}

// Validation errors, returned before any external service is contacted.
var (
	ErrMissingAudio  = errors.New("missing audio")
	ErrAudioTooLarge = errors.New("audio exceeds the per-turn limit")
	ErrEmptyText     = errors.New("text to synthesize is empty")
)

// ErrEmptyTranscript is returned when transcription produced no words.
var ErrEmptyTranscript = errors.New("no speech detected")

// StageError reports the stage that aborted a turn.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage returns the stage recorded in err, or "" when err did not come
// from a stage.
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// errorType classifies err for metrics labels.
func errorType(err error) string {
	var (
		transcriptionErr *transcription.ServiceError
		chatErr          *chat.ServiceError
		synthesisErr     *synthesis.ServiceError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrEmptyTranscript):
		return "empty_transcript"
	case errors.Is(err, chat.ErrEmptyReply):
		return "empty_reply"
	case errors.Is(err, synthesis.ErrMissingAudio):
		return "missing_audio"
	case errors.As(err, &transcriptionErr), errors.As(err, &chatErr), errors.As(err, &synthesisErr):
		return "service_error"
	default:
		return "other"
	}
}
