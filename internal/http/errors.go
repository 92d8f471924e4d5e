package http

import (
	"context"
	"errors"
	"net/http"

	"voice-turn-service/internal/service/turn"
)

// statusFor maps a turn error to the HTTP status returned to the client.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, turn.ErrMissingAudio), errors.Is(err, turn.ErrEmptyText), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, turn.ErrAudioTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, turn.ErrEmptyTranscript):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case turn.FailedStage(err) != "":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage returns the client-visible text for err.
func errorMessage(err error) string {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, turn.ErrEmptyTranscript):
		return turn.ErrEmptyTranscript.Error()
	case errors.Is(err, turn.ErrMissingAudio):
		return "missing audio"
	case errors.As(err, &maxBytes):
		return turn.ErrAudioTooLarge.Error()
	default:
		return err.Error()
	}
}

var errBadRequest = errors.New("bad request")
