package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"voice-turn-service/internal/models"
	"voice-turn-service/internal/observability/metrics"
	"voice-turn-service/internal/service/history"
	"voice-turn-service/internal/service/turn"
)

const (
	// AudioField carries the recording in multipart turn requests.
	AudioField = "audio"
	// HistoryField carries the JSON chat history in multipart turn requests.
	HistoryField = "chatHistory"
	// SessionField optionally scopes turn IDs and events to a client session.
	SessionField = "sessionId"

	maxFormMemory = 32 << 20
	formOverhead  = 1 << 20
	maxJSONBody   = 1 << 20
	sessionHeader = "X-Session-ID"
)

// TurnHandler serves the single and staged turn endpoints.
type TurnHandler struct {
	orch          *turn.Orchestrator
	metrics       *metrics.Metrics
	maxAudioBytes int64
}

// NewTurnHandler creates the turn endpoints over orch. maxAudioBytes bounds
// request bodies; zero disables the bound.
func NewTurnHandler(orch *turn.Orchestrator, m *metrics.Metrics, maxAudioBytes int64) *TurnHandler {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &TurnHandler{orch: orch, metrics: m, maxAudioBytes: maxAudioBytes}
}

// Turn handles POST /api/turn.
func (h *TurnHandler) Turn(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r)

	audio, err := h.readAudio(w, r)
	if err != nil {
		h.fail(w, logger, err)
		return
	}
	prior := h.parseHistory(logger, "turn", r.FormValue(HistoryField))

	res, err := h.orch.Run(turnContext(r), turn.Request{
		SessionID: sessionID(r),
		Audio:     audio,
		History:   prior,
	})
	if err != nil {
		h.fail(w, logger.With().Str("turnId", res.TurnID).Logger(), err)
		return
	}

	writeJSON(w, http.StatusOK, models.TurnResponse{
		TurnID:         res.TurnID,
		Transcript:     res.Transcript,
		AssistantReply: res.AssistantReply,
		AudioBase64:    res.AudioBase64,
	})
}

// Transcribe handles POST /api/transcribe.
func (h *TurnHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r)

	audio, err := h.readAudio(w, r)
	if err != nil {
		h.fail(w, logger, err)
		return
	}

	turnID := h.orch.NewTurnID(sessionID(r))
	transcript, err := h.orch.Transcribe(turnContext(r), turnID, audio)
	if err != nil {
		h.fail(w, logger.With().Str("turnId", turnID).Logger(), err)
		return
	}

	writeJSON(w, http.StatusOK, models.TranscribeResponse{TurnID: turnID, Transcript: transcript})
}

// Reply handles POST /api/llm-reply.
func (h *TurnHandler) Reply(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r)

	var req models.ReplyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, logger, err)
		return
	}
	prior := h.parseHistory(logger, "llm-reply", string(req.ChatHistory))

	reply, err := h.orch.Reply(turnContext(r), req.TurnID, prior, req.Transcript)
	if err != nil {
		h.fail(w, logger.With().Str("turnId", req.TurnID).Logger(), err)
		return
	}

	writeJSON(w, http.StatusOK, models.ReplyResponse{AssistantReply: reply})
}

// Synthesize handles POST /api/synthesize.
func (h *TurnHandler) Synthesize(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r)

	var req models.SynthesizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, logger, err)
		return
	}

	audio, err := h.orch.Synthesize(turnContext(r), req.TurnID, req.Text)
	if err != nil {
		h.fail(w, logger.With().Str("turnId", req.TurnID).Logger(), err)
		return
	}

	writeJSON(w, http.StatusOK, models.SynthesizeResponse{AudioBase64: audio})
}

// readAudio extracts the recording from a multipart request. Anything short
// of a non-empty audio part is ErrMissingAudio.
func (h *TurnHandler) readAudio(w http.ResponseWriter, r *http.Request) (turn.Audio, error) {
	if h.maxAudioBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxAudioBytes+formOverhead)
	}

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) || strings.Contains(err.Error(), "request body too large") {
			return turn.Audio{}, fmt.Errorf("%w: %v", turn.ErrAudioTooLarge, err)
		}
		return turn.Audio{}, fmt.Errorf("%w: %v", turn.ErrMissingAudio, err)
	}

	file, hdr, err := r.FormFile(AudioField)
	if err != nil {
		return turn.Audio{}, turn.ErrMissingAudio
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return turn.Audio{}, fmt.Errorf("read audio: %w", err)
	}

	audio := turn.Audio{
		Data:     data,
		Filename: hdr.Filename,
		MimeType: hdr.Header.Get("Content-Type"),
	}
	if err := h.orch.ValidateAudio(audio); err != nil {
		return turn.Audio{}, err
	}
	return audio, nil
}

// parseHistory normalizes the serialized history. Malformed entries are
// dropped, logged and counted; they never fail the request.
func (h *TurnHandler) parseHistory(logger zerolog.Logger, route, raw string) []history.Entry {
	entries, dropped := history.ParseJSON(raw)
	h.metrics.RecordHistory(route, len(entries)+len(dropped), len(dropped))
	if len(dropped) > 0 {
		reasons := make([]string, 0, len(dropped))
		for _, d := range dropped {
			reasons = append(reasons, d.Error())
		}
		logger.Warn().
			Int("dropped", len(dropped)).
			Int("kept", len(entries)).
			Strs("reasons", reasons).
			Msg("Dropped malformed chat history entries")
	}
	return entries
}

func (h *TurnHandler) fail(w http.ResponseWriter, logger zerolog.Logger, err error) {
	status := statusFor(err)
	event := logger.Warn()
	if status >= 500 {
		event = logger.Error()
	}
	event.Err(err).Int("status", status).Str("stage", string(turn.FailedStage(err))).Msg("Turn request failed")
	writeJSON(w, status, models.ErrorResponse{Error: errorMessage(err)})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// turnContext detaches a submitted turn from the client connection. Only the
// per-stage timeouts bound it.
func turnContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func requestLogger(r *http.Request) zerolog.Logger {
	return log.With().
		Str("requestId", middleware.GetReqID(r.Context())).
		Str("path", r.URL.Path).
		Logger()
}

func sessionID(r *http.Request) string {
	if v := strings.TrimSpace(r.FormValue(SessionField)); v != "" {
		return v
	}
	return strings.TrimSpace(r.Header.Get(sessionHeader))
}
