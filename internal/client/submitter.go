// Package client submits recorded turns to the voice turn service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"voice-turn-service/internal/models"
	"voice-turn-service/internal/service/history"
	"voice-turn-service/internal/service/recorder"
)

// Transport granularity of a Submitter.
const (
	ModeSingle = "single"
	ModeStaged = "staged"
)

// Progress labels reported by the staged transport.
const (
	ProgressTranscribing = "transcribing"
	ProgressThinking     = "thinking"
	ProgressSpeaking     = "speaking"
)

// ErrMissingAudio is returned before any request when the blob is empty.
var ErrMissingAudio = errors.New("missing audio")

// ResponseError is a non-2xx answer from the service.
type ResponseError struct {
	Status  int
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("turn service returned status %d: %s", e.Status, e.Message)
}

// Submitter sends one recorded turn and its prior history to the service.
type Submitter interface {
	SubmitTurn(ctx context.Context, blob recorder.Blob, prior []history.Entry, onProgress func(string)) (models.TurnResponse, error)
}

// Config selects the service endpoint and transport.
type Config struct {
	BaseURL   string
	Mode      string
	SessionID string
	Timeout   time.Duration
}

// New returns the Submitter for cfg.Mode. An empty mode means single.
func New(cfg Config) (Submitter, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("client: base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	t := transport{
		base:      base,
		sessionID: cfg.SessionID,
		http:      &http.Client{Timeout: timeout},
		logger:    log.With().Str("component", "turn-client").Str("mode", cfg.Mode).Logger(),
	}

	switch cfg.Mode {
	case "", ModeSingle:
		return &singleSubmitter{t}, nil
	case ModeStaged:
		return &stagedSubmitter{t}, nil
	default:
		return nil, fmt.Errorf("client: unknown mode %q", cfg.Mode)
	}
}

type transport struct {
	base      string
	sessionID string
	http      *http.Client
	logger    zerolog.Logger
}

type singleSubmitter struct{ transport }

// SubmitTurn posts the blob and history to /api/turn.
func (s *singleSubmitter) SubmitTurn(ctx context.Context, blob recorder.Blob, prior []history.Entry, _ func(string)) (models.TurnResponse, error) {
	if len(blob.Data) == 0 {
		return models.TurnResponse{}, ErrMissingAudio
	}
	var out models.TurnResponse
	if err := s.postAudio(ctx, "/api/turn", blob, prior, &out); err != nil {
		return models.TurnResponse{}, err
	}
	return out, nil
}

type stagedSubmitter struct{ transport }

// SubmitTurn runs transcribe, reply and synthesize as three requests.
func (s *stagedSubmitter) SubmitTurn(ctx context.Context, blob recorder.Blob, prior []history.Entry, onProgress func(string)) (models.TurnResponse, error) {
	if len(blob.Data) == 0 {
		return models.TurnResponse{}, ErrMissingAudio
	}
	progress := func(p string) {
		if onProgress != nil {
			onProgress(p)
		}
	}

	progress(ProgressTranscribing)
	var tr models.TranscribeResponse
	if err := s.postAudio(ctx, "/api/transcribe", blob, nil, &tr); err != nil {
		return models.TurnResponse{}, fmt.Errorf("transcribe: %w", err)
	}

	progress(ProgressThinking)
	raw, err := marshalHistory(prior)
	if err != nil {
		return models.TurnResponse{}, err
	}
	var rr models.ReplyResponse
	if err := s.postJSON(ctx, "/api/llm-reply", models.ReplyRequest{
		TurnID:      tr.TurnID,
		Transcript:  tr.Transcript,
		ChatHistory: raw,
	}, &rr); err != nil {
		return models.TurnResponse{}, fmt.Errorf("reply: %w", err)
	}

	progress(ProgressSpeaking)
	var sr models.SynthesizeResponse
	if err := s.postJSON(ctx, "/api/synthesize", models.SynthesizeRequest{
		TurnID: tr.TurnID,
		Text:   rr.AssistantReply,
	}, &sr); err != nil {
		return models.TurnResponse{}, fmt.Errorf("synthesize: %w", err)
	}

	return models.TurnResponse{
		TurnID:         tr.TurnID,
		Transcript:     tr.Transcript,
		AssistantReply: rr.AssistantReply,
		AudioBase64:    sr.AudioBase64,
	}, nil
}

func marshalHistory(prior []history.Entry) ([]byte, error) {
	if prior == nil {
		prior = []history.Entry{}
	}
	raw, err := json.Marshal(prior)
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}
	return raw, nil
}

// postAudio sends a multipart turn form. A nil prior omits the history field.
func (t *transport) postAudio(ctx context.Context, path string, blob recorder.Blob, prior []history.Entry, out any) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	filename := blob.Filename
	if filename == "" {
		filename = recorder.FilenameFor(blob.MimeType)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename=%q`, filename))
	if blob.MimeType != "" {
		h.Set("Content-Type", blob.MimeType)
	} else {
		h.Set("Content-Type", "application/octet-stream")
	}
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create audio part: %w", err)
	}
	if _, err := part.Write(blob.Data); err != nil {
		return fmt.Errorf("write audio part: %w", err)
	}

	if prior != nil {
		raw, err := marshalHistory(prior)
		if err != nil {
			return err
		}
		if err := mw.WriteField("chatHistory", string(raw)); err != nil {
			return fmt.Errorf("write history: %w", err)
		}
	}
	if t.sessionID != "" {
		if err := mw.WriteField("sessionId", t.sessionID); err != nil {
			return fmt.Errorf("write session: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	return t.do(ctx, path, mw.FormDataContentType(), &body, out)
}

func (t *transport) postJSON(ctx context.Context, path string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return t.do(ctx, path, "application/json", bytes.NewReader(data), out)
}

func (t *transport) do(ctx context.Context, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if t.sessionID != "" {
		req.Header.Set("X-Session-ID", t.sessionID)
	}

	start := time.Now()
	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	t.logger.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Turn request finished")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e models.ErrorResponse
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &ResponseError{Status: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
