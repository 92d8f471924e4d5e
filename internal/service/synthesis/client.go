// Package synthesis speaks assistant replies with a cloned reference voice.
package synthesis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// AutoLanguage lets the synthesis service detect the language itself.
const AutoLanguage = "Auto"

// DefaultTimeout covers slow first-token latency on cold models.
const DefaultTimeout = 300 * time.Second

// ErrMissingAudio is returned when a 2xx response carries no audio.
var ErrMissingAudio = errors.New("synthesis response missing audio_base64")

// ServiceError is returned when the synthesis service answers with a non-2xx
// status.
type ServiceError struct {
	Status int
	Body   string
}

func (e *ServiceError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("synthesis service returned status %d: %s", e.Status, body)
}

// Synthesizer converts reply text into base64 encoded audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// Config holds synthesis client settings.
type Config struct {
	URL      string
	Language string
	Timeout  time.Duration
}

type cloneRequest struct {
	RefAudioBase64 string `json:"ref_audio_base64"`
	RefText        string `json:"ref_text"`
	SynText        string `json:"syn_text"`
	SynLang        string `json:"syn_lang"`
}

type cloneResponse struct {
	AudioBase64 string `json:"audio_base64"`
}

// Client implements Synthesizer against a voice-clone server.
type Client struct {
	endpoint   string
	language   string
	voice      *ReferenceVoice
	refAudio   string
	httpClient *http.Client
}

// New creates a synthesis client speaking with voice.
func New(cfg Config, voice *ReferenceVoice) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, errors.New("synthesis: url is required")
	}
	if voice == nil {
		return nil, errors.New("synthesis: reference voice is required")
	}
	language := strings.TrimSpace(cfg.Language)
	if language == "" {
		language = AutoLanguage
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		endpoint:   base + "/clone",
		language:   language,
		voice:      voice,
		refAudio:   base64.StdEncoding.EncodeToString(voice.Audio()),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Synthesize returns the synthesized audio, base64 encoded as received.
func (c *Client) Synthesize(ctx context.Context, text string) (string, error) {
	payload, err := json.Marshal(cloneRequest{
		RefAudioBase64: c.refAudio,
		RefText:        c.voice.Text(),
		SynText:        text,
		SynLang:        c.language,
	})
	if err != nil {
		return "", fmt.Errorf("encode clone request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return "", &ServiceError{Status: resp.StatusCode, Body: string(body)}
	}

	var out cloneResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode clone response: %w", err)
	}
	if strings.TrimSpace(out.AudioBase64) == "" {
		return "", ErrMissingAudio
	}
	return out.AudioBase64, nil
}
