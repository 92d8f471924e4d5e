// Package whisper provides a transcription client for whisper.cpp style
// HTTP inference servers.
package whisper

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

	"voice-turn-service/internal/service/transcription"
)

const (
	// FileField is the multipart field carrying the audio.
	FileField = "file"

	// DefaultURL is the inference endpoint of a local whisper.cpp server.
	DefaultURL = "http://127.0.0.1:9191/inference"

	maxResponseBytes = 1 << 20
)

// ErrResponseTooLarge is returned when a successful response body exceeds the
// read limit.
var ErrResponseTooLarge = errors.New("transcription response too large")

// Config holds whisper client settings.
type Config struct {
	URL     string
	Timeout time.Duration
}

// DefaultConfig returns the defaults for a local whisper.cpp server.
func DefaultConfig() Config {
	return Config{
		URL:     DefaultURL,
		Timeout: 120 * time.Second,
	}
}

// Client implements transcription.Transcriber over multipart HTTP.
type Client struct {
	url        string
	httpClient *http.Client
}

// New creates a whisper client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("whisper: url is required")
	}
	return &Client{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Name returns the provider name.
func (c *Client) Name() string { return "http" }

// Transcribe posts the audio and returns the trimmed transcript.
func (c *Client) Transcribe(ctx context.Context, req transcription.Request) (string, error) {
	body, contentType, err := encodeForm(req)
	if err != nil {
		return "", fmt.Errorf("encode form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return "", fmt.Errorf("read transcription response: %w", err)
	}
	overflow := len(raw) > maxResponseBytes
	if overflow {
		raw = raw[:maxResponseBytes]
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &transcription.ServiceError{Status: resp.StatusCode, Body: string(raw)}
	}
	if overflow {
		return "", fmt.Errorf("%w: over %d bytes", ErrResponseTooLarge, maxResponseBytes)
	}

	return transcription.SingleLine(extractText(resp.Header.Get("Content-Type"), raw)), nil
}

func encodeForm(req transcription.Request) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	filename := req.Filename
	if filename == "" {
		filename = "recording.webm"
	}
	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FileField, filename))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.Audio); err != nil {
		return nil, "", err
	}

	if err := w.WriteField("response_format", "text"); err != nil {
		return nil, "", err
	}
	if req.Translate {
		if err := w.WriteField("translate", "true"); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// extractText accepts a plain text body or a JSON object with a text field.
// Anything else falls back to the raw body.
func extractText(contentType string, raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	if strings.Contains(contentType, "json") || bytes.HasPrefix(trimmed, []byte("{")) {
		var payload struct {
			Text *string `json:"text"`
		}
		if err := json.Unmarshal(trimmed, &payload); err == nil && payload.Text != nil {
			return strings.TrimSpace(*payload.Text)
		}
	}
	return string(trimmed)
}
