// Package chat turns a transcript and the prior conversation into an
// assistant reply using an OpenAI-compatible chat completion endpoint.
package chat

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"voice-turn-service/internal/service/history"
)

// ErrEmptyReply is returned when the service answers without usable text.
var ErrEmptyReply = errors.New("chat service returned an empty reply")

// ServiceError wraps a failed call to the chat completion service.
// Status is zero when no HTTP response was received.
type ServiceError struct {
	Status int
	Err    error
}

func (e *ServiceError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("chat service: %v", e.Err)
	}
	return fmt.Sprintf("chat service returned status %d: %v", e.Status, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Completer produces the assistant reply for one turn.
type Completer interface {
	Complete(ctx context.Context, prior []history.Entry, transcript string) (string, error)
}

// Config holds chat completion settings.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
	Prompts     Prompts
}

// Client implements Completer with go-openai.
type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	prompts     Prompts
}

// New creates a chat client. An empty BaseURL targets api.openai.com.
func New(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		return nil, errors.New("chat: model is required")
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		prompts:     cfg.Prompts,
	}, nil
}

// Complete sends the conversation and returns the trimmed reply.
func (c *Client) Complete(ctx context.Context, prior []history.Entry, transcript string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    BuildMessages(c.prompts, prior, transcript),
		Temperature: wireTemperature(c.temperature),
	})
	if err != nil {
		return "", &ServiceError{Status: statusOf(err), Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}

// BuildMessages orders the request messages: system prompt, pre-prompt,
// prior history, the new transcript as the last user message, then the
// post-prompt. Empty prompts are left out.
func BuildMessages(p Prompts, prior []history.Entry, transcript string) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(prior)+4)
	if s := strings.TrimSpace(p.System); s != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: s})
	}
	if s := strings.TrimSpace(p.Pre); s != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: s})
	}
	for _, e := range prior {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: roleFor(e.Role), Content: e.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: transcript})
	if s := strings.TrimSpace(p.Post); s != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: s})
	}
	return msgs
}

// wireTemperature keeps a configured zero on the wire. The request field is
// omitempty, and an absent temperature means the server default.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

func roleFor(r history.Role) string {
	if r == history.RoleAssistant {
		return openai.ChatMessageRoleAssistant
	}
	return openai.ChatMessageRoleUser
}

func statusOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
