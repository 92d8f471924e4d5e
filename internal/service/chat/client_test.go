package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"

	"voice-turn-service/internal/service/history"
)

type capturedMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type capturedRequest struct {
	Model       string            `json:"model"`
	Temperature float32           `json:"temperature"`
	Messages    []capturedMessage `json:"messages"`
}

func newTestServer(t *testing.T, status int, body string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if captured != nil {
			if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func newTestClient(t *testing.T, url string, prompts Prompts) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL:     url + "/",
		APIKey:      "test-key",
		Model:       "test-model",
		Temperature: 0.4,
		Timeout:     5 * time.Second,
		Prompts:     prompts,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_RequiresModel(t *testing.T) {
	if _, err := New(Config{APIKey: "k"}); err == nil {
		t.Error("expected error for missing model")
	}
}

func TestBuildMessages_Order(t *testing.T) {
	prior := []history.Entry{
		{Role: history.RoleUser, Content: "hello"},
		{Role: history.RoleAssistant, Content: "hi there"},
	}
	msgs := BuildMessages(Prompts{System: "sys", Pre: "pre", Post: "post"}, prior, "how are you")

	want := []openai.ChatCompletionMessage{
		{Role: "system", Content: "sys"},
		{Role: "system", Content: "pre"},
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi there"},
		{Role: "user", Content: "how are you"},
		{Role: "system", Content: "post"},
	}
	if len(msgs) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(msgs))
	}
	for i := range want {
		if msgs[i].Role != want[i].Role || msgs[i].Content != want[i].Content {
			t.Errorf("message %d: expected %s/%q, got %s/%q", i, want[i].Role, want[i].Content, msgs[i].Role, msgs[i].Content)
		}
	}
}

func TestBuildMessages_OmitsEmptyPrompts(t *testing.T) {
	msgs := BuildMessages(Prompts{System: "sys", Pre: "  "}, nil, "hello")
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[1].Role != "user" || msgs[1].Content != "hello" {
		t.Errorf("expected transcript last, got %+v", msgs[1])
	}
}

func TestComplete_Success(t *testing.T) {
	var captured capturedRequest
	srv := newTestServer(t, http.StatusOK,
		`{"choices":[{"index":0,"message":{"role":"assistant","content":"  hi there \n"}}]}`, &captured)
	defer srv.Close()

	c := newTestClient(t, srv.URL, Prompts{System: "sys"})
	reply, err := c.Complete(context.Background(), []history.Entry{{Role: history.RoleUser, Content: "earlier"}}, "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "hi there" {
		t.Errorf("expected trimmed reply, got %q", reply)
	}
	if captured.Model != "test-model" {
		t.Errorf("expected model test-model, got %s", captured.Model)
	}
	if captured.Temperature != 0.4 {
		t.Errorf("expected temperature 0.4, got %v", captured.Temperature)
	}
	if len(captured.Messages) != 3 || captured.Messages[2].Content != "hello" {
		t.Errorf("unexpected messages %+v", captured.Messages)
	}
}

func TestComplete_EmptyReply(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no choices", `{"choices":[]}`},
		{"null content", `{"choices":[{"message":{"role":"assistant","content":null}}]}`},
		{"blank content", `{"choices":[{"message":{"role":"assistant","content":"   \n"}}]}`},
		{"missing message", `{"choices":[{"index":0}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, http.StatusOK, tt.body, nil)
			defer srv.Close()

			c := newTestClient(t, srv.URL, Prompts{})
			_, err := c.Complete(context.Background(), nil, "hello")
			if !errors.Is(err, ErrEmptyReply) {
				t.Errorf("expected ErrEmptyReply, got %v", err)
			}
		})
	}
}

func TestComplete_ServiceError(t *testing.T) {
	srv := newTestServer(t, http.StatusInternalServerError,
		`{"error":{"message":"model overloaded","type":"server_error"}}`, nil)
	defer srv.Close()

	c := newTestClient(t, srv.URL, Prompts{})
	_, err := c.Complete(context.Background(), nil, "hello")

	var se *ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if se.Status != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", se.Status)
	}
	if errors.Is(err, ErrEmptyReply) {
		t.Error("service failure must not be reported as empty reply")
	}
}

func TestComplete_Unreachable(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{}`, nil)
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url, Prompts{})
	_, err := c.Complete(context.Background(), nil, "hello")

	var se *ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if se.Status != 0 {
		t.Errorf("expected no status, got %d", se.Status)
	}
}

func TestLoadPrompts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	content := "system: |\n  Be a pirate.\npost: Keep it short.\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	base := Prompts{System: "default", Pre: "default pre"}
	p, err := LoadPrompts(path, base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.System != "Be a pirate." {
		t.Errorf("expected system override, got %q", p.System)
	}
	if p.Pre != "default pre" {
		t.Errorf("expected pre kept, got %q", p.Pre)
	}
	if p.Post != "Keep it short." {
		t.Errorf("expected post override, got %q", p.Post)
	}
}

func TestLoadPrompts_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadPrompts(filepath.Join(dir, "missing.yaml"), Prompts{}); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("system: [unclosed"), 0o600)
	if _, err := LoadPrompts(bad, Prompts{}); err == nil {
		t.Error("expected error for invalid yaml")
	}
}

func TestComplete_ZeroTemperatureIsSent(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, Model: "m", Temperature: 0, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Complete(context.Background(), nil, "hello"); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	temp, ok := body["temperature"].(float64)
	if !ok {
		t.Fatalf("request has no temperature field: %v", body)
	}
	if temp <= 0 || temp > 1e-6 {
		t.Errorf("temperature = %v, want effectively zero", temp)
	}
}
