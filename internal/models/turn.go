// Package models defines the wire payloads and events for voice turns.
package models

import "encoding/json"

// Event types published for every turn that reaches the orchestrator.
const (
	EventTurnCompleted = "voice.turn.completed"
	EventTurnFailed    = "voice.turn.failed"
)

// TurnCompleted is published after all three stages succeeded.
type TurnCompleted struct {
	EventType      string `json:"eventType"`
	TurnID         string `json:"turnId"`
	SessionID      string `json:"sessionId,omitempty"`
	Timestamp      int64  `json:"timestamp"`
	Transcript     string `json:"transcript"`
	AssistantReply string `json:"assistantReply"`
	AudioBytes     int    `json:"audioBytes"`
	HistoryLength  int    `json:"historyLength"`
	DurationMs     int64  `json:"durationMs"`
}

// TurnFailed is published when a stage aborted the turn.
type TurnFailed struct {
	EventType  string `json:"eventType"`
	TurnID     string `json:"turnId"`
	SessionID  string `json:"sessionId,omitempty"`
	Timestamp  int64  `json:"timestamp"`
	Stage      string `json:"stage"`
	Error      string `json:"error"`
	DurationMs int64  `json:"durationMs"`
}

// TurnResponse is the success body of POST /api/turn.
type TurnResponse struct {
	TurnID         string `json:"turnId"`
	Transcript     string `json:"transcript"`
	AssistantReply string `json:"assistantReply"`
	AudioBase64    string `json:"audioBase64,omitempty"`
}

// TranscribeResponse is the success body of POST /api/transcribe.
type TranscribeResponse struct {
	TurnID     string `json:"turnId"`
	Transcript string `json:"transcript"`
}

// ReplyRequest is the body of POST /api/llm-reply. ChatHistory is kept raw so
// malformed entries can be dropped one by one instead of failing the decode.
type ReplyRequest struct {
	TurnID      string          `json:"turnId,omitempty"`
	Transcript  string          `json:"transcript"`
	ChatHistory json.RawMessage `json:"chatHistory,omitempty"`
}

// ReplyResponse is the success body of POST /api/llm-reply.
type ReplyResponse struct {
	AssistantReply string `json:"assistantReply"`
}

// SynthesizeRequest is the body of POST /api/synthesize.
type SynthesizeRequest struct {
	TurnID string `json:"turnId,omitempty"`
	Text   string `json:"text"`
}

// SynthesizeResponse is the success body of POST /api/synthesize.
type SynthesizeResponse struct {
	AudioBase64 string `json:"audioBase64"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}
