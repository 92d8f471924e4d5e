package schema

import (
	"errors"
	"testing"

	"voice-turn-service/internal/models"
)

func TestValidator_Validate(t *testing.T) {
	completed := models.TurnCompleted{
		EventType:      models.EventTurnCompleted,
		TurnID:         "s1-turn-1",
		Timestamp:      1700000000000,
		Transcript:     "hello",
		AssistantReply: "hi there",
	}
	failed := models.TurnFailed{
		EventType: models.EventTurnFailed,
		TurnID:    "s1-turn-2",
		Timestamp: 1700000000000,
		Stage:     "chat",
		Error:     "chat service returned an empty reply",
	}

	tests := []struct {
		name    string
		event   any
		wantErr bool
	}{
		{"completed", completed, false},
		{"completed pointer", &completed, false},
		{"failed", failed, false},
		{"failed pointer", &failed, false},
		{"wrong event type", models.TurnCompleted{EventType: models.EventTurnFailed, TurnID: "t", Timestamp: 1, Transcript: "a", AssistantReply: "b"}, true},
		{"missing turn id", models.TurnCompleted{EventType: models.EventTurnCompleted, Timestamp: 1, Transcript: "a", AssistantReply: "b"}, true},
		{"missing timestamp", models.TurnFailed{EventType: models.EventTurnFailed, TurnID: "t", Stage: "chat", Error: "x"}, true},
		{"blank reply", models.TurnCompleted{EventType: models.EventTurnCompleted, TurnID: "t", Timestamp: 1, Transcript: "a", AssistantReply: " "}, true},
		{"unknown stage", models.TurnFailed{EventType: models.EventTurnFailed, TurnID: "t", Timestamp: 1, Stage: "playback", Error: "x"}, true},
		{"missing error", models.TurnFailed{EventType: models.EventTurnFailed, TurnID: "t", Timestamp: 1, Stage: "synthesis"}, true},
		{"negative duration", models.TurnFailed{EventType: models.EventTurnFailed, TurnID: "t", Timestamp: 1, Stage: "chat", Error: "x", DurationMs: -1}, true},
		{"blank transcript", models.TurnCompleted{EventType: models.EventTurnCompleted, TurnID: "t", Timestamp: 1, Transcript: "\t ", AssistantReply: "b"}, true},
		{"nil pointer", (*models.TurnFailed)(nil), true},
		{"unmarshalable", make(chan int), true},
		{"unsupported type", map[string]string{"turnId": "t"}, true},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.event)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("expected ErrInvalidEvent, got %v", err)
			}
		})
	}
}
