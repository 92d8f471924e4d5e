package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"voice-turn-service/internal/models"
	"voice-turn-service/internal/schema"
)

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true, Brokers: []string{}}},
		{"empty brokers", &Config{Enabled: true, Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.Enabled() {
				t.Error("expected publisher to be disabled")
			}
			if p.writerCompleted != nil || p.writerFailed != nil {
				t.Error("expected nil writers when disabled")
			}
		})
	}
}

func TestNew_EnabledBuildsWriters(t *testing.T) {
	p := New(&Config{
		Enabled:        true,
		Brokers:        []string{"localhost:9092"},
		TopicCompleted: "voice.turn.completed",
		TopicFailed:    "voice.turn.failed",
	})
	defer p.Close()

	if !p.Enabled() {
		t.Fatal("expected publisher to be enabled")
	}
	if p.writerCompleted.Topic != "voice.turn.completed" {
		t.Errorf("unexpected completed topic %s", p.writerCompleted.Topic)
	}
	if p.writerFailed.Topic != "voice.turn.failed" {
		t.Errorf("unexpected failed topic %s", p.writerFailed.Topic)
	}
	if p.writerCompleted.WriteTimeout != 10*time.Second {
		t.Errorf("expected default write timeout, got %v", p.writerCompleted.WriteTimeout)
	}
}

func TestNew_ConfigValues(t *testing.T) {
	p := New(&Config{
		Enabled:        false,
		Brokers:        []string{"localhost:9092"},
		TopicCompleted: "test.completed",
		TopicFailed:    "test.failed",
		Principal:      "test-principal",
	})

	if p.principal != "test-principal" {
		t.Errorf("expected principal 'test-principal', got %s", p.principal)
	}
	if p.topicCompleted != "test.completed" {
		t.Errorf("expected topic 'test.completed', got %s", p.topicCompleted)
	}
	if p.topicFailed != "test.failed" {
		t.Errorf("expected topic 'test.failed', got %s", p.topicFailed)
	}
}

func TestPublisher_Disabled_PublishesToLogOnly(t *testing.T) {
	p := New(&Config{Enabled: false, TopicCompleted: "c", TopicFailed: "f", Principal: "test-svc"})

	completed := models.TurnCompleted{
		EventType:      models.EventTurnCompleted,
		TurnID:         "turn-1",
		SessionID:      "session-1",
		Timestamp:      time.Now().UnixMilli(),
		Transcript:     "hello",
		AssistantReply: "hi there",
	}
	if err := p.PublishCompleted(context.Background(), "session-1", completed); err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	failed := models.TurnFailed{
		EventType: models.EventTurnFailed,
		TurnID:    "turn-2",
		Timestamp: time.Now().UnixMilli(),
		Stage:     "chat",
		Error:     "chat service returned an empty reply",
	}
	if err := p.PublishFailed(context.Background(), "session-1", failed); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestPublisher_RejectsInvalidEvents(t *testing.T) {
	p := New(&Config{Enabled: false})

	tests := []struct {
		name  string
		event any
	}{
		{"unsupported type", make(chan int)},
		{"missing turn id", models.TurnCompleted{EventType: models.EventTurnCompleted, Timestamp: 1, Transcript: "a", AssistantReply: "b"}},
		{"unknown stage", models.TurnFailed{EventType: models.EventTurnFailed, TurnID: "t", Timestamp: 1, Stage: "?", Error: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.PublishCompleted(context.Background(), "k", tt.event)
			if !errors.Is(err, schema.ErrInvalidEvent) {
				t.Errorf("expected ErrInvalidEvent, got %v", err)
			}
		})
	}
}

func TestPublisher_Close_NoWriters(t *testing.T) {
	p := New(&Config{Enabled: false})
	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing disabled publisher, got %v", err)
	}

	empty := &Publisher{}
	if err := empty.Close(); err != nil {
		t.Errorf("expected no error closing publisher with nil writers, got %v", err)
	}
}
