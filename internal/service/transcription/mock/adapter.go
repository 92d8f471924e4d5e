// Package mock provides a transcription adapter for running the pipeline
// without a speech service. It returns canned utterances in rotation after a
// short simulated processing delay.
package mock

import (
	"context"
	"sync"
	"time"

	"voice-turn-service/internal/service/transcription"
)

// DefaultUtterances provides sample transcripts for simulation.
var DefaultUtterances = []string{
	"Hello, can you hear me?",
	"What is the weather like today?",
	"Tell me a short story about a lighthouse.",
	"Can you say that again more slowly?",
	"Thank you very much",
}

// Adapter implements transcription.Transcriber with canned responses.
type Adapter struct {
	utterances []string
	delay      time.Duration

	mu    sync.Mutex
	next  int
	calls int
}

// Option configures the mock adapter.
type Option func(*Adapter)

// WithUtterances replaces DefaultUtterances.
func WithUtterances(utterances ...string) Option {
	return func(a *Adapter) {
		a.utterances = utterances
	}
}

// WithDelay sets the simulated processing delay.
func WithDelay(d time.Duration) Option {
	return func(a *Adapter) {
		a.delay = d
	}
}

// New creates a new mock transcription adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{
		utterances: DefaultUtterances,
		delay:      50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the provider name.
func (a *Adapter) Name() string { return "mock" }

// Transcribe returns the next utterance. Empty audio yields an empty
// transcript, like silence would.
func (a *Adapter) Transcribe(ctx context.Context, req transcription.Request) (string, error) {
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++

	if len(req.Audio) == 0 || len(a.utterances) == 0 {
		return "", nil
	}
	text := a.utterances[a.next%len(a.utterances)]
	a.next++
	return text, nil
}

// Calls returns how many times Transcribe was invoked.
func (a *Adapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}
