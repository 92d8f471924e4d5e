// Package turn runs one voice turn: transcription, chat completion and
// synthesis, strictly in that order.
package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"voice-turn-service/internal/models"
	"voice-turn-service/internal/observability/logging"
	"voice-turn-service/internal/observability/metrics"
	"voice-turn-service/internal/service/chat"
	"voice-turn-service/internal/service/history"
	"voice-turn-service/internal/service/synthesis"
	"voice-turn-service/internal/service/transcription"
)

const (
	chatProvider      = "openai"
	synthesisProvider = "clone"
	publishTimeout    = 5 * time.Second
)

// Limits defines safety guardrails for a single turn.
type Limits struct {
	MaxAudioBytes int64
}

// DefaultLimits returns sensible default limits.
func DefaultLimits() Limits {
	return Limits{
		MaxAudioBytes: 25 * 1024 * 1024, // 25MB, several minutes of opus
	}
}

// Timeouts bound each stage call. Zero leaves the stage bounded only by the
// caller context and the adapter's HTTP client.
type Timeouts struct {
	Transcription time.Duration
	Chat          time.Duration
	Synthesis     time.Duration
}

// EventPublisher receives one event per finished turn.
type EventPublisher interface {
	PublishCompleted(ctx context.Context, key string, event any) error
	PublishFailed(ctx context.Context, key string, event any) error
}

// Audio is one recorded utterance.
type Audio struct {
	Data     []byte
	Filename string
	MimeType string
}

// Request is one complete turn.
type Request struct {
	SessionID string
	Audio     Audio
	History   []history.Entry
	// OnProgress, if set, is called as each stage starts.
	OnProgress func(Stage)
}

// Result is the outcome of a successful turn.
type Result struct {
	TurnID         string
	Transcript     string
	AssistantReply string
	AudioBase64    string
}

// Orchestrator sequences the adapters for one turn. It holds no
// conversation state; history arrives with every request.
type Orchestrator struct {
	transcriber transcription.Transcriber
	completer   chat.Completer
	synthesizer synthesis.Synthesizer
	publisher   EventPublisher
	metrics     *metrics.Metrics
	ids         *IDGenerator
	limits      Limits
	timeouts    Timeouts
	translate   bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPublisher sets the turn event publisher.
func WithPublisher(p EventPublisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithMetrics overrides metrics.DefaultMetrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLimits overrides DefaultLimits.
func WithLimits(l Limits) Option {
	return func(o *Orchestrator) { o.limits = l }
}

// WithTimeouts sets per-stage timeouts.
func WithTimeouts(t Timeouts) Option {
	return func(o *Orchestrator) { o.timeouts = t }
}

// WithTranslate asks the transcription service to translate into English.
func WithTranslate(translate bool) Option {
	return func(o *Orchestrator) { o.translate = translate }
}

// WithIDGenerator overrides the turn ID generator.
func WithIDGenerator(g *IDGenerator) Option {
	return func(o *Orchestrator) { o.ids = g }
}

// New creates an orchestrator over the three adapters.
func New(t transcription.Transcriber, c chat.Completer, s synthesis.Synthesizer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		transcriber: t,
		completer:   c,
		synthesizer: s,
		metrics:     metrics.DefaultMetrics,
		ids:         NewIDGenerator(),
		limits:      DefaultLimits(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NewTurnID issues an ID for a turn of the given session.
func (o *Orchestrator) NewTurnID(sessionID string) string {
	return o.ids.Next(sessionID)
}

// ValidateAudio rejects missing or oversized audio.
func (o *Orchestrator) ValidateAudio(a Audio) error {
	if len(a.Data) == 0 {
		return ErrMissingAudio
	}
	if o.limits.MaxAudioBytes > 0 && int64(len(a.Data)) > o.limits.MaxAudioBytes {
		o.metrics.RecordLimitExceeded("audio_bytes")
		return fmt.Errorf("%w: %d > %d bytes", ErrAudioTooLarge, len(a.Data), o.limits.MaxAudioBytes)
	}
	return nil
}

// Transcribe runs the transcription stage. A blank transcript fails with
// ErrEmptyTranscript.
func (o *Orchestrator) Transcribe(ctx context.Context, turnID string, a Audio) (string, error) {
	if err := o.ValidateAudio(a); err != nil {
		return "", err
	}

	var transcript string
	err := o.runStage(ctx, turnID, StageTranscription, o.transcriber.Name(), o.timeouts.Transcription,
		func(ctx context.Context) error {
			text, err := o.transcriber.Transcribe(ctx, transcription.Request{
				Audio:     a.Data,
				Filename:  a.Filename,
				MimeType:  a.MimeType,
				Translate: o.translate,
			})
			if err != nil {
				return err
			}
			transcript = strings.TrimSpace(text)
			if transcript == "" {
				o.metrics.RecordSilentTurn()
				return ErrEmptyTranscript
			}
			return nil
		})
	return transcript, err
}

// Reply runs the chat completion stage.
func (o *Orchestrator) Reply(ctx context.Context, turnID string, prior []history.Entry, transcript string) (string, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", ErrEmptyTranscript
	}

	var reply string
	err := o.runStage(ctx, turnID, StageChat, chatProvider, o.timeouts.Chat,
		func(ctx context.Context) error {
			text, err := o.completer.Complete(ctx, prior, transcript)
			if err != nil {
				if errors.Is(err, chat.ErrEmptyReply) {
					o.metrics.RecordEmptyReply()
				}
				return err
			}
			reply = text
			return nil
		})
	return reply, err
}

// Synthesize runs the synthesis stage.
func (o *Orchestrator) Synthesize(ctx context.Context, turnID, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}

	var audio string
	err := o.runStage(ctx, turnID, StageSynthesis, synthesisProvider, o.timeouts.Synthesis,
		func(ctx context.Context) error {
			b64, err := o.synthesizer.Synthesize(ctx, text)
			if err != nil {
				return err
			}
			audio = b64
			return nil
		})
	return audio, err
}

// Run executes a full turn. The first failing stage aborts the rest; its
// error is returned as *StageError. Exactly one turn event is published for
// every turn that passed validation.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	if err := o.ValidateAudio(req.Audio); err != nil {
		return Result{}, err
	}

	turnID := o.NewTurnID(req.SessionID)
	logger := logging.WithTurn(turnID, req.SessionID)
	lc := NewLifecycle(turnID)
	start := time.Now()

	o.metrics.RecordTurnStart(len(req.Audio.Data))
	logger.Info().
		Int("audioBytes", len(req.Audio.Data)).
		Str("mimeType", req.Audio.MimeType).
		Int("historyLength", len(req.History)).
		Msg("Turn started")

	enter := func(s Stage) {
		if err := lc.Enter(s); err != nil {
			logger.Error().Err(err).Msg("Turn lifecycle violation")
		}
		if req.OnProgress != nil {
			req.OnProgress(s)
		}
	}

	fail := func(err error) (Result, error) {
		stage := FailedStage(err)
		if !lc.Fail(stage) {
			return Result{TurnID: turnID}, err
		}
		elapsed := time.Since(start)
		o.metrics.RecordTurnEnd(string(stage), elapsed.Seconds())
		logger.Warn().Err(err).Str("stage", string(stage)).Dur("duration", elapsed).Msg("Turn failed")
		o.publish(ctx, logger, req.SessionID, turnID, models.TurnFailed{
			EventType:  models.EventTurnFailed,
			TurnID:     turnID,
			SessionID:  req.SessionID,
			Timestamp:  time.Now().UnixMilli(),
			Stage:      string(stage),
			Error:      err.Error(),
			DurationMs: elapsed.Milliseconds(),
		})
		return Result{TurnID: turnID}, err
	}

	enter(StageTranscription)
	transcript, err := o.Transcribe(ctx, turnID, req.Audio)
	if err != nil {
		return fail(err)
	}

	enter(StageChat)
	reply, err := o.Reply(ctx, turnID, req.History, transcript)
	if err != nil {
		return fail(err)
	}

	enter(StageSynthesis)
	audio, err := o.Synthesize(ctx, turnID, reply)
	if err != nil {
		return fail(err)
	}

	if err := lc.Complete(); err != nil {
		logger.Error().Err(err).Msg("Turn lifecycle violation")
	}
	elapsed := time.Since(start)
	o.metrics.RecordTurnEnd("", elapsed.Seconds())
	logger.Info().
		Int("transcriptChars", len(transcript)).
		Int("replyChars", len(reply)).
		Dur("duration", elapsed).
		Msg("Turn completed")

	o.publish(ctx, logger, req.SessionID, turnID, models.TurnCompleted{
		EventType:      models.EventTurnCompleted,
		TurnID:         turnID,
		SessionID:      req.SessionID,
		Timestamp:      time.Now().UnixMilli(),
		Transcript:     transcript,
		AssistantReply: reply,
		AudioBytes:     len(req.Audio.Data),
		HistoryLength:  len(req.History),
		DurationMs:     elapsed.Milliseconds(),
	})

	return Result{
		TurnID:         turnID,
		Transcript:     transcript,
		AssistantReply: reply,
		AudioBase64:    audio,
	}, nil
}

// runStage applies the stage timeout, records latency and wraps failures in
// a StageError.
func (o *Orchestrator) runStage(ctx context.Context, turnID string, stage Stage, provider string, timeout time.Duration, fn func(context.Context) error) error {
	logger := logging.WithStage(turnID, string(stage), provider)

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	o.metrics.RecordStage(string(stage), provider, errorType(err), elapsed.Seconds())

	if err != nil {
		logger.Error().Err(err).Dur("latency", elapsed).Msg("Stage failed")
		return &StageError{Stage: stage, Err: err}
	}
	logger.Debug().Dur("latency", elapsed).Msg("Stage completed")
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, logger zerolog.Logger, sessionID, turnID string, event any) {
	if o.publisher == nil {
		return
	}
	key := sessionID
	if key == "" {
		key = turnID
	}

	// The turn outcome is reported even if the client went away.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	var err error
	switch ev := event.(type) {
	case models.TurnCompleted:
		err = o.publisher.PublishCompleted(pctx, key, ev)
	case models.TurnFailed:
		err = o.publisher.PublishFailed(pctx, key, ev)
	default:
		err = fmt.Errorf("unknown event type %T", event)
	}
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to publish turn event")
	}
}
