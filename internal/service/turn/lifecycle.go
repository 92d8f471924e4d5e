package turn

import (
	"errors"
	"fmt"
	"sync"
)

// Phase is the lifecycle position of one turn.
type Phase int

const (
	PhasePending Phase = iota
	PhaseTranscribing
	PhaseThinking
	PhaseSpeaking
	// PhaseCompleted - reply synthesized and returned.
	PhaseCompleted
	// PhaseFailed - a stage aborted the turn. Terminal.
	PhaseFailed
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "PENDING"
	case PhaseTranscribing:
		return "TRANSCRIBING"
	case PhaseThinking:
		return "THINKING"
	case PhaseSpeaking:
		return "SPEAKING"
	case PhaseCompleted:
		return "COMPLETED"
	case PhaseFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", p)
	}
}

// IsTerminal returns true for COMPLETED and FAILED.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

func phaseFor(s Stage) Phase {
	switch s {
	case StageTranscription:
		return PhaseTranscribing
	case StageChat:
		return PhaseThinking
	case StageSynthesis:
		return PhaseSpeaking
	default:
		return PhasePending
	}
}

// Errors for invalid lifecycle transitions.
var (
	ErrTurnFinished    = errors.New("turn already finished")
	ErrStageOutOfOrder = errors.New("stage out of order")
)

// Lifecycle enforces the stage order of a single turn and guarantees exactly
// one outcome.
//
// Phase transitions:
//
//	PENDING → TRANSCRIBING → THINKING → SPEAKING → COMPLETED
//	              │             │           │
//	              └─────────────┴───────────┴── Fail() ──→ FAILED
//
// Rules:
//   - Stages run strictly in order, each at most once
//   - Complete is only valid from SPEAKING
//   - Fail succeeds once, from any non-terminal phase
type Lifecycle struct {
	mu     sync.Mutex
	turnID string
	phase  Phase
	failed Stage
}

// NewLifecycle creates a lifecycle in PENDING.
func NewLifecycle(turnID string) *Lifecycle {
	return &Lifecycle{turnID: turnID, phase: PhasePending}
}

// TurnID returns the turn ID.
func (l *Lifecycle) TurnID() string {
	return l.turnID
}

// Phase returns the current phase.
func (l *Lifecycle) Phase() Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phase
}

// Enter moves to the phase running stage s.
func (l *Lifecycle) Enter(s Stage) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.phase.IsTerminal() {
		return ErrTurnFinished
	}
	next := phaseFor(s)
	if next == PhasePending || next != l.phase+1 {
		return fmt.Errorf("%w: %s after %s", ErrStageOutOfOrder, s, l.phase)
	}
	l.phase = next
	return nil
}

// Complete marks the turn completed.
func (l *Lifecycle) Complete() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.phase {
	case PhaseSpeaking:
		l.phase = PhaseCompleted
		return nil
	case PhaseCompleted, PhaseFailed:
		return ErrTurnFinished
	default:
		return fmt.Errorf("%w: complete during %s", ErrStageOutOfOrder, l.phase)
	}
}

// Fail marks the turn failed at stage s. Returns false if the turn had
// already finished.
func (l *Lifecycle) Fail(s Stage) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.phase.IsTerminal() {
		return false
	}
	l.phase = PhaseFailed
	l.failed = s
	return true
}

// FailedStage returns the stage passed to Fail, if any.
func (l *Lifecycle) FailedStage() Stage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failed
}
