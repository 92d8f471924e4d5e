// Package recorder provides the client-side recording state machine that
// captures one encoded audio blob per voice turn.
package recorder

import "fmt"

// State represents the lifecycle state of the recorder.
type State int

const (
	// StateIdle - No recording session exists.
	StateIdle State = iota
	// StateRequesting - Waiting for the device to grant access.
	StateRequesting
	// StateRecording - Encoder is producing chunks.
	StateRecording
	// StateFinalizing - Encoder stop requested, blob being assembled and submitted.
	StateFinalizing
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRequesting:
		return "REQUESTING"
	case StateRecording:
		return "RECORDING"
	case StateFinalizing:
		return "FINALIZING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Busy returns true while a recording session exists.
func (s State) Busy() bool {
	return s != StateIdle
}
