// Package history holds the client-side chat history that gives the language
// model context across voice turns.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Role tags who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the two roles a history may carry.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

var (
	ErrInvalidRole  = errors.New("role must be user or assistant")
	ErrEmptyContent = errors.New("content is empty")
)

// Turn is one stored exchange half. Audio is an optional reference to the
// played-back reply and never leaves the client.
type Turn struct {
	Role    Role
	Content string
	Audio   []byte
}

// NewTurn validates and trims a turn before it can be stored.
func NewTurn(role Role, content string, audio []byte) (Turn, error) {
	if !role.Valid() {
		return Turn{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return Turn{}, ErrEmptyContent
	}
	return Turn{Role: role, Content: content, Audio: audio}, nil
}

// Entry is the wire form of a turn: role and content only.
type Entry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History is an insertion-ordered sequence of turns. Alternation of roles is
// not enforced. It is safe for concurrent use.
type History struct {
	mu    sync.RWMutex
	turns []Turn
}

// New returns an empty history.
func New() *History {
	return &History{}
}

// Append validates every turn and stores all of them, or none.
func (h *History) Append(turns ...Turn) error {
	valid := make([]Turn, 0, len(turns))
	for i, t := range turns {
		vt, err := NewTurn(t.Role, t.Content, t.Audio)
		if err != nil {
			return fmt.Errorf("turn %d: %w", i, err)
		}
		valid = append(valid, vt)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, valid...)
	return nil
}

// AppendExchange stores the user and assistant halves of one successful turn.
func (h *History) AppendExchange(transcript, reply string, replyAudio []byte) error {
	return h.Append(
		Turn{Role: RoleUser, Content: transcript},
		Turn{Role: RoleAssistant, Content: reply, Audio: replyAudio},
	)
}

// Len returns the number of stored turns.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Turns returns a copy of the stored turns.
func (h *History) Turns() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Entries returns a snapshot of the history with audio references stripped.
func (h *History) Entries() []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return ToEntries(h.turns)
}

// MarshalJSON serializes the snapshot as [{role, content}].
func (h *History) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Entries())
}

// Clear discards every turn at once and returns how many were dropped.
func (h *History) Clear() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.turns)
	h.turns = nil
	return n
}

// ToEntries converts turns to their wire form.
func ToEntries(turns []Turn) []Entry {
	out := make([]Entry, 0, len(turns))
	for _, t := range turns {
		out = append(out, Entry{Role: t.Role, Content: t.Content})
	}
	return out
}
