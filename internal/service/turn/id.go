package turn

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator issues turn IDs. Each session numbers its own turns from 1.
// Turns without a session share a sequence scoped by a per-process instance ID.
type IDGenerator struct {
	instance string

	mu  sync.Mutex
	seq map[string]uint64
}

// NewIDGenerator creates a generator with a fresh instance ID.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{instance: uuid.NewString(), seq: make(map[string]uint64)}
}

// Next returns the next turn ID for the session.
func (g *IDGenerator) Next(sessionID string) string {
	scope := sessionID
	if scope == "" {
		scope = g.instance
	}

	g.mu.Lock()
	g.seq[scope]++
	n := g.seq[scope]
	g.mu.Unlock()

	return fmt.Sprintf("%s-turn-%d", scope, n)
}
