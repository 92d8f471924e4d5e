package history

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MalformedEntry describes one history entry that was dropped during
// normalization. It never fails a turn.
type MalformedEntry struct {
	Index  int
	Reason string
}

func (m MalformedEntry) Error() string {
	if m.Index < 0 {
		return "malformed history: " + m.Reason
	}
	return fmt.Sprintf("malformed history entry %d: %s", m.Index, m.Reason)
}

// Normalize keeps the valid entries of raw in their original order, each with
// trimmed non-empty content, and reports the ones it dropped.
func Normalize(raw []any) ([]Entry, []MalformedEntry) {
	entries := make([]Entry, 0, len(raw))
	var dropped []MalformedEntry

	for i, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			dropped = append(dropped, MalformedEntry{Index: i, Reason: "not an object"})
			continue
		}
		role, _ := obj["role"].(string)
		if !Role(role).Valid() {
			dropped = append(dropped, MalformedEntry{Index: i, Reason: fmt.Sprintf("invalid role %q", role)})
			continue
		}
		content, _ := obj["content"].(string)
		content = strings.TrimSpace(content)
		if content == "" {
			dropped = append(dropped, MalformedEntry{Index: i, Reason: "empty content"})
			continue
		}
		entries = append(entries, Entry{Role: Role(role), Content: content})
	}

	return entries, dropped
}

// ParseJSON decodes a serialized history field. A field that is empty or not a
// JSON array yields an empty history plus one report, never an error.
func ParseJSON(data string) ([]Entry, []MalformedEntry) {
	data = strings.TrimSpace(data)
	if data == "" {
		return []Entry{}, nil
	}
	var raw []any
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return []Entry{}, []MalformedEntry{{Index: -1, Reason: "chatHistory is not a JSON array"}}
	}
	return Normalize(raw)
}
