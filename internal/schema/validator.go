// Package schema checks turn events against their JSON Schemas before they
// leave the service.
package schema

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"voice-turn-service/internal/models"
)

// ErrInvalidEvent wraps every validation failure.
var ErrInvalidEvent = errors.New("invalid turn event")

//go:embed schemas/*.json
var schemaFiles embed.FS

var schemaPaths = map[string]string{
	models.EventTurnCompleted: "schemas/turn_completed.json",
	models.EventTurnFailed:    "schemas/turn_failed.json",
}

type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

// New compiles the embedded event schemas. They ship with the binary, so a
// compile failure is a programming error.
func New() *Validator {
	v := &Validator{schemas: make(map[string]*gojsonschema.Schema, len(schemaPaths))}
	for eventType, path := range schemaPaths {
		src, err := schemaFiles.ReadFile(path)
		if err != nil {
			panic(fmt.Sprintf("schema: read %s: %v", path, err))
		}
		s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(src))
		if err != nil {
			panic(fmt.Sprintf("schema: compile %s: %v", path, err))
		}
		v.schemas[eventType] = s
	}
	return v
}

// Validate marshals event and checks it against the schema selected by its
// eventType field.
func (v *Validator) Validate(event any) error {
	doc, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	var head struct {
		EventType string `json:"eventType"`
	}
	if err := json.Unmarshal(doc, &head); err != nil {
		return fmt.Errorf("%w: not an object", ErrInvalidEvent)
	}
	s, ok := v.schemas[head.EventType]
	if !ok {
		return fmt.Errorf("%w: unknown eventType %q", ErrInvalidEvent, head.EventType)
	}

	result, err := s.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidEvent, strings.Join(msgs, ", "))
	}
	return nil
}
