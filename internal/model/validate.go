package model

import (
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) add(field, msg string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: msg})
}

// ValidateEntry checks a LogEntry for missing fields and checksum mismatch.
// It returns a *ValidationError if any rule fails, or nil if the entry is
// eligible for merge. It has no side effects.
func ValidateEntry(e *LogEntry) error {
	if e == nil {
		return &ValidationError{Errors: []FieldError{{Field: "entry", Message: "is nil"}}}
	}
	var ve ValidationError

	if strings.TrimSpace(e.ID) == "" {
		ve.add("id", "is required")
	}
	if strings.TrimSpace(e.Origin) == "" {
		ve.add("origin", "is required")
	}
	if e.WallClock <= 0 {
		ve.add("wall_clock", fmt.Sprintf("must be positive, got %d", e.WallClock))
	}
	if e.Clock == nil {
		ve.add("clock", "is required")
	}
	if !e.Payload.Type.IsValid() {
		ve.add("payload.type", "is required")
	}
	if e.Checksum == "" {
		ve.add("checksum", "is required")
	} else if want := Digest(e.Payload); e.Checksum != want {
		ve.add("checksum", fmt.Sprintf("mismatch: have %q, computed %q", e.Checksum, want))
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidatePattern checks that a pattern can be shared.
func ValidatePattern(p *Pattern) error {
	var ve ValidationError
	if strings.TrimSpace(p.ID) == "" {
		ve.add("id", "is required")
	}
	for i, c := range p.Contexts {
		if strings.TrimSpace(c) == "" {
			ve.add(fmt.Sprintf("contexts[%d]", i), "must not be empty")
		}
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		ve.add("confidence", fmt.Sprintf("must be between 0 and 1, got %g", p.Confidence))
	}
	if ve.HasErrors() {
		return &ve
	}
	return nil
}
