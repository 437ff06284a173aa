package schema

import (
	"errors"
	"strings"
)

// Domain errors for the schema package.
var (
	// ErrUnknownType is returned when no schema is loaded for an entity type.
	ErrUnknownType = errors.New("schema: unknown entity type")

	// ErrUnknownSection is returned for a section other than profile or data.
	ErrUnknownSection = errors.New("schema: unknown section")

	// ErrInvalidSchema is returned when a schema definition cannot be loaded.
	ErrInvalidSchema = errors.New("schema: invalid definition")

	// ErrValidation is the sentinel every *ValidationError unwraps to.
	ErrValidation = errors.New("schema: validation failed")
)

// Violation describes one field that broke a rule.
type Violation struct {
	// Field is the dotted path, e.g. "profile.seq_number" or "data.measurements[2].type".
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError lists every rule an entity broke.
//
//	var verr *schema.ValidationError
//	if errors.As(err, &verr) {
//	    for _, v := range verr.Violations { ... }
//	}
type ValidationError struct {
	Type       string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Field + ": " + v.Reason
	}
	return "schema: " + e.Type + " validation failed: " + strings.Join(parts, "; ")
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
