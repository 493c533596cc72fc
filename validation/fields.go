package validation

import (
	"strings"

	"github.com/kbukum/agentmesh/errors"
)

// FieldError names one failing field of a payload.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (f FieldError) String() string { return f.Field + ": " + f.Message }

// FieldErrors accumulates failures in the order they were found.
type FieldErrors []FieldError

// Add appends a failure for field.
func (fe *FieldErrors) Add(field, message string) {
	*fe = append(*fe, FieldError{Field: field, Message: message})
}

// Check adds message for field unless ok holds.
func (fe *FieldErrors) Check(ok bool, field, message string) {
	if !ok {
		fe.Add(field, message)
	}
}

// Err folds the failures into one INVALID_DESCRIPTOR error, or nil.
func (fe FieldErrors) Err() error {
	if len(fe) == 0 {
		return nil
	}
	parts := make([]string, len(fe))
	for i, f := range fe {
		parts[i] = f.String()
	}
	return errors.InvalidDescriptor(strings.Join(parts, "; ")).WithDetail("fields", []FieldError(fe))
}
