package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors matched with errors.Is against the typed errors below.
var (
	ErrValidation = errors.New("validation failed")
	ErrPermission = errors.New("permission denied")
	ErrNotFound   = errors.New("not found")
	ErrValue      = errors.New("invalid value")
)

// ValidationError reports a caller-correctable problem with a field or
// section definition: empty label, key collision, bad constraints, bad
// visibility keys.
type ValidationError struct {
	// Field is the label, key or attribute the problem refers to.
	Field   string            `json:"field,omitempty"`
	Message string            `json:"message"`
	Causes  []ConstraintError `json:"causes,omitempty"`
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if len(e.Causes) > 0 {
		parts := make([]string, 0, len(e.Causes))
		for _, c := range e.Causes {
			parts = append(parts, c.Error())
		}
		msg = fmt.Sprintf("%s (%s)", msg, strings.Join(parts, "; "))
	}
	if e.Field == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Field, msg)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// PermissionError is returned when a mutation targets a locked system field.
type PermissionError struct {
	FieldID string `json:"field_id"`
	Key     string `json:"key"`
	Op      string `json:"op"`
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s %q: system fields cannot be modified", e.Op, e.Key)
}

func (e *PermissionError) Is(target error) bool { return target == ErrPermission }

// NotFoundError is returned when an operation references a section or field
// id the store does not hold.
type NotFoundError struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValueError reports that a submitted value does not satisfy its field.
type ValueError struct {
	Field  string            `json:"field"`
	Errors []ConstraintError `json:"errors"`
}

func (e *ValueError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, c := range e.Errors {
		parts = append(parts, c.Error())
	}
	return strings.Join(parts, "; ")
}

func (e *ValueError) Is(target error) bool { return target == ErrValue }
