package portfolio

import (
	"errors"
	"strings"
)

var (
	ErrInvalidPortfolio  = errors.New("invalid portfolio")
	ErrInvalidParameters = errors.New("invalid risk parameters")
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned for any input the caller must correct.
type ValidationError struct {
	kind   error
	Fields []FieldError
}

func newValidationError(kind error, fields []FieldError) *ValidationError {
	return &ValidationError{kind: kind, Fields: fields}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return e.kind.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.kind
}
