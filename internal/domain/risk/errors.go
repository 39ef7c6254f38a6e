package risk

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorCode is a stable, client-visible error identifier
type ErrorCode string

const (
	// Input-related computation errors
	ErrInsufficientData ErrorCode = "INSUFFICIENT_DATA"
	ErrUnknownSymbol    ErrorCode = "UNKNOWN_SYMBOL"

	// Engine errors
	ErrCalculationFailed    ErrorCode = "CALCULATION_FAILED"
	ErrNumericalInstability ErrorCode = "NUMERICAL_INSTABILITY"
	ErrUnsupportedMethod    ErrorCode = "UNSUPPORTED_METHOD"

	// System errors
	ErrTimeout  ErrorCode = "CALCULATION_TIMEOUT"
	ErrCanceled ErrorCode = "CALCULATION_CANCELED"

	// External dependency errors
	ErrMarketDataUnavailable ErrorCode = "MARKET_DATA_UNAVAILABLE"
	ErrCacheUnavailable      ErrorCode = "CACHE_UNAVAILABLE"
	ErrAuditDelivery         ErrorCode = "AUDIT_DELIVERY_FAILED"
)

// ErrorCategory groups codes by how the pipeline treats them
type ErrorCategory string

const (
	// CategoryComputation errors are returned to the caller.
	CategoryComputation ErrorCategory = "COMPUTATION"
	// CategoryCache errors are logged and the cache is bypassed.
	CategoryCache ErrorCategory = "CACHE"
	// CategoryAudit errors are logged and never propagated.
	CategoryAudit ErrorCategory = "AUDIT"
)

// Error is the typed failure of a risk operation. Message is safe to show
// to callers; Cause holds the internal detail and is only logged.
type Error struct {
	Code      ErrorCode
	Category  ErrorCategory
	Message   string
	Operation string
	Details   map[string]interface{}
	Cause     error
	Timestamp time.Time
}

func newError(code ErrorCode, category ErrorCategory, message, operation string) *Error {
	return &Error{
		Code:      code,
		Category:  category,
		Message:   message,
		Operation: operation,
		Timestamp: time.Now(),
	}
}

// NewComputationError creates an error the provider reports to the caller.
func NewComputationError(code ErrorCode, message, operation string) *Error {
	return newError(code, CategoryComputation, message, operation)
}

// NewCacheError wraps a result cache failure.
func NewCacheError(operation string, cause error) *Error {
	return newError(ErrCacheUnavailable, CategoryCache, "result cache unavailable", operation).WithCause(cause)
}

// NewAuditError wraps an audit delivery failure.
func NewAuditError(operation string, cause error) *Error {
	return newError(ErrAuditDelivery, CategoryAudit, "audit delivery failed", operation).WithCause(cause)
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (operation: %s): %v", e.Code, e.Message, e.Operation, e.Cause)
	}
	return fmt.Sprintf("%s: %s (operation: %s)", e.Code, e.Message, e.Operation)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithCause attaches the underlying error
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithDetails adds caller-safe detail
func (e *Error) WithDetails(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsInputRelated reports whether the caller can fix the failure by changing the request.
func (e *Error) IsInputRelated() bool {
	return e.Code == ErrInsufficientData || e.Code == ErrUnknownSymbol
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// FromContext converts a context failure into a computation error.
func FromContext(err error, operation string) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewComputationError(ErrTimeout, "risk calculation timed out", operation).WithCause(err)
	}
	return NewComputationError(ErrCanceled, "risk calculation canceled", operation).WithCause(err)
}

// Normalize ensures err is a *Error, wrapping unknown failures as CALCULATION_FAILED.
func Normalize(err error, operation string) *Error {
	if re, ok := AsError(err); ok {
		return re
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return FromContext(err, operation)
	}
	return NewComputationError(ErrCalculationFailed, "risk calculation failed", operation).WithCause(err)
}
