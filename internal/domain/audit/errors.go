package audit

import "errors"

var (
	ErrAuditDisabled         = errors.New("audit logging is disabled")
	ErrQueueFull             = errors.New("audit queue is full")
	ErrMissingRequiredFields = errors.New("missing required fields")
	ErrHistoryUnavailable    = errors.New("audit history is not available")
)
