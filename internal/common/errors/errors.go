// Package errors defines the typed application error used across the sync
// core. The synchronizer's retry and dead-letter decisions are driven by the
// error code, never by matching on message text.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode identifies a class of failure.
type ErrorCode string

const (
	// General
	ErrCodeInternal   ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"
	ErrCodeConflict   ErrorCode = "CONFLICT"

	// Connectivity and remote API
	ErrCodeOffline   ErrorCode = "OFFLINE"
	ErrCodeTimeout   ErrorCode = "TIMEOUT"
	ErrCodeNetwork   ErrorCode = "NETWORK_ERROR"
	ErrCodeRemoteAPI ErrorCode = "REMOTE_API_ERROR"

	// Sync lifecycle
	ErrCodeRetryExhausted ErrorCode = "RETRY_EXHAUSTED"
	ErrCodeSyncInProgress ErrorCode = "SYNC_IN_PROGRESS"

	// Storage
	ErrCodeStorage  ErrorCode = "STORAGE_ERROR"
	ErrCodeSnapshot ErrorCode = "SNAPSHOT_ERROR"

	// Authentication. Structured codes replace message sniffing: each
	// strategy reports one of these and the fallback chain is driven by them.
	ErrCodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrCodeAuthUnavailable ErrorCode = "AUTH_UNAVAILABLE"
	ErrCodeAuthTimeout     ErrorCode = "AUTH_TIMEOUT"
	ErrCodeAuthDenied      ErrorCode = "AUTH_DENIED"
	ErrCodeAuthLocked      ErrorCode = "AUTH_LOCKED"

	// Fatal: the one case where startup refuses to proceed.
	ErrCodeSecurityViolation ErrorCode = "SECURITY_VIOLATION"
)

// AppError is the typed application error.
type AppError struct {
	Code      ErrorCode         `json:"code"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Cause     error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsTransient reports whether the failure is worth retrying: connectivity
// and remote-authority errors recover on their own, everything else does not.
func (e *AppError) IsTransient() bool {
	switch e.Code {
	case ErrCodeOffline, ErrCodeTimeout, ErrCodeNetwork, ErrCodeRemoteAPI:
		return true
	}
	return false
}

// WithContext attaches a key/value pair for logging.
func (e *AppError) WithContext(key, value string) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// New creates a new application error.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Newf creates a new application error with formatting.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with a code and message.
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

// Wrapf wraps an existing error with formatting.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// CodeOf extracts the ErrorCode from any error, returning ErrCodeInternal
// for errors that are not AppErrors.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// IsTransientErr reports whether any error should drive the retry path.
// Unknown errors are treated as transient so a flaky collaborator cannot
// dead-letter an item on its first hiccup.
func IsTransientErr(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.IsTransient()
	}
	return true
}
