package errors

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode represents a categorized error code
type ErrorCode string

const (
	// Validation errors
	CodeValidation   ErrorCode = "VALIDATION_ERROR"
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// Storage errors
	CodeDatabase ErrorCode = "DATABASE_ERROR"
	CodeNotFound ErrorCode = "NOT_FOUND"

	// Backend response errors
	CodeMalformedResponse ErrorCode = "MALFORMED_RESPONSE"

	// External service errors
	CodeExternalService    ErrorCode = "EXTERNAL_SERVICE_ERROR"
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	CodeServiceTimeout     ErrorCode = "SERVICE_TIMEOUT"
	CodeRateLimited        ErrorCode = "RATE_LIMITED"
	CodeRequestCancelled   ErrorCode = "REQUEST_CANCELLED"

	// Config errors
	CodeConfig ErrorCode = "CONFIG_ERROR"

	// Internal errors
	CodeInternal ErrorCode = "INTERNAL_ERROR"
	CodeUnknown  ErrorCode = "UNKNOWN_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError creates a validation error
func ValidationError(message string) *AppError {
	return New(CodeValidation, message)
}

// DatabaseError creates a database error
func DatabaseError(message string, err error) *AppError {
	return Wrap(err, CodeDatabase, message)
}

// MalformedResponseError creates an error for a backend payload that does not match its contract
func MalformedResponseError(endpoint, message string, err error) *AppError {
	return Wrap(err, CodeMalformedResponse, message).
		WithContext("endpoint", endpoint)
}

// ExternalServiceError creates an external service error
func ExternalServiceError(service, message string, err error) *AppError {
	return Wrap(err, CodeExternalService, message).
		WithContext("service", service)
}

// ConfigError creates a configuration error
func ConfigError(message string, err error) *AppError {
	if err != nil {
		return Wrap(err, CodeConfig, message)
	}
	return New(CodeConfig, message)
}

// FromContext converts a context error into a cancellation or timeout error.
// It returns nil when err is not caused by ctx.
func FromContext(ctx context.Context, err error) *AppError {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return Wrap(err, CodeServiceTimeout, "request timed out")
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return Wrap(err, CodeRequestCancelled, "request cancelled")
	}
	return nil
}

// IsRetryable determines if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case CodeServiceTimeout, CodeServiceUnavailable, CodeRateLimited:
			return true
		}
	}
	return false
}

// IsCancelled reports whether err represents a superseded or torn-down request
func IsCancelled(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	return GetErrorCode(err) == CodeRequestCancelled
}

// IsTimeout reports whether err represents a request that ran out of time
func IsTimeout(err error) bool {
	return GetErrorCode(err) == CodeServiceTimeout
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeValidation || appErr.Code == CodeInvalidInput
	}
	return false
}

// NotFoundError creates a not found error
func NotFoundError(resource, identifier string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found: %s", resource, identifier))
}

// UserMessage returns the short message shown to viewers for a failed fetch
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch GetErrorCode(err) {
	case CodeServiceTimeout:
		return "timed out"
	case CodeMalformedResponse:
		return "malformed response"
	case CodeServiceUnavailable, CodeRateLimited, CodeExternalService, CodeValidation, CodeInvalidInput:
		var appErr *AppError
		if errors.As(err, &appErr) && appErr.Message != "" {
			return appErr.Message
		}
		return "fetch failed"
	default:
		return err.Error()
	}
}
