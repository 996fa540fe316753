package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents an error code
type ErrorCode string

const (
	// Validation errors, caused by the submitter and returned as 400.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	ErrCodeInvalidEmail ErrorCode = "INVALID_EMAIL"
	ErrCodeInvalidField ErrorCode = "INVALID_FIELD"

	// Channel errors. These stay inside a ChannelResult and are only ever
	// reported to the caller in aggregate.
	ErrCodeNetwork             ErrorCode = "NETWORK_ERROR"
	ErrCodeRemoteRejected      ErrorCode = "REMOTE_REJECTED"
	ErrCodeChannelUnconfigured ErrorCode = "CHANNEL_UNCONFIGURED"
	ErrCodePartialDelivery     ErrorCode = "PARTIAL_DELIVERY"

	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// AppError represents an application error
type AppError struct {
	Code    ErrorCode
	Message string
	// Field names the offending input field for validation errors.
	Field string
	Err   error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with an AppError
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Invalid creates a validation error bound to a single input field.
func Invalid(code ErrorCode, field, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Field:   field,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or
// ErrCodeInternalError when there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalError
}

// IsValidation reports whether err was caused by the submitted input.
func IsValidation(err error) bool {
	switch CodeOf(err) {
	case ErrCodeMissingField, ErrCodeInvalidEmail, ErrCodeInvalidField:
		return true
	}
	return false
}

// IsUnconfigured checks if error is ChannelUnconfigured
func IsUnconfigured(err error) bool {
	return CodeOf(err) == ErrCodeChannelUnconfigured
}

// IsRemoteRejected checks if error is RemoteRejected
func IsRemoteRejected(err error) bool {
	return CodeOf(err) == ErrCodeRemoteRejected
}
