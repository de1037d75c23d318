package common

import (
	"errors"
	"fmt"
)

// ErrorCode classifies engine failures for transport mapping
type ErrorCode string

const (
	// CodeInvalidPayload marks requests missing required identifiers
	CodeInvalidPayload ErrorCode = "invalid_payload"
	// CodeStoreUnavailable marks any profile-store read/write failure
	CodeStoreUnavailable ErrorCode = "store_unavailable"
	// CodeProviderDegraded marks a failed provider detail lookup; never fatal
	CodeProviderDegraded ErrorCode = "provider_degraded"
)

// AppError carries an error code alongside a human-readable message.
// Store credentials must never appear in Message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewInvalidPayloadError creates an invalid_payload error
func NewInvalidPayloadError(message string) *AppError {
	return &AppError{Code: CodeInvalidPayload, Message: message}
}

// NewStoreUnavailableError creates a store_unavailable error wrapping the cause
func NewStoreUnavailableError(message string, err error) *AppError {
	return &AppError{Code: CodeStoreUnavailable, Message: message, Err: err}
}

// NewProviderDegradedError creates a provider_degraded error wrapping the cause
func NewProviderDegradedError(message string, err error) *AppError {
	return &AppError{Code: CodeProviderDegraded, Message: message, Err: err}
}

// CodeOf extracts the ErrorCode from an error chain, or empty if none
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
