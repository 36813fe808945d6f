package core

import (
	"fmt"
)

// Error is the canonical error carried across the transport boundary.
type Error struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Code      string    `json:"code,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes transport and upstream failures.
type ErrorType string

const (
	ErrInvalidRequest ErrorType = "invalid_request_error"
	ErrAuthentication ErrorType = "authentication_error"
	ErrQuota          ErrorType = "quota_error"
	ErrRateLimit      ErrorType = "rate_limit_error"
	ErrNetwork        ErrorType = "network_error"
	ErrMalformed      ErrorType = "malformed_response_error"
	ErrAPI            ErrorType = "api_error"
)

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{Type: ErrInvalidRequest, Message: message}
}

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(message string) *Error {
	return &Error{Type: ErrAuthentication, Message: message}
}

// NewQuotaError creates a quota exceeded error.
func NewQuotaError(message string) *Error {
	return &Error{Type: ErrQuota, Message: message}
}

// NewRateLimitError creates a rate limit error.
func NewRateLimitError(message string) *Error {
	return &Error{Type: ErrRateLimit, Message: message}
}

// NewNetworkError creates a network error.
func NewNetworkError(message string) *Error {
	return &Error{Type: ErrNetwork, Message: message}
}

// NewMalformedError creates a malformed response error.
func NewMalformedError(message string) *Error {
	return &Error{Type: ErrMalformed, Message: message}
}

// NewAPIError creates a generic API error.
func NewAPIError(message string) *Error {
	return &Error{Type: ErrAPI, Message: message}
}
