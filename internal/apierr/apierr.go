// Package apierr provides the structured error type surfaced by the HTTP API.
package apierr

import (
	"errors"
	"fmt"
)

// Error is an API failure with an HTTP status and a machine-readable code.
// Retryable tells clients whether re-issuing the same request may succeed.
type Error struct {
	Status    int
	Code      string
	Message   string
	Details   map[string]any
	Retryable bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// New creates an API error.
func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// Newf creates an API error with a formatted message.
func Newf(status int, code, format string, args ...any) *Error {
	return &Error{Status: status, Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetails attaches structured details and returns the error.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// AsRetryable marks the error as safe to retry and returns it.
func (e *Error) AsRetryable() *Error {
	e.Retryable = true
	return e
}

// Common constructors for the failure modes handlers hit most.

// BadRequest returns a 400 error with the given code.
func BadRequest(code, message string) *Error {
	return New(400, code, message)
}

// Unauthorized returns a 401 error with the given code.
func Unauthorized(code, message string) *Error {
	return New(401, code, message)
}

// NotFound returns a 404 error with the given code.
func NotFound(code, message string) *Error {
	return New(404, code, message)
}

// Internal returns a 500 error with the given code.
func Internal(code, message string) *Error {
	return New(500, code, message)
}

// From converts any error into an *Error, wrapping unknown errors as 500s.
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal("internal_error", err.Error())
}

// Body is the JSON shape of the error envelope.
type Body struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

// Envelope is the top-level error response payload.
type Envelope struct {
	Error Body `json:"error"`
}

// NewEnvelope builds the response envelope for an error and request id.
func NewEnvelope(err *Error, requestID string) Envelope {
	return Envelope{Error: Body{
		Code:      err.Code,
		Message:   err.Message,
		RequestID: requestID,
		Retryable: err.Retryable,
		Details:   err.Details,
	}}
}
