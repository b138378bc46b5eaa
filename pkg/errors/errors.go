package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorType categorizes different error types
type ErrorType string

const (
	// Transport failures: the request never got an answer
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeConnection ErrorType = "connection"

	// Application rejections: the server answered with a non-2xx status
	ErrorTypeRejected     ErrorType = "rejected"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeRateLimit    ErrorType = "rate_limit"
	ErrorTypeServer       ErrorType = "server"

	// Malformed or unexpected remote payloads
	ErrorTypeMalformed ErrorType = "malformed"

	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeUnknown    ErrorType = "unknown"
)

// CLIError represents a structured error with context
type CLIError struct {
	Type       ErrorType
	Message    string
	Cause      error
	Suggestion string
	StatusCode int
	RetryAfter int

	// ServerMessage is the human-readable message from a rejection body, if any
	ServerMessage string
}

// Error implements the error interface
func (e *CLIError) Error() string {
	return e.Message
}

// WithSuggestion adds a helpful suggestion to the error
func (e *CLIError) WithSuggestion(suggestion string) *CLIError {
	e.Suggestion = suggestion
	return e
}

// HasSuggestion returns true if the error has a suggestion
func (e *CLIError) HasSuggestion() bool {
	return e.Suggestion != ""
}

// Unwrap returns the underlying error
func (e *CLIError) Unwrap() error {
	return e.Cause
}

// IsTransport reports whether the error means the request never got an answer
func (e *CLIError) IsTransport() bool {
	switch e.Type {
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeConnection:
		return true
	}
	return false
}

// IsRejection reports whether the server answered with a non-success status
func (e *CLIError) IsRejection() bool {
	return e.StatusCode >= 400
}

// NewCLIError creates a new CLI error
func NewCLIError(errorType ErrorType, message string, cause error) *CLIError {
	return &CLIError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NetworkError creates a network error
func NetworkError(message string, cause error) *CLIError {
	err := NewCLIError(ErrorTypeNetwork, message, cause)
	err.Suggestion = "Check your internet connection and try again."
	return err
}

// TimeoutError creates a timeout error
func TimeoutError(cause error) *CLIError {
	err := NewCLIError(ErrorTypeTimeout, "Request timed out", cause)
	err.Suggestion = "The server is taking too long to respond. Try again in a moment."
	return err
}

// MalformedError creates an error for a remote payload that could not be understood
func MalformedError(what string, cause error) *CLIError {
	return NewCLIError(ErrorTypeMalformed, fmt.Sprintf("Malformed %s", what), cause)
}

// ValidationError creates a validation error
func ValidationError(field, reason string) *CLIError {
	message := fmt.Sprintf("Validation error: %s - %s", field, reason)
	return NewCLIError(ErrorTypeValidation, message, nil)
}

// RejectionError creates an error for a non-2xx response. serverMessage may be empty.
func RejectionError(statusCode int, serverMessage string) *CLIError {
	errType := ErrorTypeRejected
	suggestion := ""
	switch {
	case statusCode == 401:
		errType = ErrorTypeUnauthorized
		suggestion = "Run 'sidechain-live auth set' to store a valid token."
	case statusCode == 403:
		errType = ErrorTypeForbidden
	case statusCode == 404:
		errType = ErrorTypeNotFound
	case statusCode == 409:
		errType = ErrorTypeConflict
	case statusCode == 429:
		errType = ErrorTypeRateLimit
		suggestion = "Please wait a moment before trying again."
	case statusCode >= 500:
		errType = ErrorTypeServer
		suggestion = "The server encountered an error. Try again in a few moments."
	}

	message := serverMessage
	if message == "" {
		message = fmt.Sprintf("Request failed with status %d", statusCode)
	}

	return &CLIError{
		Type:          errType,
		Message:       message,
		StatusCode:    statusCode,
		Suggestion:    suggestion,
		ServerMessage: serverMessage,
	}
}

// statusCoder is implemented by API errors that carry an HTTP status
type statusCoder interface {
	HTTPStatus() int
	ServerMessage() string
}

// CategorizeError converts a standard error into a CLIError
func CategorizeError(err error) *CLIError {
	if err == nil {
		return nil
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		cliErr := RejectionError(sc.HTTPStatus(), sc.ServerMessage())
		cliErr.Cause = err
		return cliErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return TimeoutError(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return TimeoutError(err)
		}
		return NetworkError("Could not reach the server.", err)
	}

	errMsg := err.Error()

	switch {
	case strings.Contains(errMsg, "connection refused"):
		return NetworkError("Could not connect to server. Make sure it's running.", err)
	case strings.Contains(errMsg, "timeout"):
		return TimeoutError(err)
	case strings.Contains(errMsg, "no such host"):
		return NetworkError("Could not resolve the server address.", err)
	default:
		return NewCLIError(ErrorTypeUnknown, errMsg, err)
	}
}

// UserMessage returns the server-provided message for an application rejection,
// or fallback for anything else
func UserMessage(err error, fallback string) string {
	cliErr := CategorizeError(err)
	if cliErr != nil && cliErr.ServerMessage != "" {
		return cliErr.ServerMessage
	}
	return fallback
}

// FormatError returns a user-friendly error message
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	cliErr := CategorizeError(err)
	var sb strings.Builder

	sb.WriteString("Error")
	if cliErr.Type != ErrorTypeUnknown {
		sb.WriteString(" (")
		sb.WriteString(string(cliErr.Type))
		sb.WriteString(")")
	}
	sb.WriteString(": ")
	sb.WriteString(cliErr.Message)
	sb.WriteString("\n")

	if cliErr.HasSuggestion() {
		sb.WriteString("\nSuggestion: ")
		sb.WriteString(cliErr.Suggestion)
		sb.WriteString("\n")
	}

	return sb.String()
}
