// Package errors provides error handling for the Moraine gateway.
// It defines typed errors for the different failure scenarios, JSON
// response formatting matching the public API contract, and integrated
// logging with Uber's zap logger.
//
// Basic usage:
//
//	// Simple error response
//	errors.Error(w, "Something went wrong", http.StatusInternalServerError)
//
//	// Type-specific error
//	errors.ErrorWithType(w, "Missing required 'input' field", errors.ValidationError, http.StatusBadRequest)
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// DefaultLogger is the default zap logger instance used throughout the package.
// It is initialized to a production configuration but can be overridden using SetLogger.
var DefaultLogger *zap.Logger

func init() {
	var err error
	DefaultLogger, err = zap.NewProduction()
	if err != nil {
		DefaultLogger = zap.NewNop()
	}
}

// SetLogger allows setting a custom zap logger instance.
// If nil is provided, the function will do nothing to prevent
// accidentally disabling logging.
func SetLogger(logger *zap.Logger) {
	if logger != nil {
		DefaultLogger = logger
	}
}

// ErrorType categorizes the failure scenarios the gateway can encounter.
type ErrorType string

const (
	// ValidationError represents input validation failures at the HTTP boundary
	ValidationError ErrorType = "validation_error"

	// ProviderError represents errors surfaced by the Bedrock service
	ProviderError ErrorType = "provider_error"

	// ConfigError represents configuration-related errors
	ConfigError ErrorType = "config_error"

	// CredentialError represents missing or invalid AWS credentials.
	// Credential errors at startup are fatal.
	CredentialError ErrorType = "credential_error"

	// RateLimitError represents rate limiting errors
	RateLimitError ErrorType = "rate_limit_error"

	// InternalError represents unexpected internal server errors
	InternalError ErrorType = "internal_error"
)

// GatewayError is the internal error type. It carries a category and an
// HTTP status code for the response, while the JSON body exposed to
// clients stays a plain {"error": message} object.
type GatewayError struct {
	// Type categorizes the error for logging and tests
	Type ErrorType

	// Message is a human-readable error description
	Message string

	// Code is the HTTP status code to respond with
	Code int

	// RequestID links the error to a specific request
	RequestID string

	// err is the underlying error, if any
	err error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error, implementing the unwrap
// interface for error chains.
func (e *GatewayError) Unwrap() error {
	return e.err
}

// Is implements error matching for errors.Is, allowing type-based
// matching while ignoring other fields.
func (e *GatewayError) Is(target error) bool {
	t, ok := target.(*GatewayError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// NewError creates a new GatewayError with full control over its fields.
func NewError(errType ErrorType, message string, code int, requestID string, err error) *GatewayError {
	return &GatewayError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
		err:       err,
	}
}

// NewValidationError creates a validation error with appropriate defaults.
// Use this for request validation failures such as missing required fields.
func NewValidationError(requestID, message string) *GatewayError {
	return &GatewayError{
		Type:      ValidationError,
		Message:   message,
		Code:      http.StatusBadRequest,
		RequestID: requestID,
	}
}

// NewInternalError creates an internal server error with appropriate defaults.
// Use this for unexpected errors that are not covered by other error types.
func NewInternalError(requestID string, err error) *GatewayError {
	message := "An internal error occurred"
	if err != nil {
		message = err.Error()
	}
	return &GatewayError{
		Type:      InternalError,
		Message:   message,
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}

// ErrorResponse is the JSON body returned to clients when a request fails.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteError formats and writes a GatewayError to an http.ResponseWriter.
// It sets the content type and status code, then writes the error as a
// JSON {"error": message} body.
func WriteError(w http.ResponseWriter, err *GatewayError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	if encErr := json.NewEncoder(w).Encode(ErrorResponse{Error: err.Message}); encErr != nil {
		DefaultLogger.Error("failed to encode error response", zap.Error(encErr))
	}
}

// Error is a drop-in replacement for http.Error that writes a JSON error
// body with the InternalError type.
func Error(w http.ResponseWriter, message string, code int) {
	ErrorWithType(w, message, InternalError, code)
}

// ErrorWithType is like Error but allows specifying the error type.
func ErrorWithType(w http.ResponseWriter, message string, errType ErrorType, code int) {
	requestID := w.Header().Get("X-Request-ID")
	WriteError(w, &GatewayError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
	})
}

// LogError logs an error with its context.
func LogError(logger *zap.Logger, err error, requestID string) {
	if gwErr, ok := err.(*GatewayError); ok {
		logger.Error("request error",
			zap.String("error_type", string(gwErr.Type)),
			zap.String("message", gwErr.Message),
			zap.Int("code", gwErr.Code),
			zap.String("request_id", requestID),
		)
		return
	}
	logger.Error("unexpected error",
		zap.Error(err),
		zap.String("request_id", requestID),
	)
}
