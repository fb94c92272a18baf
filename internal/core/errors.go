package core

import (
	"fmt"
	"net/http"
)

// ErrorType classifies an APIError for clients and for HTTP status mapping.
type ErrorType string

const (
	// ErrorTypeNotFound indicates an unknown category key or an item that
	// could not be resolved from any source (404).
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeInvalidArgument indicates a malformed client request (400).
	ErrorTypeInvalidArgument ErrorType = "invalid_argument"
	// ErrorTypeUpstream indicates the wiki scraping collaborator failed (502).
	ErrorTypeUpstream ErrorType = "upstream_unavailable"
	// ErrorTypeCache indicates every cache tier failed on an operation (503).
	ErrorTypeCache ErrorType = "cache_unavailable"
)

// APIError is the error type surfaced by the orchestrator, scheduler and
// search aggregator. A "pending" resolution is not an error and is never
// represented by this type.
type APIError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	// Original error for debugging, not exposed to clients.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the error unwrapping interface.
func (e *APIError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the HTTP status code for this error.
func (e *APIError) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeInvalidArgument:
		return http.StatusBadRequest
	case ErrorTypeUpstream:
		return http.StatusBadGateway
	case ErrorTypeCache:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ToJSON converts the error to a JSON-compatible map.
func (e *APIError) ToJSON() map[string]any {
	return map[string]any{
		"error": map[string]any{
			"type":    e.Type,
			"message": e.Message,
		},
	}
}

// NewNotFoundError creates a new not found error (404).
func NewNotFoundError(message string) *APIError {
	return &APIError{Type: ErrorTypeNotFound, Message: message}
}

// NewInvalidArgumentError creates a new invalid argument error (400).
func NewInvalidArgumentError(message string, err error) *APIError {
	return &APIError{Type: ErrorTypeInvalidArgument, Message: message, Err: err}
}

// NewUpstreamError creates a new upstream unavailable error (502).
func NewUpstreamError(message string, err error) *APIError {
	return &APIError{Type: ErrorTypeUpstream, Message: message, Err: err}
}

// NewCacheError creates a new cache unavailable error (503).
func NewCacheError(message string, err error) *APIError {
	return &APIError{Type: ErrorTypeCache, Message: message, Err: err}
}
