package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	ErrorTypeUnauthorized    ErrorType = "unauthorized"
	ErrorTypeInvalidRequest  ErrorType = "invalid_request"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeUpstream        ErrorType = "upstream_error"
	ErrorTypeTooManyRequests ErrorType = "too_many_requests"
	ErrorTypeServerError     ErrorType = "server_error"
)

// unauthorizedMessage is the only message an unauthorized caller ever sees.
// It must not reveal whether the tenant or client exists.
const unauthorizedMessage = "request is not authorized"

// APIError represents a structured API error with type, param and message.
// Status carries the HTTP status reported by the upstream broker for
// upstream errors; it is zero for locally detected errors.
type APIError struct {
	Type    ErrorType `json:"type"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`
	Status  int       `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// HTTPStatus returns the status code a caller should see for this error.
func (e *APIError) HTTPStatus() int {
	switch e.Type {
	case ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeTooManyRequests:
		return http.StatusTooManyRequests
	case ErrorTypeUpstream:
		if e.Status >= 400 && e.Status < 500 {
			return e.Status
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse wraps an APIError for JSON serialization as the top-level error response.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// NewUnauthorizedError creates an APIError for missing, invalid or mismatched
// credentials. The caller-visible message is always the same.
func NewUnauthorizedError() *APIError {
	return &APIError{
		Type:    ErrorTypeUnauthorized,
		Message: unauthorizedMessage,
	}
}

// NewInvalidRequestError creates an APIError for invalid request parameters.
// The message must describe the field, never echo its value.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Param:   param,
		Message: message,
	}
}

// NewNotFoundError creates an APIError for tenants or credentials the
// upstream broker could not find.
func NewNotFoundError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewUpstreamError creates an APIError for an opaque broker failure.
// status is the broker's HTTP status, or 0 for transport failures.
func NewUpstreamError(status int, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeUpstream,
		Message: message,
		Status:  status,
	}
}

// NewTooManyRequestsError creates an APIError for rate limiting.
func NewTooManyRequestsError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeTooManyRequests,
		Message: message,
	}
}

// NewServerError creates an APIError for internal server errors.
func NewServerError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeServerError,
		Message: message,
	}
}

// IsType reports whether err is an *APIError of the given type.
func IsType(err error, t ErrorType) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Type == t
}
