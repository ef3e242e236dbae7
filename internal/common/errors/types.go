package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeTransport represents network failures and non-2xx responses other than auth
	ErrTypeTransport ErrorType = "transport"
	// ErrTypeAuth represents 401/unauthorized responses and failed token requests
	ErrTypeAuth ErrorType = "authentication"
	// ErrTypeEmpty represents a benign "no content" response
	ErrTypeEmpty ErrorType = "empty_result"
	// ErrTypeDataIntegrity represents a remote response missing an expected field
	ErrTypeDataIntegrity ErrorType = "data_integrity"
	// ErrTypeValidation represents validation errors
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeConfig represents configuration errors
	ErrTypeConfig ErrorType = "config"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// TransportError creates a new transport error
func TransportError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeTransport,
		Message: msg,
		Cause:   cause,
	}
}

// AuthError creates a new authentication error
func AuthError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeAuth,
		Message: msg,
	}
}

// EmptyResultError creates a new empty result error for the given resource
func EmptyResultError(resource string) *AppError {
	return &AppError{
		Type:    ErrTypeEmpty,
		Message: fmt.Sprintf("%s returned no content", resource),
	}
}

// DataIntegrityError creates a new data integrity error
func DataIntegrityError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeDataIntegrity,
		Message: msg,
		Cause:   cause,
	}
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeValidation,
		Message: msg,
	}
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeConfig,
		Message: msg,
	}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// IsType checks if an error, or any error it wraps, is an AppError of a specific type
func IsType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}

	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}

	return appErr.Type == errType
}

// GetType returns the error type if it's an AppError, otherwise returns ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return ErrTypeInternal
	}

	return appErr.Type
}

// IsAuth reports whether err is an authentication error
func IsAuth(err error) bool {
	return IsType(err, ErrTypeAuth)
}

// IsEmpty reports whether err is a benign empty result
func IsEmpty(err error) bool {
	return IsType(err, ErrTypeEmpty)
}
