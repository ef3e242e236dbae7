package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		want     string
	}{
		{
			name: "basic error",
			appError: &AppError{
				Type:    ErrTypeConfig,
				Message: "configuration is invalid",
			},
			want: "config: configuration is invalid",
		},
		{
			name: "error with code",
			appError: &AppError{
				Type:    ErrTypeAuth,
				Message: "authentication failed",
				Code:    "401",
			},
			want: "authentication: authentication failed: code=401",
		},
		{
			name: "error with cause",
			appError: &AppError{
				Type:    ErrTypeTransport,
				Message: "GET /api/v4/users failed",
				Cause:   errors.New("connection refused"),
			},
			want: "transport: GET /api/v4/users failed: cause=connection refused",
		},
		{
			name: "error with context",
			appError: &AppError{
				Type:    ErrTypeDataIntegrity,
				Message: "missing field",
				Context: map[string]interface{}{
					"field": "access_token",
				},
			},
			want: "data_integrity: missing field: context={field=access_token}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.appError.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	appError := TransportError("wrapper error", cause)

	assert.Equal(t, cause, appError.Unwrap())
	assert.Nil(t, AuthError("no cause").Unwrap())
}

func TestAppError_WithContextAndCode(t *testing.T) {
	appError := ValidationError("validation failed")

	result := appError.WithContext("field", "CLIENT_ID").WithCode("V1")

	assert.Same(t, appError, result)
	assert.Equal(t, "CLIENT_ID", appError.Context["field"])
	assert.Equal(t, "V1", appError.Code)
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want ErrorType
	}{
		{"transport", TransportError("x", nil), ErrTypeTransport},
		{"auth", AuthError("x"), ErrTypeAuth},
		{"empty", EmptyResultError("leads"), ErrTypeEmpty},
		{"data integrity", DataIntegrityError("x", nil), ErrTypeDataIntegrity},
		{"validation", ValidationError("x"), ErrTypeValidation},
		{"config", ConfigError("x"), ErrTypeConfig},
		{"internal", InternalError("x", nil), ErrTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Type)
		})
	}

	assert.Equal(t, "empty_result: leads returned no content", EmptyResultError("leads").Error())
}

func TestIsType(t *testing.T) {
	authErr := AuthError("unauthorized")
	wrapped := fmt.Errorf("fetch leads: %w", authErr)

	assert.True(t, IsType(authErr, ErrTypeAuth))
	assert.True(t, IsType(wrapped, ErrTypeAuth))
	assert.True(t, IsAuth(wrapped))
	assert.False(t, IsType(wrapped, ErrTypeTransport))
	assert.False(t, IsType(nil, ErrTypeAuth))
	assert.False(t, IsType(errors.New("plain"), ErrTypeAuth))

	assert.True(t, IsEmpty(fmt.Errorf("list: %w", EmptyResultError("contacts"))))
	assert.False(t, IsEmpty(authErr))
}

func TestGetType(t *testing.T) {
	assert.Equal(t, ErrorType(""), GetType(nil))
	assert.Equal(t, ErrTypeInternal, GetType(errors.New("plain")))
	assert.Equal(t, ErrTypeTransport, GetType(fmt.Errorf("wrap: %w", TransportError("x", nil))))
}
