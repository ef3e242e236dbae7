package validation

import (
	"fmt"
	"testing"
	"time"

	"amocrm-leads/internal/common/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_RequireString(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"valid string", "hello", false},
		{"empty string", "", true},
		{"whitespace only", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator().RequireString(tt.value, "CLIENT_ID")
			assert.Equal(t, tt.wantErr, v.HasErrors())
		})
	}
}

func TestValidator_RequireURL(t *testing.T) {
	assert.False(t, NewValidator().RequireURL("https://example.amocrm.ru", "url").HasErrors())
	assert.True(t, NewValidator().RequireURL("", "url").HasErrors())
	assert.True(t, NewValidator().RequireURL("example.amocrm.ru", "url").HasErrors())
	assert.True(t, NewValidator().RequireURL("://bad", "url").HasErrors())
}

func TestValidator_NumericRules(t *testing.T) {
	assert.True(t, NewValidator().RequireNonNegative(-1, "n").HasErrors())
	assert.False(t, NewValidator().RequireNonNegative(0, "n").HasErrors())
	assert.True(t, NewValidator().RequireRange(16, 0, 15, "db").HasErrors())
	assert.False(t, NewValidator().RequireRange(3, 0, 15, "db").HasErrors())
	assert.True(t, NewValidator().RequirePositiveDuration(0, "timeout").HasErrors())
	assert.False(t, NewValidator().RequirePositiveDuration(time.Second, "timeout").HasErrors())
}

func TestValidator_RequireOneOf(t *testing.T) {
	allowed := []string{"file", "redis"}
	assert.False(t, NewValidator().RequireOneOf("file", allowed, "TOKEN_STORAGE").HasErrors())

	v := NewValidator().RequireOneOf("s3", allowed, "TOKEN_STORAGE")
	require.True(t, v.HasErrors())
	assert.Contains(t, v.Error().Error(), "TOKEN_STORAGE must be one of: file, redis")
}

func TestValidator_ErrorCombinesAndTypes(t *testing.T) {
	v := NewValidatorWithPrefix("config").
		RequireString("", "CLIENT_ID").
		Validate(func() error { return fmt.Errorf("custom failure") }).
		ValidateIf(false, func() error { return fmt.Errorf("skipped") })

	require.Len(t, v.Errors(), 2)
	err := v.Error()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	assert.Contains(t, err.Error(), "config: CLIENT_ID is required; custom failure")
	assert.NotContains(t, err.Error(), "skipped")

	assert.NoError(t, NewValidator().Error())
}
