package circuitbreaker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"amocrm-leads/internal/common/errors"
	"amocrm-leads/internal/common/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoBreakerAdapter(t *testing.T) {
	logger := logging.NewNopLogger()

	t.Run("basic operation", func(t *testing.T) {
		cb := NewGoBreaker("test-basic", Config{
			MaxFailures:           2,
			Timeout:               100 * time.Millisecond,
			MaxConcurrentRequests: 1,
		}, logger)

		assert.Equal(t, StateClosed, cb.State())
		assert.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
		assert.Equal(t, StateClosed, cb.State())
		assert.Equal(t, "test-basic", cb.Name())
	})

	t.Run("circuit opens after transport failures", func(t *testing.T) {
		cb := NewGoBreaker("test-failures", Config{
			MaxFailures:           3,
			Timeout:               time.Minute,
			MaxConcurrentRequests: 1,
		}, logger)

		for i := 0; i < 3; i++ {
			err := cb.Execute(context.Background(), func() error {
				return errors.TransportError(fmt.Sprintf("failure %d", i), nil)
			})
			assert.Error(t, err)
		}
		assert.Equal(t, StateOpen, cb.State())

		err := cb.Execute(context.Background(), func() error {
			t.Fatal("should not be called while open")
			return nil
		})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeTransport))
		assert.Contains(t, err.Error(), "is open")
	})

	t.Run("auth and empty results do not trip", func(t *testing.T) {
		cb := NewGoBreaker("test-benign", Config{
			MaxFailures:           1,
			Timeout:               time.Minute,
			MaxConcurrentRequests: 1,
		}, logger)

		err := cb.Execute(context.Background(), func() error { return errors.AuthError("401") })
		assert.True(t, errors.IsAuth(err))
		err = cb.Execute(context.Background(), func() error { return errors.EmptyResultError("leads") })
		assert.True(t, errors.IsEmpty(err))
		err = cb.Execute(context.Background(), func() error { return errors.DataIntegrityError("bad", nil) })
		assert.True(t, errors.IsType(err, errors.ErrTypeDataIntegrity))

		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("cancelled context short-circuits", func(t *testing.T) {
		cb := NewGoBreaker("test-ctx", APIConfig, logger)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		err := cb.Execute(ctx, func() error { called = true; return nil })
		assert.False(t, called)
		assert.True(t, errors.IsType(err, errors.ErrTypeTransport))
	})

	t.Run("context cancelled mid-call does not trip", func(t *testing.T) {
		cb := NewGoBreaker("test-ctx-mid", Config{
			MaxFailures:           1,
			Timeout:               time.Minute,
			MaxConcurrentRequests: 1,
		}, logger)

		for i := 0; i < 3; i++ {
			ctx, cancel := context.WithCancel(context.Background())
			err := cb.Execute(ctx, func() error {
				cancel()
				return errors.TransportError("GET /api/v4/users failed", context.Canceled)
			})
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrTypeTransport))
			assert.NotContains(t, err.Error(), "is open")
		}

		assert.Equal(t, StateClosed, cb.State())
		assert.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
	})

	t.Run("invalid config falls back to defaults", func(t *testing.T) {
		cb := NewGoBreaker("test-invalid", Config{}, logger)
		assert.NotNil(t, cb)
		assert.Equal(t, StateClosed, cb.State())
	})
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}
