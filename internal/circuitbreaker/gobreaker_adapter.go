// Package circuitbreaker provides circuit breaker functionality using Sony's gobreaker
package circuitbreaker

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"amocrm-leads/internal/common/errors"
	"amocrm-leads/internal/common/logging"
	"github.com/sony/gobreaker"
)

// Config holds the configuration for a circuit breaker
type Config struct {
	// MaxFailures is the number of consecutive failures that opens the circuit
	MaxFailures int
	// Timeout is how long the circuit stays open before moving to half-open
	Timeout time.Duration
	// MaxConcurrentRequests is the maximum number of requests allowed in half-open state
	MaxConcurrentRequests int
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		MaxFailures:           5,
		Timeout:               60 * time.Second,
		MaxConcurrentRequests: 1,
	}
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if c.MaxFailures <= 0 {
		return fmt.Errorf("MaxFailures must be positive, got %d", c.MaxFailures)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("Timeout must be positive, got %v", c.Timeout)
	}
	if c.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("MaxConcurrentRequests must be positive, got %d", c.MaxConcurrentRequests)
	}
	return nil
}

// State represents the current state of the circuit breaker
type State int

const (
	// StateClosed means the circuit breaker is closed and allowing requests through
	StateClosed State = iota
	// StateOpen means the circuit breaker is open and rejecting requests
	StateOpen
	// StateHalfOpen means the circuit breaker is testing if the service has recovered
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Predefined configurations for the two outbound call families
var (
	// APIConfig is for CRM resource reads
	APIConfig = Config{
		MaxFailures:           3,
		Timeout:               30 * time.Second,
		MaxConcurrentRequests: 1,
	}

	// OAuthConfig is for token requests
	OAuthConfig = Config{
		MaxFailures:           5,
		Timeout:               60 * time.Second,
		MaxConcurrentRequests: 1,
	}
)

// GoBreakerAdapter wraps Sony's gobreaker
type GoBreakerAdapter struct {
	name    string
	breaker *gobreaker.CircuitBreaker
}

// NewGoBreaker creates a new circuit breaker using Sony's gobreaker implementation
func NewGoBreaker(name string, config Config, logger logging.Logger) *GoBreakerAdapter {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	if err := config.Validate(); err != nil {
		logger.Warn("Invalid circuit breaker config, using defaults",
			logging.Field{Key: "error", Value: err.Error()},
			logging.Field{Key: "name", Value: name},
		)
		config = DefaultConfig()
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(config.MaxConcurrentRequests),
		Interval:    time.Minute,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.MaxFailures)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				logging.Field{Key: "breaker", Value: name},
				logging.Field{Key: "from", Value: from.String()},
				logging.Field{Key: "to", Value: to.String()},
			)
		},
		IsSuccessful: isSuccessful,
	}

	return &GoBreakerAdapter{
		name:    name,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// callerGaveUp wraps a failure that happened after the caller's context was done
type callerGaveUp struct {
	err error
}

func (e *callerGaveUp) Error() string { return e.err.Error() }

func (e *callerGaveUp) Unwrap() error { return e.err }

// isSuccessful counts only transport failures against the remote endpoint.
// A 401, a 204 or a malformed body means the endpoint answered.
// Failures caused by a cancelled or expired caller context say nothing about the endpoint.
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	var gaveUp *callerGaveUp
	if stderrors.As(err, &gaveUp) {
		return true
	}
	switch errors.GetType(err) {
	case errors.ErrTypeAuth, errors.ErrTypeEmpty, errors.ErrTypeDataIntegrity, errors.ErrTypeValidation:
		return true
	}
	return false
}

// Execute runs the given function within the circuit breaker.
// Rejections are reported as transport errors.
func (g *GoBreakerAdapter) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return errors.TransportError("request cancelled", err)
	}

	_, err := g.breaker.Execute(func() (interface{}, error) {
		err := fn()
		if err != nil && ctx.Err() != nil {
			return nil, &callerGaveUp{err: err}
		}
		return nil, err
	})

	var gaveUp *callerGaveUp
	if stderrors.As(err, &gaveUp) {
		return gaveUp.err
	}

	if stderrors.Is(err, gobreaker.ErrOpenState) {
		return errors.TransportError(fmt.Sprintf("circuit breaker '%s' is open", g.name), err)
	}
	if stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.TransportError(fmt.Sprintf("circuit breaker '%s' has too many requests", g.name), err)
	}

	return err
}

// State returns the current state of the circuit breaker
func (g *GoBreakerAdapter) State() State {
	switch g.breaker.State() {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Name returns the breaker name
func (g *GoBreakerAdapter) Name() string {
	return g.name
}
