// Package ratelimit throttles outbound calls to the CRM API using golang.org/x/time/rate.
package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limiter blocks callers until a request may be sent
type Limiter interface {
	Wait(ctx context.Context) error
}

// Config represents rate limiter configuration
type Config struct {
	RequestsPerSecond int
	BurstSize         int
	Enabled           bool
}

// Validate fills defaults and rejects negative values
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second must be non-negative, got %d", c.RequestsPerSecond)
	}
	if c.RequestsPerSecond == 0 {
		c.Enabled = false
		return nil
	}
	if c.BurstSize <= 0 {
		c.BurstSize = c.RequestsPerSecond
	}
	return nil
}

type localLimiter struct {
	config  Config
	limiter *rate.Limiter
}

// NewLocalLimiter creates a process-local token bucket limiter
func NewLocalLimiter(config Config) (Limiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &localLimiter{
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.BurstSize),
	}, nil
}

// Wait blocks until a request can be made according to the rate limit
func (l *localLimiter) Wait(ctx context.Context) error {
	if !l.config.Enabled {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// Unlimited returns a limiter that never blocks
func Unlimited() Limiter {
	return &localLimiter{config: Config{Enabled: false}}
}
