package cache

import (
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Type represents the cache backend type
type Type string

const (
	TypeLocal Type = "local"
	TypeRedis Type = "redis"
)

// Config holds cache configuration
type Config struct {
	Type            Type
	TTL             time.Duration
	CleanupInterval time.Duration
	KeyPrefix       string
	RedisClient     *redis.Client
}

// DefaultConfig returns default cache configuration: local, never expiring
func DefaultConfig() Config {
	return Config{
		Type:            TypeLocal,
		TTL:             0,
		CleanupInterval: 10 * time.Minute,
		KeyPrefix:       "amocrm:",
	}
}

// New creates a cache instance based on configuration
func New(config Config) (Cache, error) {
	switch config.Type {
	case TypeLocal, "":
		return NewLocalCache(config.TTL, config.CleanupInterval), nil

	case TypeRedis:
		if config.RedisClient == nil {
			return nil, fmt.Errorf("redis client required for redis cache")
		}
		return NewRedisCache(config.RedisClient, config.KeyPrefix), nil

	default:
		return nil, fmt.Errorf("unknown cache type: %s", config.Type)
	}
}
