package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	gocache "github.com/patrickmn/go-cache"
)

// Cache defines the interface for cache operations
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	// SetNX stores value unless key is already present and reports whether it stored
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
}

// LocalCache wraps patrickmn/go-cache for in-memory caching
type LocalCache struct {
	cache *gocache.Cache
}

// NewLocalCache creates a new local cache instance.
// A defaultTTL of zero keeps entries for the process lifetime.
func NewLocalCache(defaultTTL, cleanupInterval time.Duration) *LocalCache {
	if defaultTTL == 0 {
		defaultTTL = gocache.NoExpiration
	}
	return &LocalCache{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Get retrieves a value from the local cache
func (l *LocalCache) Get(ctx context.Context, key string) (interface{}, bool) {
	return l.cache.Get(key)
}

// SetNX sets a value only if the key doesn't exist
func (l *LocalCache) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	// Add fails when the key is present and unexpired, which is exactly SETNX.
	if err := l.cache.Add(key, value, localTTL(ttl)); err != nil {
		return false, nil
	}
	return true, nil
}

func localTTL(ttl time.Duration) time.Duration {
	if ttl == 0 {
		return gocache.NoExpiration
	}
	return ttl
}

// RedisCache wraps go-redis for distributed caching
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisCache creates a new Redis cache instance
func NewRedisCache(client *redis.Client, keyPrefix string) *RedisCache {
	return &RedisCache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Get retrieves a value from Redis as raw JSON
func (r *RedisCache) Get(ctx context.Context, key string) (interface{}, bool) {
	val, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	return json.RawMessage(val), true
}

// SetNX sets a value only if the key doesn't exist
func (r *RedisCache) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	return r.client.SetNX(ctx, r.keyPrefix+key, data, ttl).Result()
}

// Decode copies a cached value into out. Local entries are stored as Go values,
// Redis entries come back as raw JSON; both are handled.
func Decode(value interface{}, out interface{}) error {
	var data []byte
	switch v := value.(type) {
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	default:
		var err error
		if data, err = json.Marshal(v); err != nil {
			return err
		}
	}
	return json.Unmarshal(data, out)
}
