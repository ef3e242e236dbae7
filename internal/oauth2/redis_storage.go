package oauth2

import (
	"context"
	stderrors "errors"
	"time"

	"amocrm-leads/internal/common/errors"
	"amocrm-leads/internal/redis"
)

// RedisInterface is the subset of the Redis client used for token storage
type RedisInterface interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// DefaultRedisKey is where credentials live unless configured otherwise
const DefaultRedisKey = "amocrm:oauth2:credentials"

// RedisTokenStorage shares credentials between service instances.
// The refresh token outlives the access token, so keys are stored without TTL.
type RedisTokenStorage struct {
	client RedisInterface
	key    string
}

// NewRedisTokenStorage creates a Redis-backed storage. An empty key selects DefaultRedisKey.
func NewRedisTokenStorage(client RedisInterface, key string) *RedisTokenStorage {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisTokenStorage{
		client: client,
		key:    key,
	}
}

func (s *RedisTokenStorage) SaveCredentials(ctx context.Context, creds *Credentials) error {
	if err := s.client.Set(ctx, s.key, creds, 0); err != nil {
		return errors.TransportError("failed to store credentials in redis", err)
	}
	return nil
}

func (s *RedisTokenStorage) LoadCredentials(ctx context.Context) (*Credentials, error) {
	data, err := s.client.Get(ctx, s.key)
	if stderrors.Is(err, redis.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.TransportError("failed to load credentials from redis", err)
	}
	if data == "" {
		return nil, nil
	}

	return decodeCredentials([]byte(data))
}

func (s *RedisTokenStorage) DeleteCredentials(ctx context.Context) error {
	if err := s.client.Delete(ctx, s.key); err != nil {
		return errors.TransportError("failed to delete credentials from redis", err)
	}
	return nil
}
