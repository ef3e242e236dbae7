package oauth2

import (
	"context"
	"testing"

	"amocrm-leads/internal/common/errors"
	"amocrm-leads/internal/redis"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStorage(t *testing.T) (*RedisTokenStorage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return NewRedisTokenStorage(client, ""), mr
}

func TestRedisTokenStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	storage, mr := newRedisStorage(t)

	creds, err := storage.LoadCredentials(ctx)
	require.NoError(t, err)
	assert.Nil(t, creds)

	require.NoError(t, storage.SaveCredentials(ctx, sampleCredentials()))
	assert.True(t, mr.Exists(DefaultRedisKey))
	assert.Zero(t, mr.TTL(DefaultRedisKey))

	loaded, err := storage.LoadCredentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleCredentials(), loaded)

	require.NoError(t, storage.DeleteCredentials(ctx))
	assert.False(t, mr.Exists(DefaultRedisKey))
}

func TestRedisTokenStorage_CustomKey(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	storage := NewRedisTokenStorage(client, "tenant:tokens")
	require.NoError(t, storage.SaveCredentials(context.Background(), sampleCredentials()))
	assert.True(t, mr.Exists("tenant:tokens"))
}

func TestRedisTokenStorage_CorruptValue(t *testing.T) {
	storage, mr := newRedisStorage(t)
	require.NoError(t, mr.Set(DefaultRedisKey, "garbage"))

	creds, err := storage.LoadCredentials(context.Background())
	assert.Nil(t, creds)
	assert.True(t, errors.IsType(err, errors.ErrTypeDataIntegrity))
}

func TestRedisTokenStorage_ServerDown(t *testing.T) {
	storage, mr := newRedisStorage(t)
	mr.Close()

	_, err := storage.LoadCredentials(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrTypeTransport))
	assert.True(t, errors.IsType(storage.SaveCredentials(context.Background(), sampleCredentials()), errors.ErrTypeTransport))
}
