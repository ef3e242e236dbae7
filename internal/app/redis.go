package app

import (
	"amocrm-leads/internal/common/errors"
	"amocrm-leads/internal/common/logging"
	"amocrm-leads/internal/redis"
)

func (app *App) initializeRedis() error {
	if !app.Config.UsesRedis() {
		app.Logger.Info("Redis: Not configured (file token storage, in-process lookup cache)")
		return nil
	}

	redisConfig := &redis.Config{
		Address:  app.Config.RedisAddress,
		Password: app.Config.RedisPassword,
		DB:       app.Config.RedisDB,
		PoolSize: app.Config.RedisPoolSize,
	}

	redisClient, err := redis.NewClient(redisConfig)
	if err != nil {
		return errors.ConfigError("redis is required by TOKEN_STORAGE or CACHE_BACKEND but unreachable").
			WithContext("address", app.Config.RedisAddress).
			WithContext("cause", err.Error())
	}

	app.RedisClient = redisClient
	app.Logger.Info("Redis: Connected",
		logging.Field{Key: "address", Value: app.Config.RedisAddress},
		logging.Field{Key: "token_storage", Value: app.Config.TokenStorage},
		logging.Field{Key: "cache_backend", Value: app.Config.CacheBackend},
	)

	return nil
}
