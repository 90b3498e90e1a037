package store

import (
	"context"

	"vacancy-report/internal/config"

	"github.com/go-redis/redis/v8"
)

// NewRedisClient builds the Redis client for the session index.
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Ping checks the Redis connection
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}
