package redis

import (
	"context"

	"wisefido-medbox/owl-common/config"

	"github.com/go-redis/redis/v8"
)

// Client alias so callers do not import go-redis directly
type Client = redis.Client

// NewRedisClient creates a Redis client from config
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Ping checks the connection
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}
