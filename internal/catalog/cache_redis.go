package catalog

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisGenrePrefix = "catalog:genre:"

// RedisGenreBackend stores genre labels in Redis keyed by release-group id.
type RedisGenreBackend struct {
	client *redis.Client
}

func NewRedisGenreBackend(client *redis.Client) *RedisGenreBackend {
	return &RedisGenreBackend{client: client}
}

func (r *RedisGenreBackend) Get(ctx context.Context, id string) (string, bool, error) {
	value, err := r.client.Get(ctx, redisGenrePrefix+id).Result()
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (r *RedisGenreBackend) Set(ctx context.Context, id, genre string, ttl time.Duration) error {
	return r.client.Set(ctx, redisGenrePrefix+id, genre, ttl).Err()
}

func (r *RedisGenreBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
