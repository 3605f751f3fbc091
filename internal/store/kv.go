package store

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrMiss = errors.New("cache miss")

type KV interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	// DeleteIfEquals removes key only while it still holds value.
	DeleteIfEquals(ctx context.Context, key string, value string) (bool, error)
}

type RedisKV struct {
	c *redis.Client
}

var _ KV = (*RedisKV)(nil)

func NewRedisKV(c *redis.Client) *RedisKV { return &RedisKV{c: c} }

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.c.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKV) SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	return r.c.SetNX(ctx, key, value, ttl).Result()
}

var deleteIfEquals = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (r *RedisKV) DeleteIfEquals(ctx context.Context, key string, value string) (bool, error) {
	n, err := deleteIfEquals.Run(ctx, r.c, []string{key}, value).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
