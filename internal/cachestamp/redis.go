package cachestamp

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis shares one stamp across service instances via INCR on a single key.
type Redis struct {
	client *redis.Client
	key    string
}

func NewRedis(client *redis.Client, key string) *Redis {
	if key == "" {
		key = "aims:cache-version"
	}
	return &Redis{client: client, key: key}
}

func (r *Redis) Bump(ctx context.Context) (int64, error) {
	n, err := r.client.Incr(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("bump cache stamp: %w", err)
	}
	return n, nil
}

func (r *Redis) Current(ctx context.Context) (int64, error) {
	n, err := r.client.Get(ctx, r.key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("read cache stamp: %w", err)
	}
	return n, nil
}
