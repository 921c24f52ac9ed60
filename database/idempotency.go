package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lab_manager/constants"
)

// RedisIdempotency keeps Idempotency-Key to booking id mappings for ttl.
type RedisIdempotency struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIdempotency(client *redis.Client, ttl time.Duration) *RedisIdempotency {
	return &RedisIdempotency{client: client, ttl: ttl}
}

func (r *RedisIdempotency) Lookup(ctx context.Context, userId uint, key string) (uint, bool, error) {
	id, err := r.client.Get(ctx, idempotencyKey(userId, key)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return uint(id), true, nil
}

// Remember keeps the first mapping written for a key.
func (r *RedisIdempotency) Remember(ctx context.Context, userId uint, key string, bookingId uint) error {
	return r.client.SetNX(ctx, idempotencyKey(userId, key), bookingId, r.ttl).Err()
}

func idempotencyKey(userId uint, key string) string {
	return fmt.Sprintf(constants.IDEMPOTENCY_KEY, userId, key)
}
