package replay

import (
	"context"
	"errors"
	"time"

	"gatepass/internal/usecase"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "gatepass:nonce:"

// RedisStore shares nonce claims between the gates of a venue.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Claim(ctx context.Context, nonce, gateID string, ttl time.Duration) (string, error) {
	key := redisKeyPrefix + nonce
	// The claim can expire between SETNX and GET; one retry covers it.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.client.SetNX(ctx, key, gateID, ttl).Result()
		if err != nil {
			return "", err
		}
		if ok {
			return gateID, nil
		}
		holder, err := s.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return "", err
		}
		return holder, nil
	}
	return "", errors.New("nonce claim did not settle")
}

var _ usecase.NonceStore = (*RedisStore)(nil)
