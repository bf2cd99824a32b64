package ratelimit

import (
	"context"
	"errors"
	"time"

	"gatepass/internal/clock"
	"gatepass/internal/domain"

	"github.com/redis/go-redis/v9"
)

type redisLimiter struct {
	client redis.Scripter
	clock  clock.Clock
	prefix string
}

var redisAllowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

// NewRedisLimiter shares request counts between every gatepassd instance
// pointed at the same Redis.
func NewRedisLimiter(client redis.Scripter, c clock.Clock) (domain.RateLimiter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if c == nil {
		c = clock.NewSystem()
	}
	return &redisLimiter{client: client, clock: c, prefix: "gatepass:ratelimit:"}, nil
}

func (r *redisLimiter) Allow(ctx context.Context, key domain.RateLimitKey, limit int, window time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	windowMillis := window.Milliseconds()
	if windowMillis <= 0 {
		windowMillis = 1000
	}
	result, err := redisAllowScript.Run(ctx, r.client, []string{r.prefix + key.String()}, windowMillis).Result()
	if err != nil {
		return domain.RateLimitDecision{}, err
	}
	values, ok := result.([]any)
	if !ok || len(values) < 2 {
		return domain.RateLimitDecision{}, errors.New("unexpected redis rate limit response")
	}
	current, ok := values[0].(int64)
	if !ok {
		return domain.RateLimitDecision{}, errors.New("invalid redis counter response")
	}
	ttlMillis, _ := values[1].(int64)
	ttl := time.Duration(ttlMillis) * time.Millisecond
	if ttl < 0 {
		ttl = 0
	}
	remaining := limit - int(current)
	if remaining < 0 {
		remaining = 0
	}
	decision := domain.RateLimitDecision{
		Allowed:   current <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   r.clock.Now().Add(ttl),
	}
	if !decision.Allowed {
		decision.RetryAfter = ttl
	}
	return decision, nil
}
