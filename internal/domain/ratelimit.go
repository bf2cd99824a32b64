package domain

import (
	"context"
	"strings"
	"time"
)

type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is how long a refused operator should wait, measured on the
	// limiter's own clock.
	RetryAfter time.Duration
}

// RateLimitKey scopes a request budget to one operator calling one route at
// one gate.
type RateLimitKey struct {
	GateID   string
	Route    string
	Operator string
}

func (k RateLimitKey) String() string {
	return "gate:" + k.GateID + ":endpoint:" + k.Route + ":operator:" + strings.ToLower(k.Operator)
}

// RateLimiter bounds how often one operator can hit the verifier.
type RateLimiter interface {
	Allow(ctx context.Context, key RateLimitKey, limit int, window time.Duration) (RateLimitDecision, error)
}
