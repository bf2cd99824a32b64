package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	"gatepass/internal/clock"
	"gatepass/internal/domain"
)

// DefaultMaxOperators bounds how many operators the memory limiter tracks.
const DefaultMaxOperators = 10000

type window struct {
	count int
	end   time.Time
}

// operatorBudget is one operator's fixed windows at one gate, one per route.
type operatorBudget struct {
	routes  map[string]*window
	lastEnd time.Time
}

type memoryLimiter struct {
	mu           sync.Mutex
	clock        clock.Clock
	operators    map[string]*operatorBudget
	maxOperators int
}

type MemoryLimiterConfig struct {
	Clock clock.Clock
	// MaxKeys caps the tracked operators. When full, the operator whose
	// windows end first is forgotten.
	MaxKeys int
}

// NewMemoryLimiter counts each operator's requests per route in fixed
// windows. It serves a single gatepassd instance and never fails.
func NewMemoryLimiter(cfg MemoryLimiterConfig) domain.RateLimiter {
	if cfg.Clock == nil {
		cfg.Clock = clock.NewSystem()
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = DefaultMaxOperators
	}
	return &memoryLimiter{
		clock:        cfg.Clock,
		operators:    make(map[string]*operatorBudget),
		maxOperators: cfg.MaxKeys,
	}
}

func (m *memoryLimiter) Allow(_ context.Context, key domain.RateLimitKey, limit int, d time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	budget := m.budget(key, now)
	w := budget.routes[key.Route]
	if w == nil || !now.Before(w.end) {
		w = &window{end: now.Add(d)}
		budget.routes[key.Route] = w
		if w.end.After(budget.lastEnd) {
			budget.lastEnd = w.end
		}
	}

	decision := domain.RateLimitDecision{Limit: limit, ResetAt: w.end}
	if w.count >= limit {
		decision.RetryAfter = w.end.Sub(now)
		return decision, nil
	}
	w.count++
	decision.Allowed = true
	decision.Remaining = limit - w.count
	return decision, nil
}

func (m *memoryLimiter) budget(key domain.RateLimitKey, now time.Time) *operatorBudget {
	id := key.GateID + "/" + strings.ToLower(key.Operator)
	if b, ok := m.operators[id]; ok {
		return b
	}
	if len(m.operators) >= m.maxOperators {
		m.evict(now)
	}
	b := &operatorBudget{routes: make(map[string]*window)}
	m.operators[id] = b
	return b
}

// evict drops operators whose windows have all ended, and failing that the
// one whose windows end first.
func (m *memoryLimiter) evict(now time.Time) {
	var oldest string
	for id, b := range m.operators {
		if !now.Before(b.lastEnd) {
			delete(m.operators, id)
			continue
		}
		if oldest == "" || b.lastEnd.Before(m.operators[oldest].lastEnd) {
			oldest = id
		}
	}
	if len(m.operators) >= m.maxOperators && oldest != "" {
		delete(m.operators, oldest)
	}
}
