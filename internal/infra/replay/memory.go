package replay

import (
	"context"
	"sync"
	"time"

	"gatepass/internal/clock"
	"gatepass/internal/usecase"
)

// MemoryStore keeps nonce claims in process. It is enough for a single gate
// or for tests; gates that share a venue need the Redis store.
type MemoryStore struct {
	mu     sync.Mutex
	clock  clock.Clock
	claims map[string]claim
}

type claim struct {
	gateID    string
	expiresAt time.Time
}

func NewMemoryStore(c clock.Clock) *MemoryStore {
	if c == nil {
		c = clock.NewSystem()
	}
	return &MemoryStore{
		clock:  c,
		claims: make(map[string]claim),
	}
}

func (s *MemoryStore) Claim(ctx context.Context, nonce, gateID string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.claims[nonce]; ok {
		if now.Before(existing.expiresAt) {
			return existing.gateID, nil
		}
		delete(s.claims, nonce)
	}
	s.gc(now)
	s.claims[nonce] = claim{gateID: gateID, expiresAt: now.Add(ttl)}
	return gateID, nil
}

// Len reports the number of live claims.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gc(s.clock.Now())
	return len(s.claims)
}

func (s *MemoryStore) gc(now time.Time) {
	for nonce, c := range s.claims {
		if !now.Before(c.expiresAt) {
			delete(s.claims, nonce)
		}
	}
}

var _ usecase.NonceStore = (*MemoryStore)(nil)
