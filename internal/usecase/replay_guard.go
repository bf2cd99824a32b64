package usecase

import (
	"context"
	"time"

	"gatepass/internal/clock"
	"gatepass/internal/domain"
)

// ReplayGuard binds each accepted nonce to the first gate that accepted it.
// The same gate may see the nonce again until it expires; any other gate
// gets ReasonReplayed.
type ReplayGuard struct {
	Nonces     NonceStore
	GateID     string
	Clock      clock.Clock
	ClockSkew  time.Duration
	FailClosed bool
}

func (g *ReplayGuard) Check(ctx context.Context, env domain.TicketEnvelope, result domain.VerifyResult) domain.VerifyResult {
	if !result.OK || g == nil || g.Nonces == nil {
		return result
	}
	now := time.Now().UTC()
	if g.Clock != nil {
		now = g.Clock.Now()
	}
	ttl := time.Unix(env.Payload.Expiry, 0).Sub(now) + g.ClockSkew
	if ttl < time.Second {
		ttl = time.Second
	}

	holder, err := g.Nonces.Claim(ctx, domain.NormalizeNonce(env.Payload.Nonce), g.GateID, ttl)
	if err != nil {
		if !g.FailClosed {
			return result
		}
		res := domain.Fail(domain.ReasonOracleUnavailable, "replay cache unavailable: "+err.Error())
		res.Recovered = result.Recovered
		return res
	}
	if holder != g.GateID {
		res := domain.Fail(domain.ReasonReplayed, "credential already presented at "+holder)
		res.Recovered = result.Recovered
		return res
	}
	return result
}

// GateVerifier is the verification boundary of one gate: the stateless
// verdict followed by the replay guard.
type GateVerifier struct {
	Ticket Verifier
	Replay *ReplayGuard
}

func (v *GateVerifier) Verify(ctx context.Context, env domain.TicketEnvelope) domain.VerifyResult {
	result := v.Ticket.Verify(ctx, env)
	if v.Replay == nil {
		return result
	}
	return v.Replay.Check(ctx, env, result)
}
