package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gatepass/internal/clock"
	"gatepass/internal/domain"
)

const (
	DefaultOracleTimeout = 3 * time.Second
	DefaultClockSkew     = 5 * time.Second
)

// VerifyTicket decides whether an envelope proves current ownership of its
// ticket. Stages run in a fixed order and the first failing stage names the
// reason. Nothing is retained between calls.
type VerifyTicket struct {
	Crypto           CryptoService
	Oracle           domain.OwnershipOracle
	Clock            clock.Clock
	RotationInterval time.Duration
	OracleTimeout    time.Duration
	ClockSkew        time.Duration
}

func (uc *VerifyTicket) Verify(ctx context.Context, env domain.TicketEnvelope) domain.VerifyResult {
	return uc.Execute(ctx, env)
}

func (uc *VerifyTicket) Execute(ctx context.Context, env domain.TicketEnvelope) domain.VerifyResult {
	p := env.Payload
	now := uc.now()

	if err := uc.checkShape(env, now); err != nil {
		return domain.Fail(domain.ReasonMalformed, err.Error())
	}

	if now.Unix() > p.Expiry {
		return domain.Fail(domain.ReasonExpired, fmt.Sprintf("expired at %d", p.Expiry))
	}

	recovered, err := uc.Crypto.RecoverAddress(uc.Crypto.CanonicalizePayload(p), env.Signature)
	if err != nil {
		return domain.Fail(domain.ReasonBadSignature, err.Error())
	}
	claimed := domain.NormalizeAddress(p.Owner)
	if !domain.SameAddress(recovered, claimed) {
		res := domain.Fail(domain.ReasonOwnerMismatch, "signature does not belong to the claimed owner")
		res.Recovered = recovered
		return res
	}

	onChain, err := uc.ownerOf(ctx, p.TicketID)
	switch {
	case errors.Is(err, domain.ErrTicketNotFound):
		res := domain.Fail(domain.ReasonOwnershipMismatch, "ticket does not exist on the ledger")
		res.Recovered = recovered
		return res
	case err != nil:
		res := domain.Fail(domain.ReasonOracleUnavailable, err.Error())
		res.Recovered = recovered
		return res
	}
	if !domain.SameAddress(onChain, claimed) {
		res := domain.Fail(domain.ReasonOwnershipMismatch, "claimed owner no longer holds the ticket")
		res.Recovered = recovered
		res.Owner = domain.NormalizeAddress(onChain)
		return res
	}

	return domain.Pass(recovered, p.TicketID)
}

func (uc *VerifyTicket) checkShape(env domain.TicketEnvelope, now time.Time) error {
	p := env.Payload
	if err := p.ValidateShape(); err != nil {
		return err
	}
	if env.Signature == "" {
		return errors.New("signature is required")
	}
	if p.Expiry-p.IssuedAt > int64(uc.rotation()/time.Second) {
		return errors.New("validity window exceeds rotation interval")
	}
	if p.IssuedAt > now.Add(uc.skew()).Unix() {
		return errors.New("issued in the future")
	}
	return nil
}

func (uc *VerifyTicket) ownerOf(ctx context.Context, id domain.TicketID) (string, error) {
	if uc.Oracle == nil {
		return "", domain.ErrOracleUnavailable
	}
	timeout := uc.OracleTimeout
	if timeout <= 0 {
		timeout = DefaultOracleTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	owner, err := uc.Oracle.OwnerOf(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrTicketNotFound) {
			return "", err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: ownership read timed out", domain.ErrOracleUnavailable)
		}
		if errors.Is(err, domain.ErrOracleUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", domain.ErrOracleUnavailable, err)
	}
	return owner, nil
}

func (uc *VerifyTicket) rotation() time.Duration {
	if uc.RotationInterval < time.Second {
		return DefaultRotationInterval
	}
	return uc.RotationInterval
}

func (uc *VerifyTicket) skew() time.Duration {
	if uc.ClockSkew < 0 {
		return 0
	}
	return uc.ClockSkew
}

func (uc *VerifyTicket) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now()
}
