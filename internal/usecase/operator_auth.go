package usecase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"gatepass/internal/clock"
	"gatepass/internal/domain"
)

const DefaultOperatorAuthSkew = 60 * time.Second

// OperatorChallenge is the message an operator signs to authenticate a
// single request.
func OperatorChallenge(address string, timestamp int64) []byte {
	return []byte("gatepass-operator:" + domain.NormalizeAddress(address) + ":" + strconv.FormatInt(timestamp, 10))
}

// SignOperatorCredentials produces fresh credentials for signer.
func SignOperatorCredentials(ctx context.Context, signer domain.Signer, c clock.Clock) (domain.OperatorCredentials, error) {
	if signer == nil {
		return domain.OperatorCredentials{}, domain.ErrSigningUnavailable
	}
	ts := time.Now().Unix()
	if c != nil {
		ts = c.Now().Unix()
	}
	sig, err := signer.SignMessage(ctx, OperatorChallenge(signer.Address(), ts))
	if err != nil {
		return domain.OperatorCredentials{}, fmt.Errorf("%w: %w", domain.ErrSigningUnavailable, err)
	}
	return domain.OperatorCredentials{
		Address:   domain.NormalizeAddress(signer.Address()),
		Timestamp: ts,
		Signature: sig,
	}, nil
}

// AuthenticateOperator checks that credentials were signed recently by the
// claimed address and that the gate policy lets that address operate.
type AuthenticateOperator struct {
	Crypto    CryptoService
	Policy    domain.GatePolicy
	Allowlist []string
	GateID    string
	Clock     clock.Clock
	MaxSkew   time.Duration
}

func (uc *AuthenticateOperator) Authenticate(ctx context.Context, creds domain.OperatorCredentials) (domain.Operator, error) {
	address := domain.NormalizeAddress(creds.Address)
	if address == "" || creds.Signature == "" || creds.Timestamp <= 0 {
		return domain.Operator{}, domain.ErrUnauthorized
	}

	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now()
	}
	skew := uc.MaxSkew
	if skew <= 0 {
		skew = DefaultOperatorAuthSkew
	}
	drift := now.Sub(time.Unix(creds.Timestamp, 0))
	if drift > skew || drift < -skew {
		return domain.Operator{}, fmt.Errorf("%w: stale operator signature", domain.ErrUnauthorized)
	}

	recovered, err := uc.Crypto.RecoverAddress(OperatorChallenge(address, creds.Timestamp), creds.Signature)
	if err != nil || !domain.SameAddress(recovered, address) {
		return domain.Operator{}, fmt.Errorf("%w: operator signature invalid", domain.ErrUnauthorized)
	}

	if uc.Policy == nil {
		return domain.Operator{}, domain.ErrForbidden
	}
	decision, err := uc.Policy.Evaluate(ctx, domain.GateInput{Operator: address, Allowlist: uc.Allowlist})
	if err != nil {
		return domain.Operator{}, err
	}
	if !decision.Authorized {
		return domain.Operator{}, domain.ErrForbidden
	}
	return domain.Operator{Address: address, GateID: uc.GateID}, nil
}

var _ domain.OperatorAuthenticator = (*AuthenticateOperator)(nil)
