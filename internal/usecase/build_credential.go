package usecase

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"gatepass/internal/clock"
	"gatepass/internal/domain"
)

const DefaultRotationInterval = 30 * time.Second

type BuildCredentialRequest struct {
	TicketID domain.TicketID
	Signer   domain.Signer
}

// BuildCredential produces a freshly signed envelope. The expiry is always
// derived from the issue time and the rotation interval.
type BuildCredential struct {
	Crypto           CryptoService
	Clock            clock.Clock
	RotationInterval time.Duration
	Random           io.Reader
}

func (uc *BuildCredential) Execute(ctx context.Context, req BuildCredentialRequest) (domain.TicketEnvelope, error) {
	if req.Signer == nil {
		return domain.TicketEnvelope{}, domain.ErrSigningUnavailable
	}
	if req.TicketID.IsZero() {
		return domain.TicketEnvelope{}, domain.ErrInvalidTicketID
	}
	nonce, err := uc.nonce()
	if err != nil {
		return domain.TicketEnvelope{}, fmt.Errorf("generate nonce: %w", err)
	}

	now := uc.now().Unix()
	payload := domain.TicketPayload{
		Type:     domain.TicketQRType,
		TicketID: req.TicketID,
		Owner:    domain.NormalizeAddress(req.Signer.Address()),
		IssuedAt: now,
		Expiry:   now + int64(uc.rotation()/time.Second),
		Nonce:    nonce,
	}
	if payload.Owner == "" {
		return domain.TicketEnvelope{}, fmt.Errorf("%w: signer has no valid address", domain.ErrSigningUnavailable)
	}

	signature, err := req.Signer.SignMessage(ctx, uc.Crypto.CanonicalizePayload(payload))
	if err != nil {
		return domain.TicketEnvelope{}, fmt.Errorf("%w: %w", domain.ErrSigningUnavailable, err)
	}
	return domain.TicketEnvelope{Payload: payload, Signature: signature}, nil
}

func (uc *BuildCredential) nonce() (string, error) {
	src := uc.Random
	if src == nil {
		src = rand.Reader
	}
	buf := make([]byte, domain.MinNonceBytes)
	if _, err := io.ReadFull(src, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (uc *BuildCredential) rotation() time.Duration {
	if uc.RotationInterval < time.Second {
		return DefaultRotationInterval
	}
	return uc.RotationInterval
}

func (uc *BuildCredential) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now()
}
