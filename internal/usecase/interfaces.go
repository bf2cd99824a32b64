package usecase

import (
	"context"
	"time"

	"gatepass/internal/domain"
)

type CryptoService interface {
	CanonicalizePayload(p domain.TicketPayload) []byte
	RecoverAddress(message []byte, signature string) (string, error)
}

// NonceStore remembers which gate first accepted a nonce. Claim stores
// gateID for nonce when the nonce is unknown and returns the gate that
// holds it after the call.
type NonceStore interface {
	Claim(ctx context.Context, nonce, gateID string, ttl time.Duration) (holder string, err error)
}

// Verifier turns an envelope into a verdict. Implementations never return
// an error: every failure is expressed as a VerifyResult reason.
type Verifier interface {
	Verify(ctx context.Context, env domain.TicketEnvelope) domain.VerifyResult
}
