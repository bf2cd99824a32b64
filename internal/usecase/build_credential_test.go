package usecase

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"gatepass/internal/domain"
	"gatepass/internal/infra/crypto"
)

func TestBuildCredential_DerivesExpiryAndSigns(t *testing.T) {
	f := newFixture()
	signer := newSigner(t)

	env := f.build(t, "7", signer)
	p := env.Payload
	if p.Type != domain.TicketQRType || p.TicketID.String() != "7" {
		t.Fatalf("unexpected payload %+v", p)
	}
	if p.Owner != signer.Address() {
		t.Fatalf("owner %s, want %s", p.Owner, signer.Address())
	}
	if p.IssuedAt != testEpoch.Unix() || p.Expiry != p.IssuedAt+30 {
		t.Fatalf("unexpected window iat=%d exp=%d", p.IssuedAt, p.Expiry)
	}
	if err := p.ValidateShape(); err != nil {
		t.Fatalf("built payload has bad shape: %v", err)
	}
	recovered, err := crypto.RecoverAddress(crypto.CanonicalizePayload(p), env.Signature)
	if err != nil || recovered != signer.Address() {
		t.Fatalf("signature does not recover to holder: %s %v", recovered, err)
	}
}

func TestBuildCredential_NoncesDiffer(t *testing.T) {
	f := newFixture()
	signer := newSigner(t)
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		env := f.build(t, "7", signer)
		if seen[env.Payload.Nonce] {
			t.Fatalf("nonce repeated: %s", env.Payload.Nonce)
		}
		seen[env.Payload.Nonce] = true
	}
}

func TestBuildCredential_DeterministicRandom(t *testing.T) {
	f := newFixture()
	f.builder.Random = bytes.NewReader(bytes.Repeat([]byte{0xab}, 16))
	env := f.build(t, "7", newSigner(t))
	if env.Payload.Nonce != "abababababababababababababababab" {
		t.Fatalf("unexpected nonce %s", env.Payload.Nonce)
	}

	f.builder.Random = bytes.NewReader(nil)
	_, err := f.builder.Execute(context.Background(), BuildCredentialRequest{TicketID: domain.NewTicketID("7"), Signer: newSigner(t)})
	if err == nil {
		t.Fatal("expected error when random source is exhausted")
	}
}

func TestBuildCredential_SignerErrors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.builder.Execute(ctx, BuildCredentialRequest{TicketID: domain.NewTicketID("7")}); !errors.Is(err, domain.ErrSigningUnavailable) {
		t.Fatalf("expected signing unavailable, got %v", err)
	}

	signer := failingSigner{address: newSigner(t).Address()}
	if _, err := f.builder.Execute(ctx, BuildCredentialRequest{TicketID: domain.NewTicketID("7"), Signer: signer}); !errors.Is(err, domain.ErrSigningUnavailable) {
		t.Fatalf("expected wrapped signer failure, got %v", err)
	}

	if _, err := f.builder.Execute(ctx, BuildCredentialRequest{Signer: newSigner(t)}); !errors.Is(err, domain.ErrInvalidTicketID) {
		t.Fatalf("expected invalid ticket id, got %v", err)
	}
}

func TestBuildCredential_KeepsSignerCause(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.builder.Execute(ctx, BuildCredentialRequest{TicketID: domain.NewTicketID("7"), Signer: newSigner(t)})
	if !errors.Is(err, domain.ErrSigningUnavailable) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected signing unavailable caused by cancellation, got %v", err)
	}
}

func TestBuildCredential_DefaultRotation(t *testing.T) {
	f := newFixture()
	f.builder.RotationInterval = 0
	env := f.build(t, "7", newSigner(t))
	if got := time.Duration(env.Payload.Expiry-env.Payload.IssuedAt) * time.Second; got != DefaultRotationInterval {
		t.Fatalf("unexpected default window %s", got)
	}
}
