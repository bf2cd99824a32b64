package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"gatepass/internal/domain"
	"gatepass/internal/infra/crypto"
)

func TestAuthenticateOperator(t *testing.T) {
	f := newFixture()
	allowed, stranger := newSigner(t), newSigner(t)
	uc := &AuthenticateOperator{
		Crypto:    crypto.NewService(),
		Policy:    allowlistPolicy{},
		Allowlist: []string{allowed.Address()},
		GateID:    "north",
		Clock:     f.clock,
		MaxSkew:   time.Minute,
	}
	ctx := context.Background()

	creds, err := SignOperatorCredentials(ctx, allowed, f.clock)
	if err != nil {
		t.Fatalf("sign credentials: %v", err)
	}
	op, err := uc.Authenticate(ctx, creds)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if op.Address != allowed.Address() || op.GateID != "north" {
		t.Fatalf("unexpected operator %+v", op)
	}

	strangerCreds, _ := SignOperatorCredentials(ctx, stranger, f.clock)
	if _, err := uc.Authenticate(ctx, strangerCreds); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	forged := strangerCreds
	forged.Address = allowed.Address()
	if _, err := uc.Authenticate(ctx, forged); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for forged address, got %v", err)
	}

	f.clock.Advance(2 * time.Minute)
	if _, err := uc.Authenticate(ctx, creds); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for stale credentials, got %v", err)
	}

	if _, err := uc.Authenticate(ctx, domain.OperatorCredentials{}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for empty credentials, got %v", err)
	}
}

func TestAuthenticateOperator_EmptyAllowlistDeniesEveryone(t *testing.T) {
	f := newFixture()
	op := newSigner(t)
	uc := &AuthenticateOperator{Crypto: crypto.NewService(), Policy: allowlistPolicy{}, Clock: f.clock}

	creds, _ := SignOperatorCredentials(context.Background(), op, f.clock)
	if _, err := uc.Authenticate(context.Background(), creds); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestSignOperatorCredentials_KeepsSignerCause(t *testing.T) {
	signer, err := crypto.GenerateKeySigner()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = SignOperatorCredentials(ctx, signer, nil)
	if !errors.Is(err, domain.ErrSigningUnavailable) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected signing unavailable caused by cancellation, got %v", err)
	}
}
