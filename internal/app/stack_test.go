package app

import (
	"context"
	"testing"
	"time"

	"gatepass/internal/clock"
	"gatepass/internal/config"
	"gatepass/internal/domain"
	"gatepass/internal/infra/crypto"
	"gatepass/internal/usecase"

	"github.com/rs/zerolog"
)

func TestNewStackInMemory(t *testing.T) {
	holder, err := crypto.GenerateKeySigner()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	c := clock.NewFake(time.Unix(1_700_000_000, 0))
	cfg := config.Config{
		GateID:                  "north",
		RotationIntervalSeconds: 30,
		OracleTimeoutMillis:     1000,
		ClockSkewSeconds:        5,
		TicketOwners:            []string{"7=" + holder.Address()},
		ReplayFailClosed:        true,
	}
	stack, err := NewStack(context.Background(), cfg, c, zerolog.Nop())
	if err != nil {
		t.Fatalf("new stack: %v", err)
	}
	defer stack.Close()

	if err := stack.Ready(context.Background()); err != nil {
		t.Fatalf("ready: %v", err)
	}

	builder := &usecase.BuildCredential{Crypto: stack.Crypto, Clock: c, RotationInterval: cfg.RotationInterval()}
	env, err := builder.Execute(context.Background(), usecase.BuildCredentialRequest{TicketID: domain.NewTicketID("7"), Signer: holder})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if res := stack.Verifier.Verify(context.Background(), env); !res.OK {
		t.Fatalf("expected pass, got %+v", res)
	}

	resp, err := stack.Admit.Execute(context.Background(), usecase.AdmitTicketRequest{Envelope: env})
	if err != nil || resp.Admission == nil {
		t.Fatalf("expected admission, got %+v, %v", resp, err)
	}
	resp, _ = stack.Admit.Execute(context.Background(), usecase.AdmitTicketRequest{Envelope: env})
	if resp.Result.Reason != domain.ReasonAlreadyAdmitted {
		t.Fatalf("expected already admitted, got %+v", resp.Result)
	}
}

func TestNewStackRejectsBadOwners(t *testing.T) {
	cfg := config.Config{TicketOwners: []string{"7=not-an-address"}}
	if _, err := NewStack(context.Background(), cfg, nil, zerolog.Nop()); err == nil {
		t.Fatal("expected invalid TICKET_OWNERS to fail")
	}
}

func TestNewStackRequiresContract(t *testing.T) {
	cfg := config.Config{OracleRPCURL: "http://127.0.0.1:8545"}
	if _, err := NewStack(context.Background(), cfg, nil, zerolog.Nop()); err == nil {
		t.Fatal("expected missing contract address to fail")
	}
}
