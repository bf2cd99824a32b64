package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gatepass/internal/clock"
	"gatepass/internal/domain"
	"gatepass/internal/infra/crypto"
)

var testEpoch = time.Unix(1_700_000_000, 0).UTC()

type staticOracle struct {
	mu     sync.Mutex
	owners map[string]string
	err    error
	block  bool
	calls  int
}

func (o *staticOracle) OwnerOf(ctx context.Context, id domain.TicketID) (string, error) {
	o.mu.Lock()
	o.calls++
	owner, ok := o.owners[id.String()]
	err := o.err
	block := o.block
	o.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrTicketNotFound
	}
	return owner, nil
}

func (o *staticOracle) setOwner(id, owner string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.owners == nil {
		o.owners = map[string]string{}
	}
	o.owners[id] = owner
}

type mapNonceStore struct {
	mu      sync.Mutex
	holders map[string]string
	err     error
}

func (s *mapNonceStore) Claim(ctx context.Context, nonce, gateID string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if s.holders == nil {
		s.holders = map[string]string{}
	}
	if holder, ok := s.holders[nonce]; ok {
		return holder, nil
	}
	s.holders[nonce] = gateID
	return gateID, nil
}

type mapAdmissions struct {
	mu    sync.Mutex
	byID  map[string]domain.Admission
	err   error
	count int
}

func (r *mapAdmissions) Record(ctx context.Context, a domain.Admission) (domain.Admission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return domain.Admission{}, r.err
	}
	if r.byID == nil {
		r.byID = map[string]domain.Admission{}
	}
	if _, ok := r.byID[a.TicketID]; ok {
		return domain.Admission{}, domain.ErrAlreadyAdmitted
	}
	r.count++
	a.ID = "adm-" + a.TicketID
	r.byID[a.TicketID] = a
	return a, nil
}

func (r *mapAdmissions) GetByTicket(ctx context.Context, ticketID string) (*domain.Admission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[ticketID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

type failingSigner struct {
	address string
}

func (s failingSigner) Address() string { return s.address }

func (s failingSigner) SignMessage(ctx context.Context, message []byte) (string, error) {
	return "", errors.New("user rejected the request")
}

type allowlistPolicy struct{}

func (allowlistPolicy) Evaluate(ctx context.Context, input domain.GateInput) (domain.GateDecision, error) {
	decision := domain.GateDecision{Action: domain.DispositionDeny}
	for _, a := range input.Allowlist {
		if domain.SameAddress(a, input.Operator) {
			decision.Authorized = true
		}
	}
	if input.Result != nil {
		decision.Action = input.Result.Disposition()
	}
	return decision, nil
}

func newSigner(t *testing.T) *crypto.KeySigner {
	t.Helper()
	signer, err := crypto.GenerateKeySigner()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return signer
}

type fixture struct {
	clock   *clock.FakeClock
	oracle  *staticOracle
	builder *BuildCredential
	verify  *VerifyTicket
}

func newFixture() *fixture {
	c := clock.NewFake(testEpoch)
	oracle := &staticOracle{}
	svc := crypto.NewService()
	return &fixture{
		clock:  c,
		oracle: oracle,
		builder: &BuildCredential{
			Crypto:           svc,
			Clock:            c,
			RotationInterval: 30 * time.Second,
		},
		verify: &VerifyTicket{
			Crypto:           svc,
			Oracle:           oracle,
			Clock:            c,
			RotationInterval: 30 * time.Second,
			OracleTimeout:    time.Second,
			ClockSkew:        5 * time.Second,
		},
	}
}

func (f *fixture) build(t *testing.T, id string, signer domain.Signer) domain.TicketEnvelope {
	t.Helper()
	env, err := f.builder.Execute(context.Background(), BuildCredentialRequest{
		TicketID: domain.NewTicketID(id),
		Signer:   signer,
	})
	if err != nil {
		t.Fatalf("build credential: %v", err)
	}
	return env
}
