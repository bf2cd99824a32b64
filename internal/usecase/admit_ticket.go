package usecase

import (
	"context"
	"errors"
	"time"

	"gatepass/internal/clock"
	"gatepass/internal/domain"
)

type AdmitTicketRequest struct {
	Envelope domain.TicketEnvelope
	Operator domain.Operator
}

type AdmitTicketResponse struct {
	Result    domain.VerifyResult
	Admission *domain.Admission
}

// AdmitTicket confirms entry. The envelope is verified again at admission
// time and the ticket may be admitted only once.
type AdmitTicket struct {
	Verifier   Verifier
	Admissions domain.AdmissionRepository
	Clock      clock.Clock
}

func (uc *AdmitTicket) Execute(ctx context.Context, req AdmitTicketRequest) (AdmitTicketResponse, error) {
	result := uc.Verifier.Verify(ctx, req.Envelope)
	if !result.OK {
		return AdmitTicketResponse{Result: result}, nil
	}

	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now()
	}
	p := req.Envelope.Payload
	admission, err := uc.Admissions.Record(ctx, domain.Admission{
		TicketID:   p.TicketID.String(),
		Owner:      result.Recovered,
		Operator:   domain.NormalizeAddress(req.Operator.Address),
		GateID:     req.Operator.GateID,
		Nonce:      domain.NormalizeNonce(p.Nonce),
		AdmittedAt: now,
	})
	if errors.Is(err, domain.ErrAlreadyAdmitted) {
		res := domain.Fail(domain.ReasonAlreadyAdmitted, "ticket was already admitted")
		res.Recovered = result.Recovered
		res.TokenID = result.TokenID
		return AdmitTicketResponse{Result: res}, nil
	}
	if err != nil {
		return AdmitTicketResponse{}, err
	}
	return AdmitTicketResponse{Result: result, Admission: &admission}, nil
}
