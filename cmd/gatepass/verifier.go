package main

import (
	"context"
	"fmt"
	"strings"

	"gatepass/internal/app"
	"gatepass/internal/domain"
	"gatepass/internal/infra/remote"
	"gatepass/internal/usecase"
)

// gateVerifier is what scan and verify run envelopes through: either the
// remote gatepassd service or an in-process stack built from the same
// configuration. Both only open for an operator the gate authorizes.
type gateVerifier struct {
	check    func(ctx context.Context, env domain.TicketEnvelope) (domain.VerifyResult, error)
	decide   *usecase.DecideGate
	operator domain.Operator
	close    func()

	// refused, when set, is told that the service stopped accepting the
	// operator mid-session.
	refused func(error)
}

func newGateVerifier(ctx context.Context, verifierURL string, admit bool) (*gateVerifier, error) {
	url := strings.TrimSpace(verifierURL)
	if url == "" {
		url = cfg.VerifierURL
	}
	if url != "" {
		return newRemoteVerifier(ctx, url, admit)
	}
	return newLocalVerifier(ctx, admit)
}

func newRemoteVerifier(ctx context.Context, url string, admit bool) (*gateVerifier, error) {
	operator, err := loadSigner()
	if err != nil {
		return nil, fmt.Errorf("operator key: %w", err)
	}
	client, err := remote.New(url, operator, wall, cfg.OracleTimeout()*2)
	if err != nil {
		return nil, err
	}
	op, err := client.Authorize(ctx)
	if err != nil {
		return nil, fmt.Errorf("operator %s: %w", operator.Address(), err)
	}
	logger.Info().Str("verifier", url).Str("operator", op.Address).Str("gate", op.GateID).Msg("verifying through gatepassd")

	gv := &gateVerifier{
		check:    client.Verify,
		decide:   &usecase.DecideGate{},
		operator: domain.Operator{Address: op.Address, GateID: op.GateID},
		close:    func() {},
	}
	if admit {
		gv.check = remoteAdmitter{client: client}.Verify
	}
	return gv, nil
}

func newLocalVerifier(ctx context.Context, admit bool) (*gateVerifier, error) {
	operator, err := loadSigner()
	if err != nil {
		return nil, fmt.Errorf("operator key: %w", err)
	}
	stack, err := app.NewStack(ctx, cfg, wall, logger)
	if err != nil {
		return nil, err
	}
	creds, err := usecase.SignOperatorCredentials(ctx, operator, wall)
	if err == nil {
		var op domain.Operator
		if op, err = stack.Operators().Authenticate(ctx, creds); err == nil {
			logger.Info().Str("gate", op.GateID).Str("operator", op.Address).Msg("verifying locally")
			return newStackVerifier(stack, op, admit), nil
		}
	}
	stack.Close()
	return nil, fmt.Errorf("operator %s at gate %s: %w", operator.Address(), cfg.GateID, err)
}

func newStackVerifier(stack *app.Stack, op domain.Operator, admit bool) *gateVerifier {
	gv := &gateVerifier{
		check: func(ctx context.Context, env domain.TicketEnvelope) (domain.VerifyResult, error) {
			return stack.Verifier.Verify(ctx, env), nil
		},
		decide:   &usecase.DecideGate{Policy: stack.Policy, Operator: op.Address, Allowlist: cfg.ScannerAllowlist},
		operator: op,
		close:    stack.Close,
	}
	if admit {
		gv.check = localAdmitter{admit: stack.Admit, operator: op}.Verify
	}
	return gv
}

func (g *gateVerifier) Verify(ctx context.Context, env domain.TicketEnvelope) domain.VerifyResult {
	result, err := g.check(ctx, env)
	if err == nil {
		return result
	}
	if remote.IsRefusal(err) && g.refused != nil {
		g.refused(err)
	}
	return domain.Fail(domain.ReasonOracleUnavailable, "verifier unavailable: "+err.Error())
}

// remoteAdmitter records admission on every pass instead of only verifying.
type remoteAdmitter struct {
	client *remote.Client
}

func (a remoteAdmitter) Verify(ctx context.Context, env domain.TicketEnvelope) (domain.VerifyResult, error) {
	result, admission, err := a.client.Admit(ctx, env)
	if err != nil {
		if remote.IsRefusal(err) {
			return domain.VerifyResult{}, err
		}
		return domain.Fail(domain.ReasonOracleUnavailable, "admission unavailable: "+err.Error()), nil
	}
	if admission != nil {
		logger.Info().Str("admission", admission.ID).Str("ticket", admission.TicketID).Msg("admitted")
	}
	return result, nil
}

type localAdmitter struct {
	admit    *usecase.AdmitTicket
	operator domain.Operator
}

func (a localAdmitter) Verify(ctx context.Context, env domain.TicketEnvelope) (domain.VerifyResult, error) {
	resp, err := a.admit.Execute(ctx, usecase.AdmitTicketRequest{Envelope: env, Operator: a.operator})
	if err != nil {
		return domain.Fail(domain.ReasonOracleUnavailable, "admission unavailable: "+err.Error()), nil
	}
	if resp.Admission != nil {
		logger.Info().Str("admission", resp.Admission.ID).Str("ticket", resp.Admission.TicketID).Msg("admitted")
	}
	return resp.Result, nil
}
