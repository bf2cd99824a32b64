package usecase

import (
	"context"
	"fmt"

	"gatepass/internal/domain"
)

// DecideGate maps a verdict to the action shown to the operator. The gate
// policy decides when one is configured. Without a policy, or when it fails,
// the reason's own disposition is returned together with the policy error.
type DecideGate struct {
	Policy    domain.GatePolicy
	Operator  string
	Allowlist []string
}

func (uc *DecideGate) Execute(ctx context.Context, result domain.VerifyResult) (domain.GateDecision, error) {
	fallback := domain.GateDecision{Action: result.Disposition(), Authorized: true}
	if uc == nil || uc.Policy == nil {
		return fallback, nil
	}
	decision, err := uc.Policy.Evaluate(ctx, domain.GateInput{
		Operator:  uc.Operator,
		Allowlist: uc.Allowlist,
		Result:    &result,
	})
	if err != nil {
		return fallback, fmt.Errorf("gate policy: %w", err)
	}
	switch decision.Action {
	case domain.DispositionAdmit, domain.DispositionDeny, domain.DispositionRetry:
	default:
		return fallback, fmt.Errorf("gate policy: unknown action %q", decision.Action)
	}
	// The policy may never admit what the verifier rejected.
	if decision.Action == domain.DispositionAdmit && !result.OK {
		decision.Action = fallback.Action
	}
	return decision, nil
}
