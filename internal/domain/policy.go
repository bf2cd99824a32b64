package domain

import "context"

// GateInput is evaluated by the gate policy. Result is nil when only the
// operator's authorization is being checked.
type GateInput struct {
	Operator  string        `json:"operator"`
	Allowlist []string      `json:"allowlist"`
	Result    *VerifyResult `json:"result,omitempty"`
}

type GateDecision struct {
	Action     Disposition `json:"action"`
	Authorized bool        `json:"authorized"`
}

type GatePolicy interface {
	Evaluate(ctx context.Context, input GateInput) (GateDecision, error)
}
