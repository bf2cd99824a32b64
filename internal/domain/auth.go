package domain

import "context"

// Operator is an authenticated scanner operator.
type Operator struct {
	Address string
	GateID  string
}

// OperatorCredentials are presented by the scanner on every service call.
type OperatorCredentials struct {
	Address   string
	Timestamp int64
	Signature string
}

type OperatorAuthenticator interface {
	Authenticate(ctx context.Context, creds OperatorCredentials) (Operator, error)
}

// Headers carrying OperatorCredentials on verifier service calls.
const (
	HeaderOperatorAddress   = "X-Operator-Address"
	HeaderOperatorTimestamp = "X-Operator-Timestamp"
	HeaderOperatorSignature = "X-Operator-Signature"
)
