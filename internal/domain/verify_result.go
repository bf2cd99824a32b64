package domain

// Reason names why a verification failed.
type Reason string

const (
	ReasonMalformed         Reason = "malformed"
	ReasonExpired           Reason = "expired"
	ReasonBadSignature      Reason = "bad_signature"
	ReasonOwnerMismatch     Reason = "owner_mismatch"
	ReasonOwnershipMismatch Reason = "ownership_mismatch"
	ReasonOracleUnavailable Reason = "oracle_unavailable"
	ReasonReplayed          Reason = "replayed"
	ReasonAlreadyAdmitted   Reason = "already_admitted"
)

// Disposition is what the gate should do with a verdict.
type Disposition string

const (
	DispositionAdmit Disposition = "admit"
	DispositionDeny  Disposition = "deny"
	DispositionRetry Disposition = "retry"
)

// Disposition separates availability problems, which the operator may
// retry, from verdicts that indicate fraud.
func (r Reason) Disposition() Disposition {
	switch r {
	case "":
		return DispositionAdmit
	case ReasonMalformed, ReasonExpired, ReasonOracleUnavailable:
		return DispositionRetry
	default:
		return DispositionDeny
	}
}

// VerifyResult is the verifier output. On success OK is set together with
// Recovered and TokenID; on failure Reason is set and Recovered/Owner carry
// whatever the pipeline learned before it stopped.
type VerifyResult struct {
	OK        bool      `json:"ok"`
	Reason    Reason    `json:"reason,omitempty"`
	Recovered string    `json:"recovered,omitempty"`
	Owner     string    `json:"owner,omitempty"`
	TokenID   *TicketID `json:"tokenId,omitempty"`
	Message   string    `json:"message,omitempty"`
}

func Pass(recovered string, tokenID TicketID) VerifyResult {
	return VerifyResult{OK: true, Recovered: recovered, TokenID: &tokenID}
}

func Fail(reason Reason, message string) VerifyResult {
	return VerifyResult{Reason: reason, Message: message}
}

func (r VerifyResult) Disposition() Disposition {
	if r.OK {
		return DispositionAdmit
	}
	if r.Reason == "" {
		return DispositionDeny
	}
	return r.Reason.Disposition()
}
