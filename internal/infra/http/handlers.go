package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"gatepass/internal/domain"
	"gatepass/internal/infra/crypto"
	"gatepass/internal/usecase"

	"github.com/gin-gonic/gin"
)

const maxEnvelopeBytes = 16 << 10

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// verifyResponse is a VerifyResult with the gate action attached.
type verifyResponse struct {
	domain.VerifyResult
	Action domain.Disposition `json:"action"`
}

type admissionResponse struct {
	ID         string `json:"id"`
	TicketID   string `json:"ticketId"`
	Owner      string `json:"owner"`
	Operator   string `json:"operator,omitempty"`
	GateID     string `json:"gateId"`
	AdmittedAt string `json:"admittedAt"`
}

type operatorResponse struct {
	Address string `json:"address"`
	GateID  string `json:"gateId"`
}

type admitResponse struct {
	verifyResponse
	Admission *admissionResponse `json:"admission,omitempty"`
}

const (
	routeVerify     = "verify"
	routeAdmit      = "admissions:create"
	routeAdmissions = "admissions:read"
)

func (s *Server) handleHealth(c *gin.Context) {
	if s.ready != nil {
		if err := s.ready(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "gate": s.cfg.GateID})
}

// handleOperator lets a scanner confirm its credentials before the first
// ticket.
func (s *Server) handleOperator(c *gin.Context) {
	op, ok := s.requireOperator(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, operatorResponse{Address: op.Address, GateID: op.GateID})
}

func (s *Server) handleVerify(c *gin.Context) {
	op, ok := s.requireOperator(c)
	if !ok || !s.enforceRateLimit(c, routeVerify, op) {
		return
	}
	if s.verifier == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	env, status, ok := readEnvelope(c)
	if !ok {
		c.JSON(status, s.withAction(c, domain.Fail(domain.ReasonMalformed, "body is not a ticket envelope"), op))
		return
	}
	result := s.verifier.Verify(c.Request.Context(), env)
	s.logVerdict(op, env, result)
	c.JSON(http.StatusOK, s.withAction(c, result, op))
}

func (s *Server) handleAdmit(c *gin.Context) {
	op, ok := s.requireOperator(c)
	if !ok || !s.enforceRateLimit(c, routeAdmit, op) {
		return
	}
	if s.admit == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	env, status, ok := readEnvelope(c)
	if !ok {
		c.JSON(status, admitResponse{verifyResponse: s.withAction(c, domain.Fail(domain.ReasonMalformed, "body is not a ticket envelope"), op)})
		return
	}
	resp, err := s.admit.Execute(c.Request.Context(), usecase.AdmitTicketRequest{Envelope: env, Operator: op})
	if err != nil {
		writeError(c, err)
		return
	}
	s.logVerdict(op, env, resp.Result)
	out := admitResponse{verifyResponse: s.withAction(c, resp.Result, op)}
	if resp.Admission != nil {
		out.Admission = buildAdmissionResponse(*resp.Admission)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetAdmission(c *gin.Context) {
	op, ok := s.requireOperator(c)
	if !ok || !s.enforceRateLimit(c, routeAdmissions, op) {
		return
	}
	if s.admissions == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	admission, err := s.admissions.GetByTicket(c.Request.Context(), c.Param("ticket_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildAdmissionResponse(*admission))
}

// readEnvelope answers 400 only when the body is not JSON at all. JSON that
// is not a valid envelope is a normal malformed verdict.
func readEnvelope(c *gin.Context) (domain.TicketEnvelope, int, bool) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEnvelopeBytes+1))
	if err != nil || len(raw) > maxEnvelopeBytes || !json.Valid(raw) {
		return domain.TicketEnvelope{}, http.StatusBadRequest, false
	}
	env, err := crypto.ParseEnvelope(raw)
	if err != nil {
		return domain.TicketEnvelope{}, http.StatusOK, false
	}
	return env, http.StatusOK, true
}

func (s *Server) withAction(c *gin.Context, result domain.VerifyResult, op domain.Operator) verifyResponse {
	decide := &usecase.DecideGate{Policy: s.policy, Operator: op.Address, Allowlist: s.cfg.ScannerAllowlist}
	decision, err := decide.Execute(c.Request.Context(), result)
	if err != nil {
		s.log.Warn().Err(err).Msg("gate policy failed; using built-in classification")
	}
	return verifyResponse{VerifyResult: result, Action: decision.Action}
}

func (s *Server) logVerdict(op domain.Operator, env domain.TicketEnvelope, result domain.VerifyResult) {
	event := s.log.Info()
	if !result.OK {
		event = s.log.Warn().Str("reason", string(result.Reason))
	}
	event.
		Str("operator", op.Address).
		Str("gate", op.GateID).
		Str("ticket", env.Payload.TicketID.String()).
		Bool("ok", result.OK).
		Msg("verification")
}

func buildAdmissionResponse(a domain.Admission) *admissionResponse {
	return &admissionResponse{
		ID:         a.ID,
		TicketID:   a.TicketID,
		Owner:      a.Owner,
		Operator:   a.Operator,
		GateID:     a.GateID,
		AdmittedAt: a.AdmittedAt.UTC().Format(time.RFC3339),
	}
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrMalformedEnvelope):
		status, code = http.StatusBadRequest, "MALFORMED"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrForbidden):
		status, code = http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, domain.ErrOracleUnavailable):
		status, code = http.StatusServiceUnavailable, "ORACLE_UNAVAILABLE"
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
