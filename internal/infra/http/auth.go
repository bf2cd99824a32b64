package http

import (
	"net/http"
	"strconv"
	"strings"

	"gatepass/internal/domain"

	"github.com/gin-gonic/gin"
)

const operatorContextKey = "operator"

func (s *Server) requireOperator(c *gin.Context) (domain.Operator, bool) {
	if s.operators == nil {
		writeErrorCode(c, http.StatusInternalServerError, "AUTH_CONFIG_ERROR", "operator authentication is not configured")
		return domain.Operator{}, false
	}
	creds, ok := operatorCredentials(c)
	if !ok {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "operator credentials required")
		return domain.Operator{}, false
	}
	op, err := s.operators.Authenticate(c.Request.Context(), creds)
	if err != nil {
		s.log.Warn().Err(err).Str("operator", creds.Address).Msg("operator rejected")
		writeError(c, err)
		return domain.Operator{}, false
	}
	c.Set(operatorContextKey, op)
	return op, true
}

func operatorCredentials(c *gin.Context) (domain.OperatorCredentials, bool) {
	address := strings.TrimSpace(c.GetHeader(domain.HeaderOperatorAddress))
	signature := strings.TrimSpace(c.GetHeader(domain.HeaderOperatorSignature))
	ts, err := strconv.ParseInt(strings.TrimSpace(c.GetHeader(domain.HeaderOperatorTimestamp)), 10, 64)
	if address == "" || signature == "" || err != nil {
		return domain.OperatorCredentials{}, false
	}
	return domain.OperatorCredentials{Address: address, Timestamp: ts, Signature: signature}, true
}
