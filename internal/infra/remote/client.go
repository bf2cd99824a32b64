// Package remote calls a gatepassd verifier on behalf of a scanner
// operator.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gatepass/internal/clock"
	"gatepass/internal/domain"
	"gatepass/internal/infra/crypto"
	"gatepass/internal/usecase"

	"github.com/go-resty/resty/v2"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ErrorResponse) Error() string {
	return e.Code + ": " + e.Message
}

type Admission struct {
	ID         string `json:"id"`
	TicketID   string `json:"ticketId"`
	Owner      string `json:"owner"`
	Operator   string `json:"operator"`
	GateID     string `json:"gateId"`
	AdmittedAt string `json:"admittedAt"`
}

type Operator struct {
	Address string `json:"address"`
	GateID  string `json:"gateId"`
}

type admitResponse struct {
	domain.VerifyResult
	Admission *Admission `json:"admission"`
}

// Client signs every request with the operator's key.
type Client struct {
	http     *resty.Client
	operator domain.Signer
	clock    clock.Clock
}

func New(baseURL string, operator domain.Signer, c clock.Clock, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("verifier url is required")
	}
	if operator == nil {
		return nil, domain.ErrSigningUnavailable
	}
	if c == nil {
		c = clock.NewSystem()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{http: httpClient, operator: operator, clock: c}, nil
}

// Authorize checks that the service accepts this operator at its gate.
func (c *Client) Authorize(ctx context.Context) (Operator, error) {
	var out Operator
	if err := c.do(ctx, http.MethodGet, "/v1/operator", nil, &out); err != nil {
		return Operator{}, err
	}
	return out, nil
}

// Verify returns an error only when the service refuses the operator
// (domain.ErrUnauthorized or domain.ErrForbidden). Transport and other
// service errors become a retryable oracle_unavailable verdict.
func (c *Client) Verify(ctx context.Context, env domain.TicketEnvelope) (domain.VerifyResult, error) {
	var out domain.VerifyResult
	if err := c.do(ctx, http.MethodPost, "/v1/verify", &env, &out); err != nil {
		if IsRefusal(err) {
			return domain.VerifyResult{}, err
		}
		return domain.Fail(domain.ReasonOracleUnavailable, "verifier unavailable: "+err.Error()), nil
	}
	return out, nil
}

// Admit asks the service to record entry for env.
func (c *Client) Admit(ctx context.Context, env domain.TicketEnvelope) (domain.VerifyResult, *Admission, error) {
	var out admitResponse
	if err := c.do(ctx, http.MethodPost, "/v1/admissions", &env, &out); err != nil {
		return domain.VerifyResult{}, nil, err
	}
	return out.VerifyResult, out.Admission, nil
}

// IsRefusal reports whether err means the service rejected the operator
// rather than the ticket.
func IsRefusal(err error) bool {
	return errors.Is(err, domain.ErrUnauthorized) || errors.Is(err, domain.ErrForbidden)
}

func (c *Client) do(ctx context.Context, method, path string, env *domain.TicketEnvelope, result any) error {
	req := c.http.NewRequest()
	req.SetContext(ctx)
	if err := c.authenticate(ctx, req); err != nil {
		return fmt.Errorf("apply operator credentials: %w", err)
	}
	if env != nil {
		req.SetHeader("Content-Type", "application/json")
		req.SetBody(crypto.MarshalEnvelope(*env))
	}
	req.SetResult(result)
	req.SetError(new(ErrorResponse))

	resp, err := req.Execute(method, path)
	switch {
	case err == nil && resp.IsError():
		err = statusError(resp)
		if IsRefusal(err) {
			return err
		}
		fallthrough

	case err != nil:
		return fmt.Errorf("send verifier request: %w", err)

	default:
		return nil
	}
}

func statusError(resp *resty.Response) error {
	err := fmt.Errorf("verifier error %d", resp.StatusCode())
	if apiErr, ok := resp.Error().(*ErrorResponse); ok && apiErr.Code != "" {
		err = fmt.Errorf("verifier error %d: %w", resp.StatusCode(), apiErr)
	}
	switch resp.StatusCode() {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %w", domain.ErrForbidden, err)
	}
	return err
}

func (c *Client) authenticate(ctx context.Context, req *resty.Request) error {
	creds, err := usecase.SignOperatorCredentials(ctx, c.operator, c.clock)
	if err != nil {
		return err
	}
	req.SetHeaders(map[string]string{
		domain.HeaderOperatorAddress:   creds.Address,
		domain.HeaderOperatorTimestamp: strconv.FormatInt(creds.Timestamp, 10),
		domain.HeaderOperatorSignature: creds.Signature,
	})
	return nil
}
