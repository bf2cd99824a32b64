package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"gatepass/internal/clock"
	"gatepass/internal/domain"
	"gatepass/internal/infra/crypto"
)

func sampleEnvelope() domain.TicketEnvelope {
	return domain.TicketEnvelope{
		Payload: domain.TicketPayload{
			Type:     domain.TicketQRType,
			TicketID: domain.NewTicketID("7"),
			Owner:    "0x2c7536e3605d9c16a7a3d7b1898e529396a65c23",
			IssuedAt: 1000,
			Expiry:   1030,
			Nonce:    "00112233445566778899aabbccddeeff",
		},
		Signature: "0xabc",
	}
}

func TestClientVerifySignsRequests(t *testing.T) {
	operator, err := crypto.GenerateKeySigner()
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	c := clock.NewFake(time.Unix(1_700_000_000, 0))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/verify" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		addr := r.Header.Get(domain.HeaderOperatorAddress)
		ts, _ := strconv.ParseInt(r.Header.Get(domain.HeaderOperatorTimestamp), 10, 64)
		msg := []byte("gatepass-operator:" + addr + ":" + strconv.FormatInt(ts, 10))
		recovered, err := crypto.RecoverAddress(msg, r.Header.Get(domain.HeaderOperatorSignature))
		if err != nil || recovered != operator.Address() || ts != c.Now().Unix() {
			t.Errorf("bad operator credentials: %s %d %v", recovered, ts, err)
		}
		body, _ := io.ReadAll(r.Body)
		if _, err := crypto.ParseEnvelope(body); err != nil {
			t.Errorf("server received unparseable envelope: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "recovered": operator.Address(), "tokenId": "7", "action": "admit"})
	}))
	defer srv.Close()

	client, err := New(srv.URL, operator, c, time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	res, err := client.Verify(context.Background(), sampleEnvelope())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !res.OK || res.TokenID == nil || res.TokenID.String() != "7" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func statusServer(t *testing.T, status int, code string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"code":"` + code + `","message":"rejected"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientVerifyRefusedOperator(t *testing.T) {
	operator, _ := crypto.GenerateKeySigner()
	tests := []struct {
		status int
		code   string
		want   error
	}{
		{status: http.StatusUnauthorized, code: "UNAUTHORIZED", want: domain.ErrUnauthorized},
		{status: http.StatusForbidden, code: "FORBIDDEN", want: domain.ErrForbidden},
	}
	for _, tt := range tests {
		client, _ := New(statusServer(t, tt.status, tt.code).URL, operator, nil, time.Second)

		if _, err := client.Verify(context.Background(), sampleEnvelope()); !errors.Is(err, tt.want) {
			t.Fatalf("verify %d: expected %v, got %v", tt.status, tt.want, err)
		}
		if _, _, err := client.Admit(context.Background(), sampleEnvelope()); !errors.Is(err, tt.want) {
			t.Fatalf("admit %d: expected %v, got %v", tt.status, tt.want, err)
		}
		if _, err := client.Authorize(context.Background()); !errors.Is(err, tt.want) || !IsRefusal(err) {
			t.Fatalf("authorize %d: expected %v, got %v", tt.status, tt.want, err)
		}
	}
}

func TestClientVerifyUnavailableIsRetryable(t *testing.T) {
	operator, _ := crypto.GenerateKeySigner()
	client, _ := New(statusServer(t, http.StatusServiceUnavailable, "ORACLE_UNAVAILABLE").URL, operator, nil, time.Second)

	res, err := client.Verify(context.Background(), sampleEnvelope())
	if err != nil {
		t.Fatalf("expected a verdict, got error %v", err)
	}
	if res.OK || res.Reason != domain.ReasonOracleUnavailable || res.Disposition() != domain.DispositionRetry {
		t.Fatalf("expected retryable oracle unavailable, got %+v", res)
	}
	if _, _, err := client.Admit(context.Background(), sampleEnvelope()); err == nil || IsRefusal(err) {
		t.Fatalf("expected plain admit error, got %v", err)
	}
}

func TestClientAuthorize(t *testing.T) {
	operator, _ := crypto.GenerateKeySigner()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/operator" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get(domain.HeaderOperatorSignature) == "" {
			t.Error("expected signed request")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"address": operator.Address(), "gateId": "north"})
	}))
	defer srv.Close()

	client, _ := New(srv.URL, operator, nil, time.Second)
	op, err := client.Authorize(context.Background())
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if op.Address != operator.Address() || op.GateID != "north" {
		t.Fatalf("unexpected operator %+v", op)
	}
}

func TestNewValidates(t *testing.T) {
	operator, _ := crypto.GenerateKeySigner()
	if _, err := New("", operator, nil, 0); err == nil {
		t.Fatal("expected url error")
	}
	if _, err := New("http://localhost", nil, nil, 0); err == nil {
		t.Fatal("expected signer error")
	}
}
