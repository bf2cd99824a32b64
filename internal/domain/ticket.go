package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
)

// TicketQRType tags the only payload shape this module understands.
const TicketQRType = "TICKET_QR_V1"

// MinNonceBytes is the length of the random nonce a holder puts in each
// payload. Verifiers only require that a nonce is present.
const MinNonceBytes = 16

// TicketID identifies a ticket token. The wire format allows either a JSON
// string or a JSON number; the original form is kept so that a parsed
// payload serializes back to the exact bytes the holder signed.
type TicketID struct {
	value   string
	numeric bool
}

func NewTicketID(value string) TicketID {
	return TicketID{value: value}
}

// NumericTicketID returns a ticket id that serializes as a JSON number.
// value must be a non-negative integer without leading zeros.
func NumericTicketID(value string) (TicketID, error) {
	if !isCanonicalInteger(value) {
		return TicketID{}, ErrInvalidTicketID
	}
	return TicketID{value: value, numeric: true}, nil
}

func (id TicketID) String() string { return id.value }

func (id TicketID) IsNumeric() bool { return id.numeric }

func (id TicketID) IsZero() bool { return id.value == "" }

// BigInt interprets the id as a decimal token id, which is how ERC-721
// ledgers key their tokens.
func (id TicketID) BigInt() (*big.Int, bool) {
	value := strings.TrimSpace(id.value)
	if value == "" {
		return nil, false
	}
	n, ok := new(big.Int).SetString(value, 10)
	if !ok || n.Sign() < 0 {
		return nil, false
	}
	return n, true
}

func (id TicketID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

func (id *TicketID) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ErrInvalidTicketID
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*id = TicketID{value: s}
		return nil
	}
	parsed, err := NumericTicketID(string(raw))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func isCanonicalInteger(s string) bool {
	if s == "" {
		return false
	}
	if len(s) > 1 && s[0] == '0' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// TicketPayload is the signed claim shown in the QR code. Field order here
// is the canonical serialization order.
type TicketPayload struct {
	Type     string   `json:"type"`
	TicketID TicketID `json:"ticketId"`
	Owner    string   `json:"owner"`
	IssuedAt int64    `json:"iat"`
	Expiry   int64    `json:"exp"`
	Nonce    string   `json:"nonce"`
}

// TicketEnvelope is the unit carried over the optical channel.
type TicketEnvelope struct {
	Payload   TicketPayload `json:"payload"`
	Signature string        `json:"signature"`
}

// ValidateShape reports whether every required field is present and well
// formed. It does not look at time or signatures.
func (p TicketPayload) ValidateShape() error {
	switch {
	case p.Type != TicketQRType:
		return errors.New("unsupported payload type")
	case p.TicketID.IsZero():
		return errors.New("ticketId is required")
	case p.Owner == "":
		return errors.New("owner is required")
	case !IsAddress(p.Owner):
		return errors.New("owner is not an address")
	case p.IssuedAt <= 0 || p.Expiry <= 0:
		return errors.New("iat and exp are required")
	case p.Expiry <= p.IssuedAt:
		return errors.New("exp must be after iat")
	case strings.TrimSpace(p.Nonce) == "":
		return errors.New("nonce is required")
	}
	return nil
}

// NormalizeNonce strips the optional 0x prefix and lowercases the hex so
// that equivalent spellings of a nonce compare equal.
func NormalizeNonce(nonce string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(nonce), "0x"))
}
