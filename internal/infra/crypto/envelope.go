package crypto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gatepass/internal/domain"
)

// ParseEnvelope decodes raw QR text into an envelope. Unknown fields and
// trailing data are rejected: the signed bytes are rebuilt from the parsed
// fields, so anything the parser would drop must not be silently accepted.
func ParseEnvelope(raw []byte) (domain.TicketEnvelope, error) {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimSpace(raw)))
	dec.DisallowUnknownFields()

	var env domain.TicketEnvelope
	if err := dec.Decode(&env); err != nil {
		return domain.TicketEnvelope{}, fmt.Errorf("%w: %w", domain.ErrMalformedEnvelope, err)
	}
	if err := ensureEOF(dec); err != nil {
		return domain.TicketEnvelope{}, fmt.Errorf("%w: %w", domain.ErrMalformedEnvelope, err)
	}
	return env, nil
}

// MarshalEnvelope produces the compact QR text for an envelope. The payload
// is embedded in its canonical form.
func MarshalEnvelope(env domain.TicketEnvelope) []byte {
	buf := &bytes.Buffer{}
	buf.WriteString(`{"payload":`)
	buf.Write(CanonicalizePayload(env.Payload))
	buf.WriteString(`,"signature":`)
	writeString(buf, env.Signature)
	buf.WriteByte('}')
	return buf.Bytes()
}

func ensureEOF(dec *json.Decoder) error {
	var extra any
	if err := dec.Decode(&extra); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return errors.New("invalid JSON: trailing data")
}
