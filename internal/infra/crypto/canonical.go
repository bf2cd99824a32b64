package crypto

import (
	"bytes"
	"strconv"

	"gatepass/internal/domain"
)

// CanonicalizePayload returns the exact bytes a holder signs: compact JSON
// with keys in the fixed order type, ticketId, owner, iat, exp, nonce.
// String escaping follows ECMAScript JSON.stringify so wallets that sign
// JSON.stringify(payload) produce the same input.
func CanonicalizePayload(p domain.TicketPayload) []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	writeKey(buf, "type", true)
	writeString(buf, p.Type)
	writeKey(buf, "ticketId", false)
	if p.TicketID.IsNumeric() {
		buf.WriteString(p.TicketID.String())
	} else {
		writeString(buf, p.TicketID.String())
	}
	writeKey(buf, "owner", false)
	writeString(buf, p.Owner)
	writeKey(buf, "iat", false)
	buf.WriteString(strconv.FormatInt(p.IssuedAt, 10))
	writeKey(buf, "exp", false)
	buf.WriteString(strconv.FormatInt(p.Expiry, 10))
	writeKey(buf, "nonce", false)
	writeString(buf, p.Nonce)
	buf.WriteByte('}')
	return buf.Bytes()
}

func writeKey(buf *bytes.Buffer, key string, first bool) {
	if !first {
		buf.WriteByte(',')
	}
	writeString(buf, key)
	buf.WriteByte(':')
}

func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			buf.WriteByte('\\')
			buf.WriteRune(r)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexLower[r>>4])
				buf.WriteByte(hexLower[r&0x0f])
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

var hexLower = []byte("0123456789abcdef")
