// Package qr renders ticket envelopes as scannable QR codes.
package qr

import (
	"fmt"
	"os"

	"gatepass/internal/domain"
	"gatepass/internal/infra/crypto"

	qrcode "github.com/skip2/go-qrcode"
)

// Medium recovery keeps a ~300 byte envelope readable from a phone screen
// at a glance.
const level = qrcode.Medium

// Terminal returns the envelope as half-block text suitable for a terminal.
func Terminal(env domain.TicketEnvelope) (string, error) {
	code, err := qrcode.New(string(crypto.MarshalEnvelope(env)), level)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return code.ToSmallString(false), nil
}

// PNG returns the envelope as a size x size PNG image.
func PNG(env domain.TicketEnvelope, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(string(crypto.MarshalEnvelope(env)), level, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

func WritePNG(path string, env domain.TicketEnvelope, size int) error {
	png, err := PNG(env, size)
	if err != nil {
		return err
	}
	return os.WriteFile(path, png, 0o644)
}
