package crypto

import (
	"context"
	"strings"
	"testing"
)

const (
	testKeyHex     = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testKeyAddress = "0x2c7536e3605d9c16a7a3d7b1898e529396a65c23"
)

func TestKeySignerAddress(t *testing.T) {
	signer, err := ParseKeySigner("0x" + testKeyHex)
	if err != nil {
		t.Fatalf("parse key: %v", err)
	}
	if signer.Address() != testKeyAddress {
		t.Fatalf("unexpected address %s", signer.Address())
	}
	if signer.PrivateKeyHex() != testKeyHex {
		t.Fatalf("private key did not round trip")
	}
}

func TestSignAndRecover(t *testing.T) {
	signer, err := ParseKeySigner(testKeyHex)
	if err != nil {
		t.Fatalf("parse key: %v", err)
	}
	message := CanonicalizePayload(samplePayload())
	sig, err := signer.SignMessage(context.Background(), message)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !strings.HasPrefix(sig, "0x") || len(sig) != 2+65*2 {
		t.Fatalf("unexpected signature encoding %s", sig)
	}
	recovered, err := RecoverAddress(message, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if recovered != testKeyAddress {
		t.Fatalf("recovered %s, want %s", recovered, testKeyAddress)
	}

	// Wallets sometimes return 0/1 recovery bytes and drop the prefix.
	raw := []byte(sig[2:])
	v := raw[len(raw)-2:]
	switch string(v) {
	case "1b":
		copy(v, "00")
	case "1c":
		copy(v, "01")
	}
	recovered, err = RecoverAddress(message, string(raw))
	if err != nil || recovered != testKeyAddress {
		t.Fatalf("recover with raw v: %s %v", recovered, err)
	}
}

func TestRecoverDetectsMessageChange(t *testing.T) {
	signer, _ := ParseKeySigner(testKeyHex)
	message := CanonicalizePayload(samplePayload())
	sig, err := signer.SignMessage(context.Background(), message)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	changed := samplePayload()
	changed.Expiry++
	recovered, err := RecoverAddress(CanonicalizePayload(changed), sig)
	if err == nil && recovered == testKeyAddress {
		t.Fatal("changed message recovered to the original signer")
	}
}

func TestRecoverRejectsBadSignatures(t *testing.T) {
	message := []byte("hello")
	for name, sig := range map[string]string{
		"empty":        "",
		"not hex":      "0xzz",
		"short":        "0x1234",
		"bad recovery": "0x" + strings.Repeat("11", 64) + "05",
		"zero r and s": "0x" + strings.Repeat("00", 64) + "1b",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := RecoverAddress(message, sig); err == nil {
				t.Fatal("expected recovery failure")
			}
		})
	}
}
