package crypto

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"strings"

	"gatepass/internal/domain"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// KeySigner is a Signer backed by a local secp256k1 key. It stands in for
// a wallet in the CLI and in tests.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address string
}

func NewKeySigner(key *ecdsa.PrivateKey) (*KeySigner, error) {
	if key == nil {
		return nil, errors.New("private key is required")
	}
	return &KeySigner{
		key:     key,
		address: strings.ToLower(ethcrypto.PubkeyToAddress(key.PublicKey).Hex()),
	}, nil
}

// ParseKeySigner accepts a hex private key with or without 0x prefix.
func ParseKeySigner(hexKey string) (*KeySigner, error) {
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, err
	}
	return NewKeySigner(key)
}

func GenerateKeySigner() (*KeySigner, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return NewKeySigner(key)
}

func (s *KeySigner) Address() string {
	return s.address
}

func (s *KeySigner) SignMessage(ctx context.Context, message []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return SignMessage(s.key, message)
}

// PrivateKeyHex exports the key for keygen output.
func (s *KeySigner) PrivateKeyHex() string {
	return hex.EncodeToString(ethcrypto.FromECDSA(s.key))
}

var _ domain.Signer = (*KeySigner)(nil)
