package crypto

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const signatureLength = 65

// SignMessage produces a personal_sign (EIP-191) signature over message,
// hex encoded with a 27/28 recovery byte the way wallets return it.
func SignMessage(key *ecdsa.PrivateKey, message []byte) (string, error) {
	if key == nil {
		return "", errors.New("private key is required")
	}
	sig, err := ethcrypto.Sign(accounts.TextHash(message), key)
	if err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}
	sig[64] += 27
	return hexutil.Encode(sig), nil
}

// RecoverAddress returns the lowercase address that produced signature
// over message under EIP-191. High-S signatures are rejected.
func RecoverAddress(message []byte, signature string) (string, error) {
	sig, err := decodeSignature(signature)
	if err != nil {
		return "", err
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !ethcrypto.ValidateSignatureValues(sig[64], r, s, true) {
		return "", errors.New("signature values out of range")
	}
	pub, err := ethcrypto.SigToPub(accounts.TextHash(message), sig)
	if err != nil {
		return "", fmt.Errorf("recover public key: %w", err)
	}
	return strings.ToLower(ethcrypto.PubkeyToAddress(*pub).Hex()), nil
}

func decodeSignature(signature string) ([]byte, error) {
	signature = strings.TrimSpace(signature)
	if !strings.HasPrefix(signature, "0x") {
		signature = "0x" + signature
	}
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(sig) != signatureLength {
		return nil, fmt.Errorf("invalid signature length: %d", len(sig))
	}
	switch sig[64] {
	case 0, 1:
	case 27, 28:
		sig[64] -= 27
	default:
		return nil, fmt.Errorf("invalid recovery byte: %d", sig[64])
	}
	return sig, nil
}
