package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// IsAddress reports whether s is a 0x-prefixed 20-byte hex address.
func IsAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

// NormalizeAddress returns the lowercase hex form used at every address
// comparison point. Invalid input yields "".
func NormalizeAddress(s string) string {
	s = strings.TrimSpace(s)
	if !IsAddress(s) {
		return ""
	}
	return strings.ToLower(common.HexToAddress(s).Hex())
}

// SameAddress compares two addresses after normalization. Two invalid
// addresses are never equal.
func SameAddress(a, b string) bool {
	na := NormalizeAddress(a)
	return na != "" && na == NormalizeAddress(b)
}
