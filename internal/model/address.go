package model

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NormalizeAddress returns the canonical lower-case form of a hex address.
// All stored keys use this form so lookups are case-insensitive.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// ParseAddress validates a hex address and returns its normalized form.
func ParseAddress(address string) (string, error) {
	trimmed := strings.TrimSpace(address)
	if !common.IsHexAddress(trimmed) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return NormalizeAddress(trimmed), nil
}

// NormalizeAddresses normalizes every address of the slice in a new slice.
func NormalizeAddresses(addresses []string) []string {
	if addresses == nil {
		return nil
	}
	out := make([]string, 0, len(addresses))
	for _, a := range addresses {
		out = append(out, NormalizeAddress(a))
	}
	return out
}
