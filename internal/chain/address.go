// Package chain builds, signs and submits Move entry-function transactions
// against an Aptos-compatible REST endpoint (Movement).
package chain

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/aptos-labs/aptos-go-sdk/bcs"
)

const AddressLength = 32

// AccountAddress is a 32-byte ledger account address.
type AccountAddress [AddressLength]byte

var ErrInvalidAddress = errors.New("invalid account address")

// ParseAddress accepts "0x"-prefixed or bare hex. Short forms such as "0x1"
// are left-padded with zeros.
func ParseAddress(s string) (AccountAddress, error) {
	var addr AccountAddress

	h := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if h == "" || len(h) > 2*AddressLength {
		return addr, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	if len(h)%2 == 1 {
		h = "0" + h
	}

	raw, err := hex.DecodeString(h)
	if err != nil {
		return addr, fmt.Errorf("%w: %q: %w", ErrInvalidAddress, s, err)
	}
	copy(addr[AddressLength-len(raw):], raw)
	return addr, nil
}

// MustParseAddress is ParseAddress for constants; it panics on bad input.
func MustParseAddress(s string) AccountAddress {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String returns the full-length "0x"-prefixed lowercase hex form.
func (a AccountAddress) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a AccountAddress) Bytes() []byte {
	b := make([]byte, AddressLength)
	copy(b, a[:])
	return b
}

func (a AccountAddress) MarshalBCS(s *bcs.Serializer) {
	s.FixedBytes(a[:])
}
