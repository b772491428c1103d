package cryptox

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/DariusIMP/publish3-backend/internal/common"
)

// ErrInvalidKey is returned when configured key material cannot be decoded
// into an Ed25519 private key.
var ErrInvalidKey = errors.New("invalid ed25519 private key")

// DecodeEd25519PrivateKey accepts a 32-byte Ed25519 seed (or a 64-byte
// expanded private key) encoded either as standard base64 or as hex, with an
// optional "0x" prefix. Base64 is tried first, then hex; whichever yields a
// key of a valid length wins.
func DecodeEd25519PrivateKey(encoded string) (ed25519.PrivateKey, error) {
	s := strings.TrimSpace(encoded)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidKey)
	}

	var errs []error

	if raw, err := base64.StdEncoding.DecodeString(s); err == nil {
		if key, err := privateKeyFromBytes(raw); err == nil {
			return key, nil
		} else {
			errs = append(errs, fmt.Errorf("base64: %w", err))
		}
	} else {
		errs = append(errs, fmt.Errorf("base64: %w", err))
	}

	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
	if err != nil {
		errs = append(errs, fmt.Errorf("hex: %w", err))
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, errors.Join(errs...))
	}
	key, err := privateKeyFromBytes(raw)
	if err != nil {
		errs = append(errs, fmt.Errorf("hex: %w", err))
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, errors.Join(errs...))
	}
	return key, nil
}

// privateKeyFromBytes wipes raw before returning; the key it returns never
// aliases it.
func privateKeyFromBytes(raw []byte) (ed25519.PrivateKey, error) {
	defer common.WipeByteArray(raw)

	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		key := ed25519.PrivateKey(raw)
		// the trailing half must be the public key derived from the seed
		derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
		if !derived.Equal(key) {
			return nil, errors.New("public half does not match seed")
		}
		return derived, nil
	default:
		return nil, fmt.Errorf("unexpected key length %d", len(raw))
	}
}
