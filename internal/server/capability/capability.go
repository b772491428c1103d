// Package capability issues short-lived mint capabilities: Ed25519
// signatures by the backend key over (paper hash, price, recipient,
// expiry) that the on-chain publication module checks before minting.
package capability

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DariusIMP/publish3-backend/internal/chain"
	"github.com/DariusIMP/publish3-backend/internal/common"
	"github.com/DariusIMP/publish3-backend/internal/cryptox"
	"github.com/aptos-labs/aptos-go-sdk/bcs"
	"golang.org/x/crypto/sha3"
)

// payloadSalt is the domain separator the Move module hashes in front of a
// mint payload.
const payloadSalt = "APTOS::MintPayload"

var ErrInvalidCapability = errors.New("invalid capability")

// SignedCapability is what the client and the mint transaction receive.
// Byte fields are lowercase hex without a prefix.
type SignedCapability struct {
	PaperHash string `json:"paper_hash"`
	Price     uint64 `json:"price"`
	Recipient string `json:"recipient"`
	ExpiresAt uint64 `json:"expires_at"`
	Signature string `json:"signature"`
}

type mintPayload struct {
	paperHash []byte
	price     uint64
	recipient []byte
	expiresAt uint64
}

func (p mintPayload) MarshalBCS(s *bcs.Serializer) {
	s.WriteBytes(p.paperHash)
	s.U64(p.price)
	s.WriteBytes(p.recipient)
	s.U64(p.expiresAt)
}

func (p mintPayload) signingMessage() ([]byte, error) {
	body, err := bcs.Serialize(p)
	if err != nil {
		return nil, fmt.Errorf("%w: mint payload: %w", common.ErrSerialization, err)
	}
	prefix := sha3.Sum256([]byte(payloadSalt))
	return append(prefix[:], body...), nil
}

// Signer holds the backend capability key. It is immutable after
// construction and safe for concurrent use.
type Signer struct {
	key ed25519.PrivateKey
	now func() time.Time
}

// NewSigner decodes encodedKey (base64 or hex, see
// cryptox.DecodeEd25519PrivateKey). A key that does not decode is a
// configuration error.
func NewSigner(encodedKey string) (*Signer, error) {
	key, err := cryptox.DecodeEd25519PrivateKey(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: backend private key: %w", common.ErrConfiguration, err)
	}
	return &Signer{key: key, now: time.Now}, nil
}

func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.key.Public().(ed25519.PublicKey)
}

// PublicKeyHex is the hex public key the Move module is configured with.
func (s *Signer) PublicKeyHex() string {
	return hex.EncodeToString(s.PublicKey())
}

// CreateCapability signs a capability for paperHash that expires ttl from
// now, at whole-second resolution. ttl must be at least one second.
func (s *Signer) CreateCapability(paperHash []byte, price uint64, recipient chain.AccountAddress, ttl time.Duration) (*SignedCapability, error) {
	if len(paperHash) == 0 {
		return nil, fmt.Errorf("%w: empty paper hash", ErrInvalidCapability)
	}
	if ttl < time.Second {
		return nil, fmt.Errorf("%w: ttl must be at least 1s", ErrInvalidCapability)
	}

	expiresAt := uint64(s.now().Unix()) + uint64(ttl/time.Second)

	p := mintPayload{
		paperHash: paperHash,
		price:     price,
		recipient: recipient.Bytes(),
		expiresAt: expiresAt,
	}
	msg, err := p.signingMessage()
	if err != nil {
		return nil, err
	}
	sig := ed25519.Sign(s.key, msg)

	return &SignedCapability{
		PaperHash: hex.EncodeToString(paperHash),
		Price:     price,
		Recipient: hex.EncodeToString(p.recipient),
		ExpiresAt: expiresAt,
		Signature: hex.EncodeToString(sig),
	}, nil
}

// Verify checks c against the signer's public key and returns the decoded
// mint arguments. Expiry is not checked here; the ledger enforces it.
func (s *Signer) Verify(c *SignedCapability) (*chain.MintCapabilityArgs, error) {
	return Verify(s.PublicKey(), c)
}

// Verify checks c against pub.
func Verify(pub ed25519.PublicKey, c *SignedCapability) (*chain.MintCapabilityArgs, error) {
	paperHash, err := decodeHex(c.PaperHash)
	if err != nil {
		return nil, fmt.Errorf("%w: paper_hash: %w", ErrInvalidCapability, err)
	}
	recipient, err := chain.ParseAddress(c.Recipient)
	if err != nil {
		return nil, fmt.Errorf("%w: recipient: %w", ErrInvalidCapability, err)
	}
	sig, err := decodeHex(c.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return nil, fmt.Errorf("%w: malformed signature", ErrInvalidCapability)
	}

	p := mintPayload{paperHash: paperHash, price: c.Price, recipient: recipient.Bytes(), expiresAt: c.ExpiresAt}
	msg, err := p.signingMessage()
	if err != nil {
		return nil, err
	}
	if !ed25519.Verify(pub, msg, sig) {
		return nil, fmt.Errorf("%w: signature mismatch", ErrInvalidCapability)
	}

	return &chain.MintCapabilityArgs{
		PaperHash: paperHash,
		Price:     c.Price,
		Recipient: recipient,
		ExpiresAt: c.ExpiresAt,
		Signature: sig,
	}, nil
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}
