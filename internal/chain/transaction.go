package chain

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	aptos "github.com/aptos-labs/aptos-go-sdk"
	"github.com/aptos-labs/aptos-go-sdk/bcs"
	"github.com/aptos-labs/aptos-go-sdk/crypto"
	"golang.org/x/crypto/sha3"

	"github.com/DariusIMP/publish3-backend/internal/common"
)

const (
	transactionSalt        = "APTOS::Transaction"
	transactionVariantUser = 0
)

// ModuleID names a published Move module.
type ModuleID struct {
	Address AccountAddress
	Name    string
}

// EntryFunction is a call to a public entry function. Args are already
// BCS-encoded, one element per parameter. The publication module takes no
// type arguments.
type EntryFunction struct {
	Module   ModuleID
	Function string
	Args     [][]byte
}

func (e EntryFunction) payload() aptos.TransactionPayload {
	return aptos.TransactionPayload{Payload: &aptos.EntryFunction{
		Module: aptos.ModuleId{
			Address: aptos.AccountAddress(e.Module.Address),
			Name:    e.Module.Name,
		},
		Function: e.Function,
		ArgTypes: []aptos.TypeTag{},
		Args:     e.Args,
	}}
}

// RawTransaction is the unsigned envelope. It is built fresh for every step.
type RawTransaction struct {
	Sender                  AccountAddress
	SequenceNumber          uint64
	Payload                 EntryFunction
	MaxGasAmount            uint64
	GasUnitPrice            uint64
	ExpirationTimestampSecs uint64
	ChainID                 uint8
}

func (t *RawTransaction) envelope() *aptos.RawTransaction {
	return &aptos.RawTransaction{
		Sender:                     aptos.AccountAddress(t.Sender),
		SequenceNumber:             t.SequenceNumber,
		Payload:                    t.Payload.payload(),
		MaxGasAmount:               t.MaxGasAmount,
		GasUnitPrice:               t.GasUnitPrice,
		ExpirationTimestampSeconds: t.ExpirationTimestampSecs,
		ChainId:                    t.ChainID,
	}
}

// Bytes is the BCS encoding of the envelope.
func (t *RawTransaction) Bytes() ([]byte, error) {
	b, err := bcs.Serialize(t.envelope())
	if err != nil {
		return nil, fmt.Errorf("%w: raw transaction: %w", common.ErrSerialization, err)
	}
	return b, nil
}

// SigningMessage returns the exact bytes an Ed25519 key signs for t:
// SHA3-256("APTOS::RawTransaction") followed by the BCS envelope.
func (t *RawTransaction) SigningMessage() ([]byte, error) {
	msg, err := t.envelope().SigningMessage()
	if err != nil {
		return nil, fmt.Errorf("%w: signing message: %w", common.ErrSerialization, err)
	}
	return msg, nil
}

// SignedTransaction is a RawTransaction with a single-sender Ed25519
// authenticator. Its wire bytes and hash are fixed at construction.
type SignedTransaction struct {
	Raw       *RawTransaction
	PublicKey ed25519.PublicKey
	Signature []byte

	body []byte
	hash string
}

// NewSignedTransaction attaches an Ed25519 authenticator to raw. It does
// not check the signature; see Verify.
func NewSignedTransaction(raw *RawTransaction, pub ed25519.PublicKey, sig []byte) (*SignedTransaction, error) {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return nil, fmt.Errorf("%w: public key %d bytes, signature %d bytes", common.ErrSigning, len(pub), len(sig))
	}

	signature := &crypto.Ed25519Signature{}
	copy(signature.Inner[:], sig)
	auth := &crypto.AccountAuthenticator{
		Variant: crypto.AccountAuthenticatorEd25519,
		Auth: &crypto.Ed25519Authenticator{
			PubKey: &crypto.Ed25519PublicKey{Inner: pub},
			Sig:    signature,
		},
	}

	signed, err := raw.envelope().SignedTransactionWithAuthenticator(auth)
	if err != nil {
		return nil, fmt.Errorf("%w: signed transaction: %w", common.ErrSerialization, err)
	}
	body, err := bcs.Serialize(signed)
	if err != nil {
		return nil, fmt.Errorf("%w: signed transaction: %w", common.ErrSerialization, err)
	}

	prefix := sha3.Sum256([]byte(transactionSalt))
	h := sha3.New256()
	h.Write(prefix[:])
	h.Write([]byte{transactionVariantUser})
	h.Write(body)

	return &SignedTransaction{
		Raw:       raw,
		PublicKey: pub,
		Signature: sig,
		body:      body,
		hash:      "0x" + hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// Bytes is the BCS body posted to the node.
func (t *SignedTransaction) Bytes() []byte {
	return t.body
}

// Hash is the ledger's committed-transaction hash of t, "0x"-prefixed.
func (t *SignedTransaction) Hash() string {
	return t.hash
}

// Verify checks the signature against the raw transaction's signing message.
func (t *SignedTransaction) Verify() bool {
	msg, err := t.Raw.SigningMessage()
	if err != nil {
		return false
	}
	return ed25519.Verify(t.PublicKey, msg, t.Signature)
}
