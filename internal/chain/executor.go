package chain

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/DariusIMP/publish3-backend/internal/common"
)

// Signer produces Ed25519 signatures for one account. The custodial wallet
// client implements it; the private key never leaves the custodian.
type Signer interface {
	PublicKey() ed25519.PublicKey
	SignMessage(ctx context.Context, message []byte) ([]byte, error)
}

// Executor runs build, sign, submit and wait for a single entry function.
// It does not serialise callers; the caller holds the per-sender lock.
type Executor struct {
	builder   *Builder
	submitter *Submitter
	ttl       time.Duration
}

func NewExecutor(builder *Builder, submitter *Submitter, ttl time.Duration) *Executor {
	return &Executor{builder: builder, submitter: submitter, ttl: ttl}
}

func (e *Executor) Execute(ctx context.Context, sender AccountAddress, signer Signer, entry EntryFunction) (*ExecutionResult, error) {
	raw, err := e.builder.Build(ctx, sender, entry, e.ttl)
	if err != nil {
		return nil, err
	}

	msg, err := raw.SigningMessage()
	if err != nil {
		return nil, err
	}
	sig, err := signer.SignMessage(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("sign %s: %w", entry.Function, err)
	}

	signed, err := NewSignedTransaction(raw, signer.PublicKey(), sig)
	if err != nil {
		return nil, fmt.Errorf("sign %s: %w", entry.Function, err)
	}
	if !signed.Verify() {
		return nil, fmt.Errorf("%w: signature for %s does not verify against sender key", common.ErrSigning, entry.Function)
	}

	return e.submitter.SubmitAndWait(ctx, signed)
}
