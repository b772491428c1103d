package chain

import (
	"context"
	"fmt"
	"time"
)

// Builder assembles unsigned envelopes. Sequence number and chain id are
// read from the node on every call and never cached, so two builds for
// the same sender only differ if the ledger moved in between.
type Builder struct {
	ledger       Ledger
	maxGasAmount uint64
	gasUnitPrice uint64
	now          func() time.Time
}

func NewBuilder(ledger Ledger, maxGasAmount, gasUnitPrice uint64) *Builder {
	return &Builder{
		ledger:       ledger,
		maxGasAmount: maxGasAmount,
		gasUnitPrice: gasUnitPrice,
		now:          time.Now,
	}
}

// Build returns a RawTransaction for sender calling entry that expires ttl
// from now.
func (b *Builder) Build(ctx context.Context, sender AccountAddress, entry EntryFunction, ttl time.Duration) (*RawTransaction, error) {
	seq, err := b.ledger.SequenceNumber(ctx, sender)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", entry.Function, err)
	}
	chainID, err := b.ledger.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", entry.Function, err)
	}

	return &RawTransaction{
		Sender:                  sender,
		SequenceNumber:          seq,
		Payload:                 entry,
		MaxGasAmount:            b.maxGasAmount,
		GasUnitPrice:            b.gasUnitPrice,
		ExpirationTimestampSecs: uint64(b.now().Add(ttl).Unix()),
		ChainID:                 chainID,
	}, nil
}
