package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DariusIMP/publish3-backend/internal/common"
	"github.com/DariusIMP/publish3-backend/internal/logging"
	"github.com/sethvargo/go-retry"
)

var errStillPending = errors.New("transaction still pending")

// ExecutionResult describes a committed, successful transaction.
type ExecutionResult struct {
	Hash     string
	Version  uint64
	GasUsed  uint64
	VMStatus string
}

// Submitter posts signed transactions and waits for them to commit.
// A transaction is submitted exactly once; a timeout is reported as
// common.ErrFinalityTimeout and does not mean the transaction failed.
type Submitter struct {
	ledger   Ledger
	timeout  time.Duration
	interval time.Duration
	logger   logging.Logger
}

func NewSubmitter(ledger Ledger, timeout, interval time.Duration, logger logging.Logger) *Submitter {
	return &Submitter{ledger: ledger, timeout: timeout, interval: interval, logger: logger}
}

// SubmitAndWait submits txn and polls by its hash until the node reports it
// committed. Committed-but-aborted transactions return
// common.ErrExecutionFailed with the VM status in the message.
func (s *Submitter) SubmitAndWait(ctx context.Context, txn *SignedTransaction) (*ExecutionResult, error) {
	hash := txn.Hash()

	nodeHash, err := s.ledger.Submit(ctx, txn)
	if err != nil {
		return nil, err
	}
	if nodeHash != "" && nodeHash != hash {
		s.logger.Warn(ctx, "node hash differs from local hash", "local", hash, "node", nodeHash)
		hash = nodeHash
	}
	s.logger.Debug(ctx, "transaction submitted", "hash", hash, "function", txn.Raw.Payload.Function)

	status, err := s.wait(ctx, hash)
	if err != nil {
		return nil, err
	}

	if !status.Success {
		return nil, fmt.Errorf("%w: %s: %s", common.ErrExecutionFailed, hash, status.VMStatus)
	}

	return &ExecutionResult{
		Hash:     hash,
		Version:  status.Version,
		GasUsed:  status.GasUsed,
		VMStatus: status.VMStatus,
	}, nil
}

func (s *Submitter) wait(ctx context.Context, hash string) (*TransactionStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var status *TransactionStatus
	b := retry.WithMaxDuration(s.timeout, retry.NewConstant(s.interval))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		st, err := s.ledger.TransactionByHash(ctx, hash)
		if err != nil {
			if errors.Is(err, common.ErrNetwork) {
				return retry.RetryableError(err)
			}
			return err
		}
		if st.Pending {
			return retry.RetryableError(errStillPending)
		}
		status = st
		return nil
	})
	if err == nil {
		return status, nil
	}

	if errors.Is(err, errStillPending) || errors.Is(err, common.ErrNetwork) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return nil, fmt.Errorf("%w: %s after %s: %w", common.ErrFinalityTimeout, hash, s.timeout, err)
	}
	return nil, fmt.Errorf("wait %s: %w", hash, err)
}
