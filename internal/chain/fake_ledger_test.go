package chain

import (
	"context"
	"sync"
)

type fakeLedger struct {
	mu sync.Mutex

	seq       uint64
	seqErr    error
	chainID   uint8
	chainErr  error
	submitErr error
	statuses  []*TransactionStatus
	statusErr []error

	seqCalls    int
	chainCalls  int
	submitted   []*SignedTransaction
	statusCalls int
}

func (f *fakeLedger) SequenceNumber(context.Context, AccountAddress) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seqCalls++
	return f.seq, f.seqErr
}

func (f *fakeLedger) ChainID(context.Context) (uint8, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chainCalls++
	return f.chainID, f.chainErr
}

func (f *fakeLedger) Submit(_ context.Context, txn *SignedTransaction) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submitted = append(f.submitted, txn)
	return txn.Hash(), nil
}

// TransactionByHash replays statuses/statusErr in order, repeating the last.
func (f *fakeLedger) TransactionByHash(_ context.Context, hash string) (*TransactionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.statusCalls
	f.statusCalls++

	if i < len(f.statusErr) && f.statusErr[i] != nil {
		return nil, f.statusErr[i]
	}
	if len(f.statuses) == 0 {
		return &TransactionStatus{Hash: hash, Pending: true}, nil
	}
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	st := *f.statuses[i]
	st.Hash = hash
	return &st, nil
}
