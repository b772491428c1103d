package chain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/DariusIMP/publish3-backend/internal/common"
	"github.com/DariusIMP/publish3-backend/internal/netx"
)

const signedTransactionContentType = "application/x.aptos.signed_transaction+bcs"

// ErrRejected means the node refused a submission outright (for example a stale sequence
// number). Nothing was committed.
var ErrRejected = errors.New("transaction rejected by node")

// Ledger is the slice of the node REST API the builder and submitter need.
type Ledger interface {
	SequenceNumber(ctx context.Context, addr AccountAddress) (uint64, error)
	ChainID(ctx context.Context) (uint8, error)
	Submit(ctx context.Context, txn *SignedTransaction) (string, error)
	TransactionByHash(ctx context.Context, hash string) (*TransactionStatus, error)
}

// TransactionStatus is what the node reports for a hash.
type TransactionStatus struct {
	Hash     string
	Pending  bool
	Success  bool
	VMStatus string
	Version  uint64
	GasUsed  uint64
}

// RESTClient talks to a node at a base URL such as
// "https://testnet.movementnetwork.xyz/v1".
type RESTClient struct {
	baseURL string
	http    *http.Client
}

func NewRESTClient(baseURL string, httpClient *http.Client) *RESTClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RESTClient{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type accountResponse struct {
	SequenceNumber string `json:"sequence_number"`
}

type ledgerInfoResponse struct {
	ChainID uint8 `json:"chain_id"`
}

type submitResponse struct {
	Hash string `json:"hash"`
}

type transactionResponse struct {
	Type     string `json:"type"`
	Hash     string `json:"hash"`
	Success  bool   `json:"success"`
	VMStatus string `json:"vm_status"`
	Version  string `json:"version"`
	GasUsed  string `json:"gas_used"`
}

func (c *RESTClient) SequenceNumber(ctx context.Context, addr AccountAddress) (uint64, error) {
	var out accountResponse
	if err := c.get(ctx, "/accounts/"+addr.String(), &out); err != nil {
		return 0, fmt.Errorf("get account %s: %w", addr, err)
	}
	seq, err := strconv.ParseUint(out.SequenceNumber, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("get account %s: %w: sequence_number %q", addr, common.ErrNetwork, out.SequenceNumber)
	}
	return seq, nil
}

func (c *RESTClient) ChainID(ctx context.Context) (uint8, error) {
	var out ledgerInfoResponse
	if err := c.get(ctx, "/", &out); err != nil {
		return 0, fmt.Errorf("get ledger info: %w", err)
	}
	return out.ChainID, nil
}

func (c *RESTClient) Submit(ctx context.Context, txn *SignedTransaction) (string, error) {
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/transactions", bytes.NewReader(txn.Bytes()))
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrSerialization, err)
	}
	req.Header.Set("Content-Type", signedTransactionContentType)
	req.Header.Set("Accept", "application/json")

	var out submitResponse
	if err := c.classify(netx.Do(ctx, c.http, req, &out)); err != nil {
		if se, ok := netx.AsStatusError(err); ok && !se.Transient() {
			return "", fmt.Errorf("submit: %w: %w", ErrRejected, err)
		}
		return "", fmt.Errorf("submit: %w", err)
	}
	return out.Hash, nil
}

func (c *RESTClient) TransactionByHash(ctx context.Context, hash string) (*TransactionStatus, error) {
	var out transactionResponse
	err := c.get(ctx, "/transactions/by_hash/"+hash, &out)
	if se, ok := netx.AsStatusError(err); ok && se.StatusCode == http.StatusNotFound {
		// not indexed yet
		return &TransactionStatus{Hash: hash, Pending: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", hash, err)
	}

	st := &TransactionStatus{
		Hash:     out.Hash,
		Pending:  out.Type == "pending_transaction",
		Success:  out.Success,
		VMStatus: out.VMStatus,
	}
	st.Version, _ = strconv.ParseUint(out.Version, 10, 64)
	st.GasUsed, _ = strconv.ParseUint(out.GasUsed, 10, 64)
	return st, nil
}

func (c *RESTClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	return c.classify(netx.Do(ctx, c.http, req, out))
}

// classify tags transport failures, 5xx/429 and undecodable bodies as
// common.ErrNetwork while keeping the original error in the chain.
func (c *RESTClient) classify(err error) error {
	if err == nil {
		return nil
	}
	if se, ok := netx.AsStatusError(err); ok && !se.Transient() {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrNetwork, err)
}
