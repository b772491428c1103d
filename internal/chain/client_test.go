package chain

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DariusIMP/publish3-backend/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNode(t *testing.T, h http.HandlerFunc) *RESTClient {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return NewRESTClient(ts.URL+"/v1/", ts.Client())
}

func TestRESTClient_SequenceNumber(t *testing.T) {
	addr := MustParseAddress("0xa11ce")
	c := newTestNode(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts/"+addr.String(), r.URL.Path)
		_, _ = w.Write([]byte(`{"sequence_number":"17","authentication_key":"0x00"}`))
	})

	seq, err := c.SequenceNumber(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(17), seq)
}

func TestRESTClient_ChainID(t *testing.T) {
	c := newTestNode(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/", r.URL.Path)
		_, _ = w.Write([]byte(`{"chain_id":250,"ledger_version":"1"}`))
	})

	id, err := c.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint8(250), id)
}

func TestRESTClient_Submit(t *testing.T) {
	txn := testSigned(t, testRaw())

	c := newTestNode(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/transactions", r.URL.Path)
		assert.Equal(t, "application/x.aptos.signed_transaction+bcs", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, txn.Bytes(), body)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"hash":"` + txn.Hash() + `"}`))
	})

	hash, err := c.Submit(context.Background(), txn)
	require.NoError(t, err)
	assert.Equal(t, txn.Hash(), hash)
}

func TestRESTClient_SubmitErrors(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		wantRejected bool
		wantNetwork  bool
	}{
		{"bad request is rejection", http.StatusBadRequest, true, false},
		{"server error is network", http.StatusInternalServerError, false, true},
		{"rate limit is network", http.StatusTooManyRequests, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestNode(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"message":"SEQUENCE_NUMBER_TOO_OLD"}`))
			})

			_, err := c.Submit(context.Background(), testSigned(t, testRaw()))
			require.Error(t, err)
			assert.Equal(t, tt.wantRejected, errors.Is(err, ErrRejected))
			assert.Equal(t, tt.wantNetwork, errors.Is(err, common.ErrNetwork))
		})
	}
}

func TestRESTClient_TransactionByHash(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    *TransactionStatus
		wantErr error
	}{
		{
			name:   "not found is pending",
			status: http.StatusNotFound,
			body:   `{"error_code":"transaction_not_found"}`,
			want:   &TransactionStatus{Hash: "0xabc", Pending: true},
		},
		{
			name:   "pending type",
			status: http.StatusOK,
			body:   `{"type":"pending_transaction","hash":"0xabc"}`,
			want:   &TransactionStatus{Hash: "0xabc", Pending: true},
		},
		{
			name:   "committed success",
			status: http.StatusOK,
			body:   `{"type":"user_transaction","hash":"0xabc","success":true,"vm_status":"Executed successfully","version":"42","gas_used":"7"}`,
			want:   &TransactionStatus{Hash: "0xabc", Success: true, VMStatus: "Executed successfully", Version: 42, GasUsed: 7},
		},
		{
			name:   "committed abort",
			status: http.StatusOK,
			body:   `{"type":"user_transaction","hash":"0xabc","success":false,"vm_status":"Move abort"}`,
			want:   &TransactionStatus{Hash: "0xabc", VMStatus: "Move abort"},
		},
		{
			name:    "server error",
			status:  http.StatusBadGateway,
			body:    `oops`,
			wantErr: common.ErrNetwork,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestNode(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/transactions/by_hash/0xabc", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			got, err := c.TransactionByHash(context.Background(), "0xabc")
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRESTClient_TransportErrorIsNetwork(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := NewRESTClient(url, nil)
	_, err := c.ChainID(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNetwork))
}
