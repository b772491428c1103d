package custody

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"net/http"
	"testing"

	"github.com/DariusIMP/publish3-backend/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletSigner(t *testing.T) {
	key := testKey()
	pub := key.Public().(ed25519.PublicKey)
	msg := []byte("raw txn bytes")

	t.Run("returns raw signature", func(t *testing.T) {
		c := newTestCustodian(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":{"signature":"0x` + hex.EncodeToString(ed25519.Sign(key, msg)) + `"}}`))
		})
		s := c.Signer(&Wallet{ID: "w-1", PublicKey: pub})

		sig, err := s.SignMessage(context.Background(), msg)
		require.NoError(t, err)
		assert.True(t, ed25519.Verify(s.PublicKey(), msg, sig))
	})

	t.Run("wrong length is a signing error", func(t *testing.T) {
		c := newTestCustodian(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":{"signature":"0xabcd"}}`))
		})
		_, err := c.Signer(&Wallet{ID: "w-1", PublicKey: pub}).SignMessage(context.Background(), msg)
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrSigning))
	})

	t.Run("wallet not found is a signing error", func(t *testing.T) {
		c := newTestCustodian(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		_, err := c.Signer(&Wallet{ID: "w-1", PublicKey: pub}).SignMessage(context.Background(), msg)
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrSigning))
		assert.True(t, errors.Is(err, ErrWalletNotFound))
	})

	t.Run("outage stays retryable", func(t *testing.T) {
		c := newTestCustodian(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		_, err := c.Signer(&Wallet{ID: "w-1", PublicKey: pub}).SignMessage(context.Background(), msg)
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrNetwork))
		assert.False(t, errors.Is(err, common.ErrSigning))
	})
}
