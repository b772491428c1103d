package custody

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/DariusIMP/publish3-backend/internal/chain"
	"github.com/DariusIMP/publish3-backend/internal/common"
)

// WalletSigner signs ledger messages with one custodial wallet. It
// satisfies chain.Signer.
type WalletSigner struct {
	client *Client
	wallet *Wallet
}

// Signer returns a chain.Signer backed by w.
func (c *Client) Signer(w *Wallet) chain.Signer {
	return &WalletSigner{client: c, wallet: w}
}

func (s *WalletSigner) PublicKey() ed25519.PublicKey {
	return s.wallet.PublicKey
}

// SignMessage returns raw signature bytes. Permanent custodian failures are
// reported as common.ErrSigning; transient ones keep common.ErrNetwork.
func (s *WalletSigner) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	sigHex, err := s.client.Sign(ctx, s.wallet.ID, message)
	if err != nil {
		if errors.Is(err, common.ErrNetwork) || errors.Is(err, common.ErrSigning) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", common.ErrSigning, err)
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil || len(sig) != ed25519.SignatureSize {
		return nil, fmt.Errorf("%w: %w: signature length %d", common.ErrSigning, ErrMalformedResponse, len(sig))
	}
	return sig, nil
}
