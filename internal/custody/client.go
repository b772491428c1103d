// Package custody talks to the custodial wallet service (Privy) that holds
// user signing keys. The backend never sees a user private key; it asks the
// custodian to sign a message on behalf of a wallet id.
package custody

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/DariusIMP/publish3-backend/internal/common"
	"github.com/DariusIMP/publish3-backend/internal/netx"
)

var (
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrWalletNoPublicKey = errors.New("wallet has no usable public key")
	ErrMalformedResponse = errors.New("malformed custodian response")
)

// Wallet is a custodial wallet as reported by the custodian.
type Wallet struct {
	ID        string
	Address   string
	ChainType string
	PublicKey ed25519.PublicKey
}

// Client is a minimal Privy wallet API client.
type Client struct {
	baseURL   string
	appID     string
	appSecret string
	http      *http.Client
}

func NewClient(baseURL, appID, appSecret string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		appID:     appID,
		appSecret: appSecret,
		http:      httpClient,
	}
}

type walletResponse struct {
	ID        string `json:"id"`
	Address   string `json:"address"`
	ChainType string `json:"chain_type"`
	PublicKey string `json:"public_key"`
}

type rawSignRequest struct {
	Params rawSignParams `json:"params"`
}

type rawSignParams struct {
	Hash string `json:"hash"`
}

type rawSignResponse struct {
	Data struct {
		Signature string `json:"signature"`
		Encoding  string `json:"encoding"`
	} `json:"data"`
}

// Wallet fetches walletID and decodes its Ed25519 public key.
func (c *Client) Wallet(ctx context.Context, walletID string) (*Wallet, error) {
	req, err := c.newRequest(http.MethodGet, "/v1/wallets/"+walletID, nil)
	if err != nil {
		return nil, err
	}

	var out walletResponse
	if err := c.do(ctx, req, &out); err != nil {
		return nil, fmt.Errorf("get wallet %s: %w", walletID, err)
	}

	pub, err := decodePublicKey(out.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("get wallet %s: %w: %w", walletID, ErrWalletNoPublicKey, err)
	}

	return &Wallet{ID: out.ID, Address: out.Address, ChainType: out.ChainType, PublicKey: pub}, nil
}

// Sign asks the custodian to sign message with walletID's key and returns
// the "0x"-prefixed hex signature. Requests carry IdempotencyKey("raw_sign",
// message), so a retried call for the same envelope is deduplicated.
func (c *Client) Sign(ctx context.Context, walletID string, message []byte) (string, error) {
	body, err := json.Marshal(rawSignRequest{Params: rawSignParams{Hash: "0x" + hex.EncodeToString(message)}})
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrSerialization, err)
	}

	req, err := c.newRequest(http.MethodPost, "/v1/wallets/"+walletID+"/raw_sign", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("privy-idempotency-key", IdempotencyKey("raw_sign", message))

	var out rawSignResponse
	if err := c.do(ctx, req, &out); err != nil {
		return "", fmt.Errorf("sign with wallet %s: %w", walletID, err)
	}

	sig := out.Data.Signature
	if _, err := hex.DecodeString(strings.TrimPrefix(sig, "0x")); err != nil || sig == "" {
		return "", fmt.Errorf("sign with wallet %s: %w: signature %q", walletID, ErrMalformedResponse, sig)
	}
	if !strings.HasPrefix(sig, "0x") {
		sig = "0x" + sig
	}
	return sig, nil
}

// IdempotencyKey derives a stable key from the operation name and the exact
// message bytes: op + "-" + hex(SHA-256(op || 0x00 || message)).
func IdempotencyKey(op string, message []byte) string {
	h := sha256.New()
	h.Write([]byte(op))
	h.Write([]byte{0})
	h.Write(message)
	return op + "-" + hex.EncodeToString(h.Sum(nil))
}

func (c *Client) newRequest(method, path string, body []byte) (*http.Request, error) {
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.appID, c.appSecret)
	req.Header.Set("privy-app-id", c.appID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do maps custodian failures onto the error classes callers branch on.
func (c *Client) do(ctx context.Context, req *http.Request, out any) error {
	err := netx.Do(ctx, c.http, req, out)
	if err == nil {
		return nil
	}
	if errors.Is(err, netx.ErrDecode) {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	se, ok := netx.AsStatusError(err)
	switch {
	case !ok, se.Transient():
		return fmt.Errorf("%w: %w", common.ErrNetwork, err)
	case se.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrWalletNotFound, err)
	default:
		return fmt.Errorf("%w: %w", common.ErrSigning, err)
	}
}

// decodePublicKey accepts hex with or without "0x". Some custodians prefix
// Ed25519 keys with a 0x00 scheme byte; that byte is dropped.
func decodePublicKey(s string) (ed25519.PublicKey, error) {
	if s == "" {
		return nil, errors.New("empty public key")
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, err
	}
	if len(raw) == ed25519.PublicKeySize+1 && raw[0] == 0 {
		raw = raw[1:]
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("unexpected public key length %d", len(raw))
	}
	return ed25519.PublicKey(raw), nil
}
