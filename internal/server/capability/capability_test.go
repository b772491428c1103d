package capability

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DariusIMP/publish3-backend/internal/chain"
	"github.com/DariusIMP/publish3-backend/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"
)

var testSeed = bytes.Repeat([]byte{0x2a}, ed25519.SeedSize)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := NewSigner(hex.EncodeToString(testSeed))
	require.NoError(t, err)
	s.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return s
}

func paperHash() []byte {
	h := sha256.Sum256([]byte("a paper"))
	return h[:]
}

func TestNewSigner_KeyEncodings(t *testing.T) {
	want := ed25519.NewKeyFromSeed(testSeed).Public().(ed25519.PublicKey)

	for _, enc := range []string{
		base64.StdEncoding.EncodeToString(testSeed),
		hex.EncodeToString(testSeed),
		"0x" + hex.EncodeToString(testSeed),
	} {
		s, err := NewSigner(enc)
		require.NoError(t, err, enc)
		assert.True(t, want.Equal(s.PublicKey()))
		assert.Equal(t, hex.EncodeToString(want), s.PublicKeyHex())
	}
}

func TestNewSigner_BadKeyIsConfigurationError(t *testing.T) {
	for _, enc := range []string{"", "zz", hex.EncodeToString([]byte("too short"))} {
		_, err := NewSigner(enc)
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrConfiguration))
	}
}

func TestCreateCapability(t *testing.T) {
	s := newTestSigner(t)
	recipient := chain.MustParseAddress("0xb0b")

	c, err := s.CreateCapability(paperHash(), 1500, recipient, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, hex.EncodeToString(paperHash()), c.PaperHash)
	assert.Equal(t, uint64(1500), c.Price)
	assert.Equal(t, hex.EncodeToString(recipient[:]), c.Recipient)
	assert.Equal(t, uint64(1_700_003_600), c.ExpiresAt)

	// signature covers SHA3("APTOS::MintPayload") || BCS(payload)
	prefix := sha3.Sum256([]byte("APTOS::MintPayload"))
	msg := append([]byte{}, prefix[:]...)
	msg = append(msg, 32)
	msg = append(msg, paperHash()...)
	msg = binary.LittleEndian.AppendUint64(msg, 1500)
	msg = append(msg, 32)
	msg = append(msg, recipient[:]...)
	msg = binary.LittleEndian.AppendUint64(msg, 1_700_003_600)

	sig, err := hex.DecodeString(c.Signature)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(s.PublicKey(), msg, sig))
}

func TestCreateCapability_Deterministic(t *testing.T) {
	s := newTestSigner(t)
	a, err := s.CreateCapability(paperHash(), 1, chain.MustParseAddress("0x1"), time.Minute)
	require.NoError(t, err)
	b, err := s.CreateCapability(paperHash(), 1, chain.MustParseAddress("0x1"), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCreateCapability_ExpiryInFuture(t *testing.T) {
	s, err := NewSigner(hex.EncodeToString(testSeed))
	require.NoError(t, err)

	before := time.Now().Unix()
	c, err := s.CreateCapability(paperHash(), 1, chain.MustParseAddress("0x1"), time.Second)
	require.NoError(t, err)
	assert.Greater(t, c.ExpiresAt, uint64(before))
}

func TestCreateCapability_InvalidInput(t *testing.T) {
	s := newTestSigner(t)

	_, err := s.CreateCapability(nil, 1, chain.MustParseAddress("0x1"), time.Hour)
	assert.True(t, errors.Is(err, ErrInvalidCapability))

	_, err = s.CreateCapability(paperHash(), 1, chain.MustParseAddress("0x1"), 0)
	assert.True(t, errors.Is(err, ErrInvalidCapability))

	_, err = s.CreateCapability(paperHash(), 1, chain.MustParseAddress("0x1"), 500*time.Millisecond)
	assert.True(t, errors.Is(err, ErrInvalidCapability))
}

func TestVerify(t *testing.T) {
	s := newTestSigner(t)
	recipient := chain.MustParseAddress("0xb0b")
	c, err := s.CreateCapability(paperHash(), 42, recipient, time.Hour)
	require.NoError(t, err)

	args, err := s.Verify(c)
	require.NoError(t, err)
	assert.Equal(t, paperHash(), args.PaperHash)
	assert.Equal(t, uint64(42), args.Price)
	assert.Equal(t, recipient, args.Recipient)
	assert.Equal(t, c.ExpiresAt, args.ExpiresAt)
	assert.Len(t, args.Signature, ed25519.SignatureSize)

	tamper := []struct {
		name   string
		mutate func(c *SignedCapability)
	}{
		{"price", func(c *SignedCapability) { c.Price++ }},
		{"expiry", func(c *SignedCapability) { c.ExpiresAt++ }},
		{"recipient", func(c *SignedCapability) { c.Recipient = hex.EncodeToString(chain.MustParseAddress("0xe5e").Bytes()) }},
		{"hash", func(c *SignedCapability) { c.PaperHash = hex.EncodeToString(make([]byte, 32)) }},
		{"signature bytes", func(c *SignedCapability) { c.Signature = flipFirstByte(c.Signature) }},
		{"signature encoding", func(c *SignedCapability) { c.Signature = "nothex" }},
	}
	for _, tt := range tamper {
		t.Run(tt.name, func(t *testing.T) {
			cp := *c
			tt.mutate(&cp)
			_, err := s.Verify(&cp)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidCapability))
		})
	}

	t.Run("other key", func(t *testing.T) {
		other := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{1}, 32)).Public().(ed25519.PublicKey)
		_, err := Verify(other, c)
		assert.True(t, errors.Is(err, ErrInvalidCapability))
	})
}

func TestSigner_ConcurrentUse(t *testing.T) {
	s := newTestSigner(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(price uint64) {
			defer wg.Done()
			c, err := s.CreateCapability(paperHash(), price, chain.MustParseAddress("0x1"), time.Hour)
			if assert.NoError(t, err) {
				_, err = s.Verify(c)
				assert.NoError(t, err)
			}
		}(uint64(i))
	}
	wg.Wait()
}

func flipFirstByte(h string) string {
	b, _ := hex.DecodeString(h)
	b[0] ^= 0xff
	return hex.EncodeToString(b)
}
