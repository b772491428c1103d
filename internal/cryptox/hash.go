// Package cryptox holds the small cryptographic helpers shared by the server:
// streaming content digests and decoding of configured key material.
package cryptox

import (
	"crypto/sha256"
	"fmt"
	"io"
)

// DigestSize is the length of a content digest in bytes.
const DigestSize = sha256.Size

// hashChunkSize bounds how much of an upload is held in memory at once.
const hashChunkSize = 32 * 1024

// Digest is a SHA-256 content digest.
type Digest [DigestSize]byte

// Bytes returns the digest as a freshly allocated slice.
func (d Digest) Bytes() []byte {
	b := make([]byte, DigestSize)
	copy(b, d[:])
	return b
}

// HashReader streams r through SHA-256 in fixed-size chunks and returns the
// digest of everything read until EOF.
//
// A read error aborts hashing; the zero Digest is returned together with the
// wrapped error, never a digest of a prefix.
//
// Example:
//
//	f, _ := os.Open("paper.pdf")
//	defer f.Close()
//	digest, err := HashReader(f)
func HashReader(r io.Reader) (Digest, error) {
	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, onlyReader{r}, buf); err != nil {
		return Digest{}, fmt.Errorf("hash content: %w", err)
	}

	var d Digest
	copy(d[:], h.Sum(nil))
	return d, nil
}

// onlyReader hides WriterTo/ReaderFrom so io.CopyBuffer really uses buf.
type onlyReader struct {
	io.Reader
}
