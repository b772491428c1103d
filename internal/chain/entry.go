package chain

import (
	"github.com/aptos-labs/aptos-go-sdk/bcs"
)

const (
	FunctionMintCapability = "mint_capability_with_sig"
	FunctionPublish        = "publish"
)

// MintCapabilityArgs are the parameters of
// mint_capability_with_sig(paper_hash, price, recipient, expires_at, signature).
type MintCapabilityArgs struct {
	PaperHash []byte
	Price     uint64
	Recipient AccountAddress
	ExpiresAt uint64
	Signature []byte
}

// MintCapability returns the entry-function call that redeems a signed
// capability on chain.
func MintCapability(module ModuleID, a MintCapabilityArgs) EntryFunction {
	return EntryFunction{
		Module:   module,
		Function: FunctionMintCapability,
		Args: [][]byte{
			encodeArg(func(s *bcs.Serializer) { s.WriteBytes(a.PaperHash) }),
			encodeArg(func(s *bcs.Serializer) { s.U64(a.Price) }),
			encodeArg(a.Recipient.MarshalBCS),
			encodeArg(func(s *bcs.Serializer) { s.U64(a.ExpiresAt) }),
			encodeArg(func(s *bcs.Serializer) { s.WriteBytes(a.Signature) }),
		},
	}
}

// PublishArgs are the parameters of
// publish(paper_hash, price, royalty_bps, coauthors).
type PublishArgs struct {
	PaperHash  []byte
	Price      uint64
	RoyaltyBps uint64
	CoAuthors  []AccountAddress
}

func Publish(module ModuleID, a PublishArgs) EntryFunction {
	return EntryFunction{
		Module:   module,
		Function: FunctionPublish,
		Args: [][]byte{
			encodeArg(func(s *bcs.Serializer) { s.WriteBytes(a.PaperHash) }),
			encodeArg(func(s *bcs.Serializer) { s.U64(a.Price) }),
			encodeArg(func(s *bcs.Serializer) { s.U64(a.RoyaltyBps) }),
			encodeArg(func(s *bcs.Serializer) { EncodeAddresses(s, a.CoAuthors) }),
		},
	}
}

// EncodeAddresses writes a vector<address>.
func EncodeAddresses(s *bcs.Serializer, addrs []AccountAddress) {
	s.Uleb128(uint32(len(addrs)))
	for _, a := range addrs {
		a.MarshalBCS(s)
	}
}

// encodeArg runs fn on a fresh serializer. The argument encoders only write
// integers and byte vectors, which cannot fail.
func encodeArg(fn func(s *bcs.Serializer)) []byte {
	s := &bcs.Serializer{}
	fn(s)
	return s.ToBytes()
}
