// Package signer provides the Signer collaborator (spec.md §6) and its
// ECDSA-backed implementation, built on go-ethereum's secp256k1 bindings —
// the same recoverable-signature scheme the teacher's channel/balance-proof
// code relies on via common.Address/common.Hash.
package signer

import (
	"crypto/ecdsa"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/smartraiden/mcore/primitives"
)

// Signer is the collaborator interface consumed by the core: sign a
// message hash, returning a 65-byte recoverable signature.
type Signer interface {
	Sign(messageHash primitives.Keccak256) (primitives.Signature, error)
	Address() primitives.Address
}

// ECDSASigner signs with a local secp256k1 private key.
type ECDSASigner struct {
	key *ecdsa.PrivateKey
	addr primitives.Address
}

// NewECDSASigner builds a Signer from a raw private key.
func NewECDSASigner(key *ecdsa.PrivateKey) *ECDSASigner {
	return &ECDSASigner{key: key, addr: gethcrypto.PubkeyToAddress(key.PublicKey)}
}

// Sign returns the 65-byte recoverable signature over messageHash.
func (s *ECDSASigner) Sign(messageHash primitives.Keccak256) (primitives.Signature, error) {
	var sig primitives.Signature
	raw, err := gethcrypto.Sign(messageHash.Bytes(), s.key)
	if err != nil {
		return sig, err
	}
	copy(sig[:], raw)
	return sig, nil
}

// Address returns the signer's own address.
func (s *ECDSASigner) Address() primitives.Address {
	return s.addr
}

// Recover recovers the signer address from a message hash and signature —
// the Verify half of the Signer contract, used by encoding's
// LockedTransfer.Verify to check `sender = recover(message_hash, signature)`.
func Recover(messageHash primitives.Keccak256, signature primitives.Signature) (primitives.Address, error) {
	pub, err := gethcrypto.SigToPub(messageHash.Bytes(), signature[:])
	if err != nil {
		return primitives.Address{}, err
	}
	return gethcrypto.PubkeyToAddress(*pub), nil
}
