// Package testutil builds deterministic-enough fixtures for the core's
// tests: signing keys, channel identifiers and payment identifiers. It
// replaces the Python ancestor's module-level `PRIVKEY, ADDRESS =
// make_privkey_address()` globals (original_source/raiden/utils/__init__.py)
// with per-test constructors, since a shared global key would let one test's
// mutation of state bleed into another.
package testutil

import (
	"crypto/ecdsa"
	"crypto/rand"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/smartraiden/mcore/primitives"
	"github.com/smartraiden/mcore/signer"
)

// SigningFixture bundles a private key with its derived signer and address,
// the Go analogue of the ancestor's make_privkey_address().
type SigningFixture struct {
	Key    *ecdsa.PrivateKey
	Signer *signer.ECDSASigner
	Addr   primitives.Address
}

// NewSigningFixture generates a fresh secp256k1 key and wraps it in a Signer.
func NewSigningFixture() *SigningFixture {
	key, err := gethcrypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	s := signer.NewECDSASigner(key)
	return &SigningFixture{Key: key, Signer: s, Addr: s.Address()}
}

// NewSecret returns a fresh random 32-byte secret and its hash, standing in
// for the SecretSource collaborator (spec.md §6) in tests.
func NewSecret() (primitives.Secret, primitives.SecretHash) {
	var secret primitives.Secret
	if _, err := rand.Read(secret[:]); err != nil {
		panic(err)
	}
	return secret, primitives.HashSecret(secret)
}

// NewChannelIdentifier returns a fresh, collision-free channel identifier
// for use as a test fixture, derived from a random UUID rather than an
// incrementing counter so parallel tests never share one by accident.
func NewChannelIdentifier() primitives.Keccak256 {
	id := uuid.New()
	var h primitives.Keccak256
	copy(h[:16], id[:])
	return h
}

// NewIdentifier returns a fresh payment identifier derived from a random
// UUID's low 8 bytes, avoiding collisions between test cases that would
// otherwise need to hand-pick distinct literal identifiers.
func NewIdentifier() primitives.Identifier {
	id := uuid.New()
	var v uint64
	for _, b := range id[8:16] {
		v = v<<8 | uint64(b)
	}
	return primitives.Identifier(v)
}
