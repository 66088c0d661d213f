// Package primitives defines the value types shared by every layer of the
// mediated-transfer core: addresses, identifiers, amounts, hashes and
// signatures. Nothing in this package touches transport, keys or the chain.
package primitives

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Address is a 20-byte opaque identifier, aliasing go-ethereum's common.Address
// so it composes directly with the chain-observer and signer collaborators.
type Address = common.Address

// Identifier is the unsigned 64-bit payment handle chosen by the initiator.
type Identifier uint64

// Nonce is strictly monotonic per channel per direction and begins at 1.
type Nonce uint64

// BlockNumber is a block height as observed by the ChainObserver.
type BlockNumber int64

// Keccak256 is a 32-byte hash, aliasing go-ethereum's common.Hash.
type Keccak256 = common.Hash

// Secret is the 32-byte preimage that unlocks an HTLT.
type Secret = common.Hash

// SecretHash is keccak256(Secret).
type SecretHash = common.Hash

// LocksRoot is the Merkle root over the multiset of pending lock leaves.
type LocksRoot = common.Hash

// Signature is a 65-byte ECDSA recoverable signature.
type Signature [65]byte

// UINT64Max is the maximum value representable by a Nonce/Identifier.
const UINT64Max uint64 = 1<<64 - 1

// EmptyMerkleRoot is the distinguished LocksRoot value meaning "no pending locks".
var EmptyMerkleRoot = LocksRoot{}

// UINT256Max is the maximum value a TokenAmount/TransferredAmount/Fee may hold.
func UINT256Max() *uint256.Int {
	max := new(uint256.Int)
	max.SetAllOne()
	return max
}

// HashSecret returns keccak256(secret), the credential unlock hash.
func HashSecret(secret Secret) SecretHash {
	return crypto.Keccak256Hash(secret.Bytes())
}

// TokenAmount, TransferredAmount and Fee are unsigned 256-bit quantities.
// They share the same underlying representation; the distinct names exist
// to keep call sites self-documenting about which balance-proof field a
// value belongs to.
type (
	TokenAmount       = uint256.Int
	TransferredAmount = uint256.Int
	Fee               = uint256.Int
)

// NewAmount builds a TokenAmount from a uint64, valid for every value this
// package's callers construct directly (test fixtures, small transfer
// amounts); larger values are built with uint256.Int methods directly.
func NewAmount(v uint64) *TokenAmount {
	return new(uint256.Int).SetUint64(v)
}

// AmountFromBig converts a *big.Int into a TokenAmount, returning an error
// if the value is negative or exceeds UINT256_MAX.
func AmountFromBig(v *big.Int) (*TokenAmount, error) {
	if v.Sign() < 0 {
		return nil, &OverflowError{Field: "amount", Reason: "negative"}
	}
	a, overflow := uint256.FromBig(v)
	if overflow {
		return nil, &OverflowError{Field: "amount", Reason: "exceeds UINT256_MAX"}
	}
	return a, nil
}

// OverflowError signals a value outside the representable range for a
// saturating-free 256-bit field (§3: "implementations must reject overflow").
type OverflowError struct {
	Field  string
	Reason string
}

func (e *OverflowError) Error() string {
	return "primitives: " + e.Field + " overflow: " + e.Reason
}

// AddAmount returns a + b, rejecting overflow per §3's saturating-free
// invariant rather than silently wrapping.
func AddAmount(a, b *TokenAmount) (*TokenAmount, error) {
	sum := new(uint256.Int)
	_, overflow := sum.AddOverflow(a, b)
	if overflow {
		return nil, &OverflowError{Field: "transferred_amount", Reason: "add overflow"}
	}
	return sum, nil
}

// SubAmount returns a - b, rejecting underflow.
func SubAmount(a, b *TokenAmount) (*TokenAmount, error) {
	if a.Lt(b) {
		return nil, &OverflowError{Field: "amount", Reason: "subtraction underflow"}
	}
	diff := new(uint256.Int).Sub(a, b)
	return diff, nil
}
