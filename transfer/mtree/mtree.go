// Package mtree computes the locksroot: the Merkle root over the multiset
// of pending lock leaves in one channel direction. The spec treats this as
// a consumed primitive; this package provides the minimal implementation
// the rest of the core depends on.
package mtree

import (
	"sort"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/smartraiden/mcore/primitives"
)

// Lock is a leaf of the locksroot tree: the wire-encodable form of a
// HashTimeLockState, keyed by its secrethash.
type Lock struct {
	Amount     *primitives.TokenAmount
	Expiration primitives.BlockNumber
	SecretHash primitives.SecretHash
}

// leafHash hashes (expiration || amount || secrethash) the way the on-chain
// contract does, big-endian 32-byte fields.
func leafHash(l *Lock) primitives.Keccak256 {
	buf := make([]byte, 0, 96)
	buf = append(buf, leftPad32(uint64(l.Expiration))...)
	buf = append(buf, leftPad32Amount(l.Amount)...)
	buf = append(buf, l.SecretHash.Bytes()...)
	return crypto.Keccak256Hash(buf)
}

func leftPad32(v uint64) []byte {
	out := make([]byte, 32)
	for i := 0; i < 8; i++ {
		out[31-i] = byte(v >> (8 * i))
	}
	return out
}

func leftPad32Amount(a *primitives.TokenAmount) []byte {
	b := a.Bytes32()
	return b[:]
}

// MerkleRoot computes the locksroot over an arbitrary set of locks.
// An empty set returns primitives.EmptyMerkleRoot.
func MerkleRoot(locks []*Lock) primitives.LocksRoot {
	if len(locks) == 0 {
		return primitives.EmptyMerkleRoot
	}
	leaves := make([][]byte, len(locks))
	for i, l := range locks {
		h := leafHash(l)
		leaves[i] = h.Bytes()
	}
	sort.Slice(leaves, func(i, j int) bool {
		return lessBytes(leaves[i], leaves[j])
	})
	return primitives.LocksRoot(merkleCombine(leaves))
}

func lessBytes(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func merkleCombine(leaves [][]byte) [32]byte {
	level := leaves
	for len(level) > 1 {
		var next [][]byte
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			combined := append(append([]byte{}, level[i]...), level[i+1]...)
			h := crypto.Keccak256(combined)
			next = append(next, h)
		}
		level = next
	}
	var out [32]byte
	copy(out[:], level[0])
	return out
}

// WithoutSecretHash returns a copy of locks with the leaf matching
// secretHash removed, used when a lock is unlocked by a balance proof.
func WithoutSecretHash(locks []*Lock, secretHash primitives.SecretHash) []*Lock {
	out := make([]*Lock, 0, len(locks))
	for _, l := range locks {
		if l.SecretHash != secretHash {
			out = append(out, l)
		}
	}
	return out
}
