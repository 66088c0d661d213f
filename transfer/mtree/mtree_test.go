package mtree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smartraiden/mcore/primitives"
)

func lock(amount uint64, expiration int64, secretHashByte byte) *Lock {
	var h primitives.SecretHash
	h[0] = secretHashByte
	return &Lock{
		Amount:     primitives.NewAmount(amount),
		Expiration: primitives.BlockNumber(expiration),
		SecretHash: h,
	}
}

func TestMerkleRootEmpty(t *testing.T) {
	require.Equal(t, primitives.EmptyMerkleRoot, MerkleRoot(nil))
}

func TestMerkleRootOrderIndependent(t *testing.T) {
	a := lock(1, 10, 0x01)
	b := lock(2, 20, 0x02)
	c := lock(3, 30, 0x03)

	r1 := MerkleRoot([]*Lock{a, b, c})
	r2 := MerkleRoot([]*Lock{c, a, b})
	require.Equal(t, r1, r2, "locksroot must not depend on insertion order")
}

func TestMerkleRootChangesWithContent(t *testing.T) {
	a := lock(1, 10, 0x01)
	b := lock(2, 20, 0x02)

	r1 := MerkleRoot([]*Lock{a, b})
	r2 := MerkleRoot([]*Lock{a})
	require.NotEqual(t, r1, r2)
}

func TestWithoutSecretHash(t *testing.T) {
	a := lock(1, 10, 0x01)
	b := lock(2, 20, 0x02)
	remaining := WithoutSecretHash([]*Lock{a, b}, a.SecretHash)
	require.Len(t, remaining, 1)
	require.Equal(t, b.SecretHash, remaining[0].SecretHash)
}
