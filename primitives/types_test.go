package primitives

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashSecret(t *testing.T) {
	var secret Secret
	for i := range secret {
		secret[i] = byte(i)
	}
	h1 := HashSecret(secret)
	h2 := HashSecret(secret)
	require.Equal(t, h1, h2, "hashing must be deterministic")

	secret[0] ^= 0xff
	h3 := HashSecret(secret)
	require.NotEqual(t, h1, h3)
}

func TestAddAmountOverflow(t *testing.T) {
	max := UINT256Max()
	_, err := AddAmount(max, NewAmount(1))
	require.Error(t, err)

	sum, err := AddAmount(NewAmount(1), NewAmount(2))
	require.NoError(t, err)
	require.True(t, sum.Eq(NewAmount(3)))
}

func TestSubAmountUnderflow(t *testing.T) {
	_, err := SubAmount(NewAmount(1), NewAmount(2))
	require.Error(t, err)

	diff, err := SubAmount(NewAmount(5), NewAmount(2))
	require.NoError(t, err)
	require.True(t, diff.Eq(NewAmount(3)))
}

func TestAmountFromBig(t *testing.T) {
	_, err := AmountFromBig(big.NewInt(-1))
	require.Error(t, err)

	huge := new(big.Int).Lsh(big.NewInt(1), 257)
	_, err = AmountFromBig(huge)
	require.Error(t, err)

	v, err := AmountFromBig(big.NewInt(42))
	require.NoError(t, err)
	require.True(t, v.Eq(NewAmount(42)))
}
